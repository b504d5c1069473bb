package interaction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// WriteValueKey is the form key carrying the value of a write.
const WriteValueKey = "value"

// Server executes Woopsa verbs against an object hierarchy.
// Requests for paths below a Remote mount are forwarded to the mount's
// client. Server implements model.RemoteClient, so a server can itself be
// mounted into another tree.
type Server struct {
	root *model.Object
}

// NewServer creates a new interaction server for the given root object.
func NewServer(root *model.Object) *Server {
	return &Server{root: root}
}

// Root returns the served root object.
func (s *Server) Root() *model.Object {
	return s.root
}

// InstallMultiRequest adds the MultiRequest method to the root object.
func (s *Server) InstallMultiRequest() error {
	return s.root.AddMethod(model.NewMethod(&model.MethodMetadata{
		Name:       model.SplitPath(wire.MultiRequestMethod)[0],
		ReturnType: value.TypeJSONData,
		Arguments: []model.ArgumentMetadata{
			{Name: wire.MultiRequestArgument, Type: value.TypeJSONData},
		},
	}, s.invokeMulti))
}

func (s *Server) invokeMulti(ctx context.Context, args map[string]value.Value) (value.Value, error) {
	reqs, err := wire.DecodeRequests([]byte(args[wire.MultiRequestArgument].Text()))
	if err != nil {
		return value.Value{}, err
	}
	resps, _ := s.Multi(ctx, reqs)
	data, err := wire.EncodeResponses(resps)
	if err != nil {
		return value.Value{}, err
	}
	return value.JSON(data)
}

// Read returns the value of the property at path.
func (s *Server) Read(ctx context.Context, path string) (value.Value, error) {
	t, err := model.Resolve(s.root, path)
	if err != nil {
		return value.Value{}, err
	}
	switch {
	case t.Remote != nil:
		return t.Remote.Client().Read(ctx, t.Rest)
	case t.Property != nil:
		return t.Property.Read(ctx)
	default:
		return value.Value{}, fmt.Errorf("%w: %s is not a property", wire.ErrNotFound, path)
	}
}

// Write sets the value of the property at path.
func (s *Server) Write(ctx context.Context, path string, v value.Value) error {
	t, err := model.Resolve(s.root, path)
	if err != nil {
		return err
	}
	switch {
	case t.Remote != nil:
		return t.Remote.Client().Write(ctx, t.Rest, v)
	case t.Property != nil:
		return t.Property.Write(ctx, v)
	default:
		return fmt.Errorf("%w: %s is not a property", wire.ErrNotFound, path)
	}
}

// Invoke calls the method at path.
func (s *Server) Invoke(ctx context.Context, path string, args map[string]value.Value) (value.Value, error) {
	t, err := model.Resolve(s.root, path)
	if err != nil {
		return value.Value{}, err
	}
	switch {
	case t.Remote != nil:
		return t.Remote.Client().Invoke(ctx, t.Rest, args)
	case t.Method != nil:
		return t.Method.Invoke(ctx, args)
	default:
		return value.Value{}, fmt.Errorf("%w: %s is not a method", wire.ErrNotFound, path)
	}
}

// Meta describes the object at path.
func (s *Server) Meta(ctx context.Context, path string) (*wire.Meta, error) {
	t, err := model.Resolve(s.root, path)
	if err != nil {
		return nil, err
	}
	switch {
	case t.Remote != nil:
		m, err := t.Remote.Client().Meta(ctx, t.Rest)
		if err != nil {
			return nil, err
		}
		if t.Rest == model.PathSeparator {
			m.Name = t.Remote.Name()
		}
		return m, nil
	case t.Object != nil:
		return t.Object.Meta(), nil
	default:
		return nil, fmt.Errorf("%w: %s is not an object", wire.ErrNotFound, path)
	}
}

// Multi executes a batch of requests in order. Each request fails or
// succeeds on its own; the returned error is always nil.
func (s *Server) Multi(ctx context.Context, reqs []wire.Request) ([]wire.Response, error) {
	resps := make([]wire.Response, 0, len(reqs))
	for _, req := range reqs {
		resps = append(resps, s.HandleRequest(ctx, req))
	}
	return resps, nil
}

// HandleRequest processes one multi-request entry.
func (s *Server) HandleRequest(ctx context.Context, req wire.Request) wire.Response {
	switch req.Action {
	case wire.ActionRead:
		v, err := s.Read(ctx, req.Path)
		if err != nil {
			return wire.NewErrorResponse(req.ID, err)
		}
		return wire.NewValueResponse(req.ID, v)

	case wire.ActionWrite:
		if req.Value == nil {
			return wire.NewErrorResponse(req.ID, fmt.Errorf("%w: write without value", wire.ErrInvalidArgument))
		}
		if err := s.Write(ctx, req.Path, value.Text(*req.Value)); err != nil {
			return wire.NewErrorResponse(req.ID, err)
		}
		return wire.NewValueResponse(req.ID, value.Null())

	case wire.ActionInvoke:
		v, err := s.Invoke(ctx, req.Path, textArguments(req.Arguments))
		if err != nil {
			return wire.NewErrorResponse(req.ID, err)
		}
		return wire.NewValueResponse(req.ID, v)

	case wire.ActionMeta:
		m, err := s.Meta(ctx, req.Path)
		if err != nil {
			return wire.NewErrorResponse(req.ID, err)
		}
		return wire.NewMetaResponse(req.ID, m)

	default:
		return wire.NewErrorResponse(req.ID, fmt.Errorf("%w: unknown action", wire.ErrInvalidArgument))
	}
}

// Serve executes one verb with form-encoded arguments and returns the
// JSON response body. On failure the body is the error body and err is
// the cause, so transports can map it onto their own status codes.
func (s *Server) Serve(ctx context.Context, action wire.Action, path string, form url.Values) ([]byte, error) {
	var (
		body []byte
		err  error
	)

	switch action {
	case wire.ActionRead:
		var v value.Value
		if v, err = s.Read(ctx, path); err == nil {
			body, err = json.Marshal(v)
		}

	case wire.ActionWrite:
		if !form.Has(WriteValueKey) {
			err = fmt.Errorf("%w: missing %s", wire.ErrInvalidArgument, WriteValueKey)
			break
		}
		if err = s.Write(ctx, path, value.Text(form.Get(WriteValueKey))); err == nil {
			body, err = json.Marshal(value.Null())
		}

	case wire.ActionInvoke:
		args := make(map[string]string, len(form))
		for k := range form {
			args[k] = form.Get(k)
		}
		var v value.Value
		if v, err = s.Invoke(ctx, path, textArguments(args)); err == nil {
			body, err = json.Marshal(v)
		}

	case wire.ActionMeta:
		var m *wire.Meta
		if m, err = s.Meta(ctx, path); err == nil {
			body, err = json.Marshal(m)
		}

	default:
		err = fmt.Errorf("%w: unknown action", wire.ErrInvalidArgument)
	}

	if err != nil {
		body, _ = json.Marshal(wire.NewError(err))
		return body, err
	}
	return body, nil
}

// textArguments wraps text arguments as Text values. Methods convert them
// to their declared types; remote mounts forward them unchanged.
func textArguments(args map[string]string) map[string]value.Value {
	out := make(map[string]value.Value, len(args))
	for k, v := range args {
		out[k] = value.Text(v)
	}
	return out
}
