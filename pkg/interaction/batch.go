package interaction

import (
	"context"
	"fmt"

	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// MultiRequester executes a batch of requests in one exchange.
// Per-request failures are reported in the responses; the returned error
// means the exchange itself failed.
type MultiRequester interface {
	Multi(ctx context.Context, reqs []wire.Request) ([]wire.Response, error)
}

// Peer is a remote or local object hierarchy that accepts batches.
type Peer interface {
	model.RemoteClient
	MultiRequester
}

// AsPeer returns rc if it already supports batches, or wraps it so that
// batches are executed one request at a time.
func AsPeer(rc model.RemoteClient) Peer {
	if p, ok := rc.(Peer); ok {
		return p
	}
	return sequentialPeer{rc}
}

type sequentialPeer struct {
	model.RemoteClient
}

func (p sequentialPeer) Multi(ctx context.Context, reqs []wire.Request) ([]wire.Response, error) {
	return sequential(ctx, p.RemoteClient, reqs)
}

// sequential executes reqs one by one. A failure that is not a protocol
// error aborts the batch.
func sequential(ctx context.Context, rc model.RemoteClient, reqs []wire.Request) ([]wire.Response, error) {
	resps := make([]wire.Response, 0, len(reqs))
	for _, req := range reqs {
		resp, err := single(ctx, rc, req)
		if err != nil {
			if !wire.IsProtocolError(err) {
				return nil, err
			}
			resp = wire.NewErrorResponse(req.ID, err)
		}
		resps = append(resps, resp)
	}
	return resps, nil
}

func single(ctx context.Context, rc model.RemoteClient, req wire.Request) (wire.Response, error) {
	switch req.Action {
	case wire.ActionRead:
		v, err := rc.Read(ctx, req.Path)
		if err != nil {
			return wire.Response{}, err
		}
		return wire.NewValueResponse(req.ID, v), nil
	case wire.ActionWrite:
		if req.Value == nil {
			return wire.NewErrorResponse(req.ID, wire.ErrInvalidArgument), nil
		}
		if err := rc.Write(ctx, req.Path, value.Text(*req.Value)); err != nil {
			return wire.Response{}, err
		}
		return wire.NewValueResponse(req.ID, value.Null()), nil
	case wire.ActionInvoke:
		v, err := rc.Invoke(ctx, req.Path, textArguments(req.Arguments))
		if err != nil {
			return wire.Response{}, err
		}
		return wire.NewValueResponse(req.ID, v), nil
	case wire.ActionMeta:
		m, err := rc.Meta(ctx, req.Path)
		if err != nil {
			return wire.Response{}, err
		}
		return wire.NewMetaResponse(req.ID, m), nil
	default:
		return wire.NewErrorResponse(req.ID, wire.ErrInvalidArgument), nil
	}
}

// Call is one queued request of a Batch. Its result is available after
// the batch was sent.
type Call struct {
	req  wire.Request
	resp *wire.Response
}

// Path returns the request path.
func (c *Call) Path() string {
	return c.req.Path
}

// Done returns true once a response was received.
func (c *Call) Done() bool {
	return c.resp != nil
}

// Value returns the call result.
func (c *Call) Value() (value.Value, error) {
	if c.resp == nil {
		return value.Value{}, fmt.Errorf("%w: no response for request %d", ErrUnexpectedReply, c.req.ID)
	}
	return c.resp.Value()
}

// Err returns the call failure, or nil.
func (c *Call) Err() error {
	_, err := c.Value()
	return err
}

// Batch queues read/write/invoke calls and sends them in one round trip.
// A Batch is not safe for concurrent use.
type Batch struct {
	peer   MultiRequester
	calls  []*Call
	nextID int
}

// NewBatch creates an empty batch sent through peer.
func NewBatch(peer MultiRequester) *Batch {
	return &Batch{peer: peer, nextID: 1}
}

// Len returns the number of queued calls.
func (b *Batch) Len() int {
	return len(b.calls)
}

// Read queues a read.
func (b *Batch) Read(path string) *Call {
	return b.add(wire.Request{Action: wire.ActionRead, Path: path})
}

// Write queues a write.
func (b *Batch) Write(path string, v value.Value) *Call {
	text := v.Text()
	return b.add(wire.Request{Action: wire.ActionWrite, Path: path, Value: &text})
}

// Invoke queues a method call.
func (b *Batch) Invoke(path string, args map[string]value.Value) *Call {
	text := make(map[string]string, len(args))
	for k, v := range args {
		text[k] = v.Text()
	}
	return b.add(wire.Request{Action: wire.ActionInvoke, Path: path, Arguments: text})
}

func (b *Batch) add(req wire.Request) *Call {
	req.ID = b.nextID
	b.nextID++
	c := &Call{req: req}
	b.calls = append(b.calls, c)
	return c
}

// Send executes all queued calls and matches the responses by id.
// The batch is empty afterwards. Calls without a matching response fail
// with ErrUnexpectedReply.
func (b *Batch) Send(ctx context.Context) error {
	if len(b.calls) == 0 {
		return nil
	}
	calls := b.calls
	b.calls = nil

	reqs := make([]wire.Request, len(calls))
	byID := make(map[int]*Call, len(calls))
	for i, c := range calls {
		reqs[i] = c.req
		byID[c.req.ID] = c
	}

	resps, err := b.peer.Multi(ctx, reqs)
	if err != nil {
		return err
	}
	for i := range resps {
		if c, ok := byID[resps[i].ID]; ok {
			c.resp = &resps[i]
		}
	}
	return nil
}
