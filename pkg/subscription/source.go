package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// Source is a watched value. A source implements Sampler, Watcher or both.
type Source interface {
	// Path returns the watched path, for logging.
	Path() string
}

// Sampler is a source whose current value can be read by the monitor.
type Sampler interface {
	Source
	Sample(ctx context.Context) (value.Value, error)
}

// Watcher is a source that pushes its changes.
type Watcher interface {
	Source
	Watch(fn func(value.Value)) (stop func(), err error)
}

// Resolver binds a path to a source when a subscription is registered.
// It returns wire.ErrNotFound if the path does not name a property.
type Resolver interface {
	Resolve(ctx context.Context, path string, monitor, publish time.Duration) (Source, error)
}

// RelayFunc creates a source relaying changes of path from the server
// behind a mount point, typically through a client channel to that
// server's own subscription service.
type RelayFunc func(ctx context.Context, remote *model.Remote, path string, monitor, publish time.Duration) (Watcher, error)

// ModelResolver resolves paths within an object hierarchy.
//
// Stored properties push their changes and can be sampled. Computed
// properties are sampled. Paths below a mount point are relayed when Relay
// is set, and otherwise sampled by reading through the mount's client.
type ModelResolver struct {
	Root  *model.Object
	Relay RelayFunc
}

// NewModelResolver creates a resolver for root.
func NewModelResolver(root *model.Object) *ModelResolver {
	return &ModelResolver{Root: root}
}

// Resolve implements Resolver.
func (r *ModelResolver) Resolve(ctx context.Context, path string, monitor, publish time.Duration) (Source, error) {
	t, err := model.Resolve(r.Root, path)
	if err != nil {
		return nil, err
	}

	switch {
	case t.Property != nil:
		return &propertySource{path: path, property: t.Property}, nil

	case t.Remote != nil:
		// Reading first makes unknown remote paths fail registration.
		if _, err := t.Remote.Client().Read(ctx, t.Rest); err != nil {
			return nil, err
		}
		if r.Relay != nil {
			w, err := r.Relay(ctx, t.Remote, t.Rest, monitor, publish)
			if err == nil {
				return w, nil
			}
		}
		return &remoteSource{path: path, client: t.Remote.Client(), rest: t.Rest}, nil

	default:
		return nil, fmt.Errorf("%w: %s is not a property", wire.ErrNotFound, path)
	}
}

// propertySource watches a local property.
type propertySource struct {
	path     string
	property *model.Property
}

func (s *propertySource) Path() string { return s.path }

func (s *propertySource) Sample(ctx context.Context) (value.Value, error) {
	return s.property.Read(ctx)
}

func (s *propertySource) Watch(fn func(value.Value)) (func(), error) {
	return s.property.Watch(fn)
}

// pushes reports whether the property can push changes itself.
func (s *propertySource) pushes() bool {
	return s.property.CanWatch()
}

// RemoteResolver resolves paths on another server and samples them by
// reading through its client. It backs the in-process fallback service of a
// client channel talking to a server without a subscription service.
type RemoteResolver struct {
	Client model.RemoteClient
}

// Resolve implements Resolver.
func (r RemoteResolver) Resolve(ctx context.Context, path string, _, _ time.Duration) (Source, error) {
	if _, err := r.Client.Read(ctx, path); err != nil {
		return nil, err
	}
	return &remoteSource{path: path, client: r.Client, rest: path}, nil
}

// remoteSource samples a property on another server.
type remoteSource struct {
	path   string
	client model.RemoteClient
	rest   string
}

func (s *remoteSource) Path() string { return s.path }

func (s *remoteSource) Sample(ctx context.Context) (value.Value, error) {
	return s.client.Read(ctx, s.rest)
}

// canPush reports whether src should be driven by Watch rather than by
// periodic sampling.
func canPush(src Source, monitor time.Duration) bool {
	w, ok := src.(Watcher)
	if !ok {
		return false
	}
	if _, sampled := src.(Sampler); !sampled {
		return true
	}
	if p, ok := w.(interface{ pushes() bool }); ok && !p.pushes() {
		return false
	}
	return monitor == 0
}
