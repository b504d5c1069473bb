package subscriber

import (
	"context"
	"sync"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscription"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// Relay forwards subscriptions below mount points to the mounted servers,
// using one client channel per mount.
type Relay struct {
	config Config
	ctx    context.Context

	mu       sync.Mutex
	channels map[*model.Remote]*Channel
	closed   bool
}

// NewRelay creates a relay. Channels it opens run until ctx is done or the
// relay is closed.
func NewRelay(ctx context.Context, config Config) *Relay {
	return &Relay{
		config:   config,
		ctx:      ctx,
		channels: make(map[*model.Remote]*Channel),
	}
}

// Func returns the relay as a subscription.RelayFunc, for
// subscription.ModelResolver.Relay.
func (r *Relay) Func() subscription.RelayFunc {
	return r.relay
}

func (r *Relay) relay(_ context.Context, remote *model.Remote, path string, monitor, publish time.Duration) (subscription.Watcher, error) {
	ch, err := r.channel(remote)
	if err != nil {
		return nil, err
	}
	return &relaySource{
		channel: ch,
		path:    model.JoinPath(remote.Name(), path),
		rest:    path,
		monitor: monitor,
		publish: publish,
	}, nil
}

// channel returns the channel to remote, starting it on first use.
func (r *Relay) channel(remote *model.Remote) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if ch, ok := r.channels[remote]; ok {
		return ch, nil
	}
	ch := NewChannel(remote.Client(), r.config)
	if err := ch.Start(r.ctx); err != nil {
		return nil, err
	}
	r.channels[remote] = ch
	return ch, nil
}

// Len returns the number of open channels.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// Close closes all channels.
func (r *Relay) Close() error {
	r.mu.Lock()
	r.closed = true
	channels := r.channels
	r.channels = make(map[*model.Remote]*Channel)
	r.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close()
	}
	return nil
}

// relaySource is a subscription.Watcher backed by a client subscription.
type relaySource struct {
	channel *Channel
	path    string
	rest    string
	monitor time.Duration
	publish time.Duration
}

func (s *relaySource) Path() string { return s.path }

func (s *relaySource) Watch(fn func(value.Value)) (func(), error) {
	sub, err := s.channel.Subscribe(s.rest, s.monitor, s.publish, func(_ *Subscription, n wire.Notification) {
		fn(n.Value)
	})
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}
