package subscriber

import (
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// Handler receives the notifications of one subscription. Handlers of a
// channel run one at a time, in notification order, and may call
// Unsubscribe.
type Handler func(sub *Subscription, n wire.Notification)

// Subscription is the client-side record of a watched path.
//
// It is registered on the server in the background. Until then, and after
// a channel invalidation, it has no server id. A subscription the server
// refused (unknown path, bad interval) is marked failed and is not retried.
type Subscription struct {
	channel *Channel

	servicePath string
	path        string
	monitor     time.Duration
	publish     time.Duration
	handler     Handler

	// Guarded by channel.mu.
	id                   int
	failed               error
	registering          bool
	unsubscribeRequested bool
	removed              bool
}

// Path returns the watched path.
func (s *Subscription) Path() string {
	return s.path
}

// ServicePath returns the path of the subscription service used.
func (s *Subscription) ServicePath() string {
	return s.servicePath
}

// MonitorInterval returns the requested sampling period.
func (s *Subscription) MonitorInterval() time.Duration {
	return s.monitor
}

// PublishInterval returns the requested batching period.
func (s *Subscription) PublishInterval() time.Duration {
	return s.publish
}

// ID returns the server subscription id. ok is false while the
// subscription is not registered.
func (s *Subscription) ID() (id int, ok bool) {
	s.channel.mu.Lock()
	defer s.channel.mu.Unlock()
	return s.id, s.id != 0
}

// Failed returns true if the server refused the subscription.
func (s *Subscription) Failed() bool {
	return s.Err() != nil
}

// Err returns the reason the server refused the subscription, or nil.
func (s *Subscription) Err() error {
	s.channel.mu.Lock()
	defer s.channel.mu.Unlock()
	return s.failed
}

// Active returns true until the subscription has been removed.
func (s *Subscription) Active() bool {
	s.channel.mu.Lock()
	defer s.channel.mu.Unlock()
	return !s.unsubscribeRequested && !s.removed
}

// Unsubscribe stops delivery to the handler and schedules the server-side
// unregistration. It is safe to call Unsubscribe multiple times.
func (s *Subscription) Unsubscribe() {
	s.channel.unsubscribe(s)
}
