package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/log"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// ChannelConfig configures a single channel.
type ChannelConfig struct {
	// QueueSize bounds the notification queue (default: DefaultQueueSize).
	QueueSize int

	// Resolver binds registered paths to sources.
	Resolver Resolver

	// Logger for operational logging (optional).
	Logger *slog.Logger

	// ProtocolLogger receives channel events (optional).
	ProtocolLogger log.Logger

	// SessionID tags protocol events.
	SessionID string
}

// Channel groups subscriptions sharing one bounded notification queue and
// one wait/acknowledge cursor.
//
// Notification ids are assigned under the channel lock and are strictly
// increasing. When the queue is full the oldest notification is dropped and
// its id is remembered. A Wait acknowledging less than the highest dropped
// id fails with wire.ErrNotificationsLost, whether or not the dropped
// notifications had been handed out before: a delivered batch is not
// acknowledged until the next Wait. Acknowledging 0 resynchronizes.
type Channel struct {
	id     int
	config ChannelConfig

	mu             sync.Mutex
	subscriptions  map[int]*Subscription
	nextSubID      int
	queue          []wire.Notification
	lastID         int
	droppedThrough int
	wake           chan struct{}
	closed         bool
	lastActivity   time.Time
}

// NewChannel creates an open channel.
func NewChannel(id int, config ChannelConfig) *Channel {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	return &Channel{
		id:            id,
		config:        config,
		subscriptions: make(map[int]*Subscription),
		wake:          make(chan struct{}),
		lastActivity:  time.Now(),
	}
}

// ID returns the channel id.
func (c *Channel) ID() int {
	return c.id
}

// QueueSize returns the queue capacity.
func (c *Channel) QueueSize() int {
	return c.config.QueueSize
}

// LastActivity returns the time of the last client contact.
func (c *Channel) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Closed returns true once the channel has been closed.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Len returns the number of queued notifications.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Subscriptions returns the number of active subscriptions.
func (c *Channel) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

// Register creates a subscription watching path.
// Returns wire.ErrNotFound if path does not resolve to a property.
func (c *Channel) Register(ctx context.Context, path string, monitor, publish time.Duration) (int, error) {
	if c.config.Resolver == nil {
		return 0, fmt.Errorf("%w: channel has no resolver", wire.ErrNotFound)
	}
	if err := c.touch(); err != nil {
		return 0, err
	}

	src, err := c.config.Resolver.Resolve(ctx, path, monitor, publish)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.mu.Unlock()

	sub, err := newSubscription(id, path, monitor, publish, src, c.enqueue)
	if err != nil {
		return 0, err
	}
	if err := sub.start(ctx); err != nil {
		return 0, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.stop()
		return 0, c.invalid()
	}
	c.subscriptions[id] = sub
	c.mu.Unlock()

	c.emit(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerChannel,
		Category:  log.CategorySubscription,
		Subscription: &log.SubscriptionEvent{
			Action:          log.SubscriptionRegistered,
			SubscriptionID:  int64(id),
			Path:            path,
			MonitorInterval: monitor,
			PublishInterval: publish,
		},
	})
	return id, nil
}

// Unregister stops and removes a subscription. Returns false if id is
// unknown.
func (c *Channel) Unregister(id int) (bool, error) {
	if err := c.touch(); err != nil {
		return false, err
	}

	c.mu.Lock()
	sub, ok := c.subscriptions[id]
	delete(c.subscriptions, id)
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	// The publisher may be waiting for the lock; stop outside it.
	sub.stop()

	c.emit(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerChannel,
		Category:  log.CategorySubscription,
		Subscription: &log.SubscriptionEvent{
			Action:         log.SubscriptionUnregistered,
			SubscriptionID: int64(id),
		},
	})
	return true, nil
}

// Enqueue appends a batch of notifications, assigning ids in order.
// Notifications of unknown subscriptions are queued as well.
func (c *Channel) Enqueue(batch []wire.Notification) {
	c.enqueue(batch)
}

func (c *Channel) enqueue(batch []wire.Notification) {
	if len(batch) == 0 {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.lastID+len(batch) > wire.MaxNotificationID {
		c.mu.Unlock()
		c.config.debugLog("notification ids exhausted", "channel", c.id)
		// Running on a publisher goroutine: stopping must not wait for it.
		subs := c.close(log.ChannelInvalidated, "notification ids exhausted")
		go stopAll(subs)
		return
	}

	first := c.lastID + 1
	for _, n := range batch {
		c.lastID++
		n.ID = c.lastID
		c.queue = append(c.queue, n)
	}

	dropped := 0
	for len(c.queue) > c.config.QueueSize {
		c.droppedThrough = c.queue[0].ID
		c.queue = c.queue[1:]
		dropped++
	}
	last := c.lastID
	c.signalLocked()
	c.mu.Unlock()

	c.emit(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerChannel,
		Category:  log.CategoryNotification,
		Notification: &log.NotificationEvent{
			Count:    len(batch),
			FirstID:  int64(first),
			LastID:   int64(last),
			Dropped:  dropped,
			Overflow: dropped > 0,
		},
	})
}

// Wait acknowledges every notification with an id up to lastAck and
// returns the queued ones, blocking until at least one is queued, timeout
// elapses or ctx is done. An empty result on timeout is not an error.
//
// Acknowledging 0 acknowledges nothing and returns everything queued.
// Returns wire.ErrNotificationsLost if a notification newer than lastAck
// was dropped, and wire.ErrInvalidSubscriptionChannel once the channel is
// closed.
func (c *Channel) Wait(ctx context.Context, lastAck int, timeout time.Duration) ([]wire.Notification, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, c.invalid()
	}
	c.lastActivity = time.Now()

	if lastAck != wire.NoNotification {
		if c.droppedThrough > lastAck {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: channel %d, dropped through %d", wire.ErrNotificationsLost, c.id, c.droppedThrough)
		}
		c.acknowledgeLocked(lastAck)
	}

	var timer *time.Timer
	for len(c.queue) == 0 {
		wake := c.wake
		c.mu.Unlock()

		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-wake:
		case <-timer.C:
			return []wire.Notification{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, c.invalid()
		}
	}

	batch := make([]wire.Notification, len(c.queue))
	copy(batch, c.queue)
	c.lastActivity = time.Now()
	c.mu.Unlock()

	c.emit(log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerChannel,
		Category:  log.CategoryNotification,
		Notification: &log.NotificationEvent{
			Count:       len(batch),
			FirstID:     int64(batch[0].ID),
			LastID:      int64(batch[len(batch)-1].ID),
			Acknowledge: int64(lastAck),
		},
	})
	return batch, nil
}

// acknowledgeLocked drops notifications with ids up to lastAck.
func (c *Channel) acknowledgeLocked(lastAck int) {
	n := 0
	for n < len(c.queue) && c.queue[n].ID <= lastAck {
		n++
	}
	if n > 0 {
		c.queue = append(c.queue[:0:0], c.queue[n:]...)
	}
}

// Close stops all subscriptions and fails pending and future waits.
// It is safe to call Close multiple times.
func (c *Channel) Close() {
	stopAll(c.close(log.ChannelClosed, ""))
}

// expire closes the channel after its lifetime elapsed.
func (c *Channel) expire() {
	stopAll(c.close(log.ChannelExpired, "idle"))
}

func (c *Channel) close(action log.ChannelAction, reason string) map[int]*Subscription {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subscriptions
	c.subscriptions = make(map[int]*Subscription)
	c.queue = nil
	c.signalLocked()
	c.mu.Unlock()

	c.emit(log.Event{
		Layer:    log.LayerChannel,
		Category: log.CategoryChannel,
		Channel:  &log.ChannelEvent{Action: action, Reason: reason},
	})
	return subs
}

func stopAll(subs map[int]*Subscription) {
	for _, sub := range subs {
		sub.stop()
	}
}

// touch records client contact.
func (c *Channel) touch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.invalid()
	}
	c.lastActivity = time.Now()
	return nil
}

// signalLocked wakes all waiters.
func (c *Channel) signalLocked() {
	close(c.wake)
	c.wake = make(chan struct{})
}

func (c *Channel) invalid() error {
	return fmt.Errorf("%w: %d", wire.ErrInvalidSubscriptionChannel, c.id)
}

func (c *Channel) emit(e log.Event) {
	e.SessionID = c.config.SessionID
	e.LocalRole = log.RoleServer
	e.ChannelID = int64(c.id)
	log.Emit(c.config.ProtocolLogger, e)
}

func (c ChannelConfig) debugLog(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Debug(msg, args...)
	}
}
