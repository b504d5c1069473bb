package subscriber

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/woopsa-protocol/woopsa-go/pkg/interaction"
	"github.com/woopsa-protocol/woopsa-go/pkg/log"
	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscription"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// delivery is a notification waiting for its handler.
type delivery struct {
	sub *Subscription
	n   wire.Notification
}

// Channel is a client subscription channel to one server.
type Channel struct {
	config    Config
	peer      interaction.Peer
	remote    *remoteService
	sessionID string
	limiter   *rate.Limiter

	mu         sync.Mutex
	state      State
	svc        service
	fallback   *localService
	channelID  int
	lastAck    int
	subs       []*Subscription
	byID       map[int]*Subscription
	lost       map[int]struct{}
	parked     []wire.Notification
	deliveries []delivery
	ready      chan struct{}
	started    bool
	closed     bool

	// Wake the management loop and the dispatcher.
	kick     chan struct{}
	dispatch chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewChannel creates a client channel to the server reached through peer.
// Peers that cannot batch requests are wrapped with interaction.AsPeer.
// The channel does nothing until Start is called.
func NewChannel(peer model.RemoteClient, config Config) *Channel {
	config = config.withDefaults()
	p := interaction.AsPeer(peer)
	return &Channel{
		config:    config,
		peer:      p,
		remote:    &remoteService{peer: p, path: config.ServicePath},
		sessionID: uuid.NewString(),
		limiter:   rate.NewLimiter(rate.Every(config.ManagementInterval), 1),
		state:     StateNoChannel,
		byID:      make(map[int]*Subscription),
		lost:      make(map[int]struct{}),
		ready:     make(chan struct{}),
		kick:      make(chan struct{}, 1),
		dispatch:  make(chan struct{}, 1),
	}
}

// SessionID identifies the channel in protocol logs.
func (c *Channel) SessionID() string {
	return c.sessionID
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChannelID returns the server channel id, or 0 if no channel is open.
func (c *Channel) ChannelID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

// Local returns true if the channel runs on the in-process fallback
// service.
func (c *Channel) Local() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.svc != nil && c.svc.local()
}

// Subscriptions returns the subscriptions not yet unsubscribed.
func (c *Channel) Subscriptions() []*Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		if !s.unsubscribeRequested {
			out = append(out, s)
		}
	}
	return out
}

// Start launches the management, notification and dispatch loops. They
// run until ctx is done or Close is called.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true

	c.ctx, c.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(c.ctx)
	g.Go(func() error { return c.manage(gctx) })
	g.Go(func() error { return c.notify(gctx) })
	g.Go(func() error { return c.dispatchLoop(gctx) })
	c.group = g
	return nil
}

// Subscribe watches path on the server. handler is called for every
// change once the subscription is registered.
func (c *Channel) Subscribe(path string, monitor, publish time.Duration, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if monitor < 0 || publish < 0 {
		return nil, fmt.Errorf("%w: %w", wire.ErrInvalidArgument, subscription.ErrInvalidInterval)
	}

	sub := &Subscription{
		channel:     c,
		servicePath: c.config.ServicePath,
		path:        path,
		monitor:     monitor,
		publish:     publish,
		handler:     handler,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	c.signal()
	return sub, nil
}

func (c *Channel) unsubscribe(s *Subscription) {
	c.mu.Lock()
	if s.unsubscribeRequested || s.removed {
		c.mu.Unlock()
		return
	}
	s.unsubscribeRequested = true
	c.mu.Unlock()

	c.signal()
}

// Close stops the loops and unregisters all subscriptions, waiting at most
// CloseTimeout for the server. Handlers are not called after Close
// returns. It is safe to call Close multiple times.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	old := c.state
	c.state = StateTerminated

	svc, channel := c.svc, c.channelID
	var ids []int
	for _, s := range c.subs {
		if old == StateActive && s.id != 0 {
			ids = append(ids, s.id)
		}
		s.removed = true
	}
	if old == StateActive {
		for id := range c.lost {
			ids = append(ids, id)
		}
	}
	c.deliveries = nil
	cancel, group, fallback := c.cancel, c.group, c.fallback
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		_ = group.Wait()
	}

	if len(ids) > 0 && svc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.CloseTimeout)
		for start := 0; start < len(ids); start += c.config.UnregisterBatchSize {
			end := min(start+c.config.UnregisterBatchSize, len(ids))
			if _, err := svc.unregister(ctx, channel, ids[start:end]); err != nil {
				c.debugLog("unregistration on close failed", "error", err)
				break
			}
		}
		cancel()
	}
	if fallback != nil {
		fallback.close()
	}

	c.stateChanged(old, StateTerminated, "closed")
	return nil
}

// signal wakes the management loop.
func (c *Channel) signal() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// manage runs management passes: open the channel, unregister, register.
func (c *Channel) manage(ctx context.Context) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}

		more, err := c.managePass(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.logError(log.LayerTransport, "management", err)
			if !sleep(ctx, c.config.ReconnectInterval) {
				return nil
			}
			continue
		}
		if more {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.kick:
		}
	}
}

// managePass returns true if work is left for another pass.
func (c *Channel) managePass(ctx context.Context) (bool, error) {
	c.mu.Lock()
	idle := len(c.subs) == 0 && len(c.lost) == 0 && c.state == StateNoChannel
	c.mu.Unlock()
	if idle {
		// Channels are opened on the first subscription.
		return false, nil
	}

	svc, channel, err := c.ensureChannel(ctx)
	if err != nil {
		return false, err
	}

	moreUnregister, err := c.unregisterPass(ctx, svc, channel)
	if err != nil {
		return false, err
	}
	moreRegister, err := c.registerPass(ctx, svc, channel)
	if err != nil {
		return false, err
	}
	return moreUnregister || moreRegister, nil
}

// ensureChannel opens a channel unless one is active.
func (c *Channel) ensureChannel(ctx context.Context) (service, int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, 0, ErrClosed
	}
	if c.state == StateActive {
		svc, id := c.svc, c.channelID
		c.mu.Unlock()
		return svc, id, nil
	}
	old := c.state
	c.state = StateOpening
	c.mu.Unlock()

	if old != StateOpening {
		c.stateChanged(old, StateOpening, "")
	}

	svc, id, err := c.open(ctx)
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, 0, ErrClosed
	}
	c.svc, c.channelID, c.lastAck = svc, id, wire.NoNotification
	c.state = StateActive
	close(c.ready)
	c.ready = make(chan struct{})
	c.mu.Unlock()

	c.emit(log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerService,
		Category:  log.CategoryChannel,
		ChannelID: int64(id),
		Channel: &log.ChannelEvent{
			Action:    log.ChannelCreated,
			QueueSize: c.config.QueueSize,
			Local:     svc.local(),
		},
	})
	c.stateChanged(StateOpening, StateActive, "")
	return svc, id, nil
}

// open creates a channel on the server, or on the in-process fallback if
// the server has no subscription service.
func (c *Channel) open(ctx context.Context) (service, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	c.mu.Lock()
	fallback := c.fallback
	c.mu.Unlock()

	if fallback == nil {
		id, err := c.remote.create(ctx, c.config.QueueSize)
		if err == nil {
			return c.remote, id, nil
		}
		if !errors.Is(err, wire.ErrNotFound) {
			return nil, 0, err
		}
		c.debugLog("no subscription service, using local fallback", "servicePath", c.config.ServicePath)
		fallback = c.localService()
	}

	id, err := fallback.create(ctx, c.config.QueueSize)
	if err != nil {
		return nil, 0, err
	}
	return fallback, id, nil
}

func (c *Channel) localService() *localService {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback == nil {
		resolver := c.config.LocalResolver
		if resolver == nil {
			resolver = subscription.RemoteResolver{Client: c.peer}
		}
		c.fallback = newLocalService(c.ctx, resolver, c.config)
	}
	return c.fallback
}

// unregisterPass unregisters one batch of unsubscribed and lost
// subscriptions. Unsubscribed subscriptions the server never knew are
// dropped without a round trip.
func (c *Channel) unregisterPass(ctx context.Context, svc service, channel int) (bool, error) {
	c.mu.Lock()
	var (
		ids    []int
		owners []*Subscription
		due    int
	)
	kept := c.subs[:0]
	for _, s := range c.subs {
		if s.unsubscribeRequested && s.id == 0 && !s.registering {
			s.removed = true
			continue
		}
		kept = append(kept, s)
		if s.unsubscribeRequested && s.id != 0 {
			due++
			if len(ids) < c.config.UnregisterBatchSize {
				ids = append(ids, s.id)
				owners = append(owners, s)
			}
		}
	}
	clear(c.subs[len(kept):])
	c.subs = kept
	for id := range c.lost {
		due++
		if len(ids) < c.config.UnregisterBatchSize {
			ids = append(ids, id)
			owners = append(owners, nil)
		}
	}
	c.mu.Unlock()

	if len(ids) == 0 {
		return false, nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	results, err := svc.unregister(rctx, channel, ids)
	cancel()
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.channelID != channel {
		c.mu.Unlock()
		return true, nil
	}
	invalid := false
	for i, r := range results {
		if errors.Is(r.err, wire.ErrInvalidSubscriptionChannel) {
			invalid = true
			break
		}
		// Any other answer means the server no longer knows the id.
		if owner := owners[i]; owner != nil {
			c.removeLocked(owner)
		} else {
			delete(c.lost, ids[i])
		}
	}
	c.mu.Unlock()

	if invalid {
		c.invalidate(channel, "unregistration refused")
		return true, nil
	}
	for _, id := range ids {
		c.emit(log.Event{
			Direction: log.DirectionOut,
			Layer:     log.LayerService,
			Category:  log.CategorySubscription,
			ChannelID: int64(channel),
			Subscription: &log.SubscriptionEvent{
				Action:         log.SubscriptionUnregistered,
				SubscriptionID: int64(id),
			},
		})
	}
	return due > len(ids), nil
}

// registerPass registers one batch of subscriptions without id.
func (c *Channel) registerPass(ctx context.Context, svc service, channel int) (bool, error) {
	c.mu.Lock()
	var (
		batch []*Subscription
		due   int
	)
	for _, s := range c.subs {
		if s.id != 0 || s.failed != nil || s.unsubscribeRequested || s.registering {
			continue
		}
		due++
		if len(batch) < c.config.RegisterBatchSize {
			s.registering = true
			batch = append(batch, s)
		}
	}
	c.mu.Unlock()

	if len(batch) == 0 {
		return false, nil
	}

	regs := make([]registration, len(batch))
	for i, s := range batch {
		regs[i] = registration{path: s.path, monitor: s.monitor, publish: s.publish}
	}
	rctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	results, err := svc.register(rctx, channel, regs)
	cancel()

	c.mu.Lock()
	for _, s := range batch {
		s.registering = false
	}
	if err != nil {
		c.releaseParkedLocked()
		c.mu.Unlock()
		return false, err
	}
	if c.channelID != channel {
		c.mu.Unlock()
		return true, nil
	}

	more := due > len(batch)
	invalid := false
	var events []log.Event
	for i, r := range results {
		s := batch[i]
		switch {
		case r.err == nil:
			s.id = r.id
			c.byID[r.id] = s
			if s.unsubscribeRequested {
				more = true
			}
			events = append(events, subscriptionEvent(log.SubscriptionRegistered, channel, s))
		case errors.Is(r.err, wire.ErrInvalidSubscriptionChannel):
			invalid = true
		default:
			s.failed = r.err
			events = append(events, subscriptionEvent(log.SubscriptionFailed, channel, s))
		}
	}
	if c.releaseParkedLocked() {
		more = true
	}
	c.mu.Unlock()

	for _, e := range events {
		c.emit(e)
	}
	for i, r := range results {
		if r.err != nil && !errors.Is(r.err, wire.ErrInvalidSubscriptionChannel) {
			c.debugLog("subscription refused", "path", batch[i].path, "error", r.err)
		}
	}
	if invalid {
		c.invalidate(channel, "registration refused")
		return true, nil
	}
	return more, nil
}

func subscriptionEvent(action log.SubscriptionAction, channel int, s *Subscription) log.Event {
	return log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerService,
		Category:  log.CategorySubscription,
		ChannelID: int64(channel),
		Subscription: &log.SubscriptionEvent{
			Action:          action,
			SubscriptionID:  int64(s.id),
			Path:            s.path,
			MonitorInterval: s.monitor,
			PublishInterval: s.publish,
		},
	}
}

// notify runs the wait/acknowledge loop.
func (c *Channel) notify(ctx context.Context) error {
	for {
		c.mu.Lock()
		state, svc, channel, ack, ready := c.state, c.svc, c.channelID, c.lastAck, c.ready
		c.mu.Unlock()

		if state != StateActive {
			select {
			case <-ctx.Done():
				return nil
			case <-ready:
			}
			continue
		}

		rctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		batch, err := svc.wait(rctx, channel, ack)
		cancel()
		if ctx.Err() != nil {
			return nil
		}

		switch {
		case err == nil:
			c.deliver(channel, ack, batch)
		case errors.Is(err, wire.ErrNotificationsLost):
			c.resynchronize(channel)
		case errors.Is(err, wire.ErrInvalidSubscriptionChannel):
			c.invalidate(channel, err.Error())
		default:
			c.logError(log.LayerTransport, "wait", err)
			if !sleep(ctx, c.config.ReconnectInterval) {
				return nil
			}
		}
	}
}

// deliver queues a received batch for the dispatcher and advances the
// acknowledge cursor. Notifications of unknown subscriptions are held back
// while registrations are in flight, and otherwise recorded as lost.
func (c *Channel) deliver(channel, ack int, batch []wire.Notification) {
	c.mu.Lock()
	if c.closed || c.channelID != channel {
		c.mu.Unlock()
		return
	}

	var lost []int
	registering := c.registeringLocked()
	for _, n := range batch {
		if s, ok := c.byID[n.SubscriptionID]; ok {
			c.deliveries = append(c.deliveries, delivery{sub: s, n: n})
			continue
		}
		if registering {
			c.parked = append(c.parked, n)
			continue
		}
		if c.markLostLocked(n.SubscriptionID) {
			lost = append(lost, n.SubscriptionID)
		}
	}
	if last := wire.LastID(batch); last > c.lastAck {
		c.lastAck = last
	}
	c.mu.Unlock()

	if len(batch) > 0 {
		c.emit(log.Event{
			Direction: log.DirectionIn,
			Layer:     log.LayerChannel,
			Category:  log.CategoryNotification,
			ChannelID: int64(channel),
			Notification: &log.NotificationEvent{
				Count:       len(batch),
				FirstID:     int64(batch[0].ID),
				LastID:      int64(wire.LastID(batch)),
				Acknowledge: int64(ack),
			},
		})
		c.wakeDispatcher()
	}
	c.reportLost(channel, lost)
}

// releaseParkedLocked resolves held-back notifications once no
// registration is in flight. Returns true if lost subscriptions were found.
func (c *Channel) releaseParkedLocked() bool {
	if len(c.parked) == 0 || c.registeringLocked() {
		return false
	}
	found := false
	for _, n := range c.parked {
		if s, ok := c.byID[n.SubscriptionID]; ok {
			c.deliveries = append(c.deliveries, delivery{sub: s, n: n})
			continue
		}
		if c.markLostLocked(n.SubscriptionID) {
			found = true
		}
	}
	c.parked = nil
	c.wakeDispatcher()
	return found
}

func (c *Channel) registeringLocked() bool {
	for _, s := range c.subs {
		if s.registering {
			return true
		}
	}
	return false
}

func (c *Channel) markLostLocked(id int) bool {
	if _, ok := c.lost[id]; ok {
		return false
	}
	c.lost[id] = struct{}{}
	return true
}

func (c *Channel) reportLost(channel int, ids []int) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		c.debugLog("lost subscription", "channel", channel, "subscription", id)
		c.emit(log.Event{
			Direction: log.DirectionIn,
			Layer:     log.LayerChannel,
			Category:  log.CategorySubscription,
			ChannelID: int64(channel),
			Subscription: &log.SubscriptionEvent{
				Action:         log.SubscriptionLost,
				SubscriptionID: int64(id),
			},
		})
	}
	c.signal()
}

func (c *Channel) removeLocked(s *Subscription) {
	s.removed = true
	if c.byID[s.id] == s {
		delete(c.byID, s.id)
	}
	for i, other := range c.subs {
		if other == s {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
}

// resynchronize makes the next wait acknowledge 0 after an overflow.
func (c *Channel) resynchronize(channel int) {
	c.mu.Lock()
	if c.channelID == channel {
		c.lastAck = wire.NoNotification
	}
	c.mu.Unlock()

	c.emit(log.Event{
		Direction:    log.DirectionIn,
		Layer:        log.LayerChannel,
		Category:     log.CategoryNotification,
		ChannelID:    int64(channel),
		Notification: &log.NotificationEvent{Overflow: true},
	})
}

// invalidate forgets the channel and all server ids so that the next
// management pass opens a new channel and registers everything again.
func (c *Channel) invalidate(channel int, reason string) {
	c.mu.Lock()
	if c.channelID != channel || c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	c.channelID = 0
	c.lastAck = wire.NoNotification
	for _, s := range c.subs {
		s.id = 0
	}
	c.byID = make(map[int]*Subscription)
	c.lost = make(map[int]struct{})
	c.parked = nil
	c.mu.Unlock()

	c.emit(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerService,
		Category:  log.CategoryChannel,
		ChannelID: int64(channel),
		Channel:   &log.ChannelEvent{Action: log.ChannelInvalidated, Reason: reason},
	})
	c.stateChanged(StateActive, StateReconnecting, reason)
	c.signal()
}

func (c *Channel) wakeDispatcher() {
	select {
	case c.dispatch <- struct{}{}:
	default:
	}
}

// dispatchLoop calls handlers in notification order.
func (c *Channel) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.dispatch:
		}

		for {
			c.mu.Lock()
			if c.closed || len(c.deliveries) == 0 {
				c.mu.Unlock()
				break
			}
			d := c.deliveries[0]
			c.deliveries = c.deliveries[1:]
			skip := d.sub.unsubscribeRequested || d.sub.removed
			c.mu.Unlock()

			if !skip && ctx.Err() == nil {
				d.sub.handler(d.sub, d.n)
			}
		}
	}
}

func (c *Channel) stateChanged(old, new State, reason string) {
	if old == new {
		return
	}
	c.debugLog("subscription channel state changed", "old", old, "new", new, "reason", reason)
	c.emit(log.Event{
		Layer:       log.LayerChannel,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{OldState: old.String(), NewState: new.String(), Reason: reason},
	})
	if c.config.OnStateChange != nil {
		c.config.OnStateChange(old, new)
	}
}

func (c *Channel) emit(e log.Event) {
	e.SessionID = c.sessionID
	e.LocalRole = log.RoleClient
	log.Emit(c.config.ProtocolLogger, e)
}

func (c *Channel) logError(layer log.Layer, where string, err error) {
	if c.config.Logger != nil {
		c.config.Logger.Warn("subscription channel error", "context", where, "error", err)
	}
	c.emit(log.Event{
		Layer:    layer,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Type:    wire.ErrorType(err),
			Context: where,
		},
	})
}

func (c *Channel) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}

// sleep waits for d. Returns false if ctx is done first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
