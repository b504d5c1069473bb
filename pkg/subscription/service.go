package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/woopsa-protocol/woopsa-go/pkg/log"
	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// Subscription service object and method names.
const (
	ServiceName = "SubscriptionService"
	ServicePath = "/" + ServiceName

	MethodCreateSubscriptionChannel = "CreateSubscriptionChannel"
	MethodRegisterSubscription      = "RegisterSubscription"
	MethodUnregisterSubscription    = "UnregisterSubscription"
	MethodWaitNotification          = "WaitNotification"
)

// Subscription service argument names.
const (
	ArgNotificationQueueSize = "NotificationQueueSize"
	ArgSubscriptionChannel   = "SubscriptionChannel"
	ArgPropertyLink          = "PropertyLink"
	ArgMonitorInterval       = "MonitorInterval"
	ArgPublishInterval       = "PublishInterval"
	ArgSubscriptionID        = "SubscriptionId"
	ArgLastNotificationID    = "LastNotificationId"
)

// maxChannelIDOffset bounds the random first channel id.
const maxChannelIDOffset = 1 << 20

// Config holds subscription service configuration.
type Config struct {
	// QueueSize is used when a channel is created with a size <= 0.
	QueueSize int

	// ChannelLifetime is the idle time after which a channel is removed.
	ChannelLifetime time.Duration

	// WaitTimeout bounds WaitNotification.
	WaitTimeout time.Duration

	// MaxChannels limits open channels (0 = unlimited).
	MaxChannels int

	// Logger for operational logging (optional).
	Logger *slog.Logger

	// ProtocolLogger receives protocol events (optional).
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default subscription service configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:       DefaultQueueSize,
		ChannelLifetime: DefaultChannelLifetime,
		WaitTimeout:     DefaultWaitTimeout,
	}
}

// Service owns the subscription channels of one server.
//
// Channels live in a TTL cache keyed by channel id. Every client contact
// refreshes the channel's TTL; channels idle for longer than the lifetime
// are evicted and closed by the cache's cleanup loop (see Start).
type Service struct {
	config    Config
	resolver  Resolver
	sessionID string

	channels *ttlcache.Cache[int, *Channel]

	mu     sync.Mutex
	nextID int

	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}

	// watcher is closed when the goroutine started by Start returns.
	watcher chan struct{}
}

// NewService creates a subscription service resolving paths with resolver.
func NewService(resolver Resolver, config Config) *Service {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.ChannelLifetime <= 0 {
		config.ChannelLifetime = DefaultChannelLifetime
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = DefaultWaitTimeout
	}

	s := &Service{
		config:    config,
		resolver:  resolver,
		sessionID: uuid.NewString(),
		channels: ttlcache.New[int, *Channel](
			ttlcache.WithTTL[int, *Channel](config.ChannelLifetime),
		),
		// Ids of a previous process are unlikely to address a new channel.
		nextID:  rand.IntN(maxChannelIDOffset),
		done:    make(chan struct{}),
		watcher: make(chan struct{}),
	}

	s.channels.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[int, *Channel]) {
		if reason == ttlcache.EvictionReasonExpired {
			s.debugLog("subscription channel expired", "channel", item.Key())
			item.Value().expire()
			return
		}
		item.Value().Close()
	})
	return s
}

// SessionID identifies this service instance in protocol logs.
func (s *Service) SessionID() string {
	return s.sessionID
}

// Start runs the expiry sweep until ctx is done or the service is closed.
func (s *Service) Start(ctx context.Context) {
	if s.closed.Load() || !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.channels.Start()
	go func() {
		defer close(s.watcher)
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}

// Sweep removes expired channels immediately.
func (s *Service) Sweep() {
	s.channels.DeleteExpired()
}

// Len returns the number of open channels.
func (s *Service) Len() int {
	return s.channels.Len()
}

// CreateChannel opens a channel with the given queue size and returns its id.
func (s *Service) CreateChannel(queueSize int) (int, error) {
	if s.closed.Load() {
		return 0, fmt.Errorf("%w: service closed", ErrChannelClosed)
	}
	if s.config.MaxChannels > 0 && s.channels.Len() >= s.config.MaxChannels {
		return 0, ErrTooManyChannels
	}
	if queueSize <= 0 {
		queueSize = s.config.QueueSize
	}

	s.mu.Lock()
	s.nextID++
	if s.nextID <= 0 {
		s.nextID = 1
	}
	id := s.nextID
	s.mu.Unlock()

	ch := NewChannel(id, ChannelConfig{
		QueueSize:      queueSize,
		Resolver:       s.resolver,
		Logger:         s.config.Logger,
		ProtocolLogger: s.config.ProtocolLogger,
		SessionID:      s.sessionID,
	})
	s.channels.Set(id, ch, ttlcache.DefaultTTL)

	s.debugLog("subscription channel created", "channel", id, "queueSize", queueSize)
	log.Emit(s.config.ProtocolLogger, log.Event{
		SessionID: s.sessionID,
		Layer:     log.LayerService,
		Category:  log.CategoryChannel,
		LocalRole: log.RoleServer,
		ChannelID: int64(id),
		Channel:   &log.ChannelEvent{Action: log.ChannelCreated, QueueSize: queueSize},
	})
	return id, nil
}

// Channel returns the open channel with the given id and refreshes its
// lifetime. Returns wire.ErrInvalidSubscriptionChannel if there is none.
func (s *Service) Channel(id int) (*Channel, error) {
	item := s.channels.Get(id)
	if item == nil {
		return nil, fmt.Errorf("%w: %d", wire.ErrInvalidSubscriptionChannel, id)
	}
	ch := item.Value()
	if ch.Closed() {
		s.channels.Delete(id)
		return nil, fmt.Errorf("%w: %d", wire.ErrInvalidSubscriptionChannel, id)
	}
	return ch, nil
}

// RegisterSubscription creates a subscription on a channel.
func (s *Service) RegisterSubscription(ctx context.Context, channel int, path string, monitor, publish time.Duration) (int, error) {
	ch, err := s.Channel(channel)
	if err != nil {
		return 0, err
	}
	return ch.Register(ctx, path, monitor, publish)
}

// UnregisterSubscription removes a subscription from a channel.
// Returns false if the subscription is unknown.
func (s *Service) UnregisterSubscription(channel, id int) (bool, error) {
	ch, err := s.Channel(channel)
	if err != nil {
		return false, err
	}
	return ch.Unregister(id)
}

// WaitNotification acknowledges notifications up to lastAck and waits for
// new ones for at most the configured wait timeout.
func (s *Service) WaitNotification(ctx context.Context, channel, lastAck int) ([]wire.Notification, error) {
	ch, err := s.Channel(channel)
	if err != nil {
		return nil, err
	}
	batch, err := ch.Wait(ctx, lastAck, s.config.WaitTimeout)
	if err != nil {
		return nil, err
	}
	// A long wait must not let the channel expire right after delivery.
	s.channels.Get(channel)
	return batch, nil
}

// CloseChannel closes and removes a channel.
func (s *Service) CloseChannel(id int) bool {
	item, ok := s.channels.GetAndDelete(id)
	if !ok {
		return false
	}
	item.Value().Close()
	return true
}

// Close closes all channels and stops the expiry sweep.
func (s *Service) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.done)
	for _, item := range s.channels.Items() {
		item.Value().Close()
	}
	s.channels.DeleteAll()
	if s.started.Load() {
		s.channels.Stop()
	}
}

// Object returns the addressable service object exposing the four
// subscription methods.
func (s *Service) Object() *model.Object {
	obj := model.NewObject(ServiceName)

	methods := []*model.Method{
		model.NewMethod(&model.MethodMetadata{
			Name:       MethodCreateSubscriptionChannel,
			ReturnType: value.TypeInteger,
			Arguments: []model.ArgumentMetadata{
				{Name: ArgNotificationQueueSize, Type: value.TypeInteger},
			},
		}, s.invokeCreate),
		model.NewMethod(&model.MethodMetadata{
			Name:       MethodRegisterSubscription,
			ReturnType: value.TypeInteger,
			Arguments: []model.ArgumentMetadata{
				{Name: ArgSubscriptionChannel, Type: value.TypeInteger},
				{Name: ArgPropertyLink, Type: value.TypeLink},
				{Name: ArgMonitorInterval, Type: value.TypeTimeSpan},
				{Name: ArgPublishInterval, Type: value.TypeTimeSpan},
			},
		}, s.invokeRegister),
		model.NewMethod(&model.MethodMetadata{
			Name:       MethodUnregisterSubscription,
			ReturnType: value.TypeLogical,
			Arguments: []model.ArgumentMetadata{
				{Name: ArgSubscriptionChannel, Type: value.TypeInteger},
				{Name: ArgSubscriptionID, Type: value.TypeInteger},
			},
		}, s.invokeUnregister),
		model.NewMethod(&model.MethodMetadata{
			Name:       MethodWaitNotification,
			ReturnType: value.TypeJSONData,
			Arguments: []model.ArgumentMetadata{
				{Name: ArgSubscriptionChannel, Type: value.TypeInteger},
				{Name: ArgLastNotificationID, Type: value.TypeInteger},
			},
		}, s.invokeWait),
	}
	for _, m := range methods {
		// Names are fixed and distinct.
		_ = obj.AddMethod(m)
	}
	return obj
}

func (s *Service) invokeCreate(_ context.Context, args map[string]value.Value) (value.Value, error) {
	size, err := intArg(args, ArgNotificationQueueSize)
	if err != nil {
		return value.Value{}, err
	}
	id, err := s.CreateChannel(size)
	if err != nil {
		return value.Value{}, err
	}
	return value.Integer(int64(id)), nil
}

func (s *Service) invokeRegister(ctx context.Context, args map[string]value.Value) (value.Value, error) {
	channel, err := intArg(args, ArgSubscriptionChannel)
	if err != nil {
		return value.Value{}, err
	}
	monitor, err := args[ArgMonitorInterval].AsDuration()
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %s: %v", wire.ErrInvalidArgument, ArgMonitorInterval, err)
	}
	publish, err := args[ArgPublishInterval].AsDuration()
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %s: %v", wire.ErrInvalidArgument, ArgPublishInterval, err)
	}
	id, err := s.RegisterSubscription(ctx, channel, args[ArgPropertyLink].Text(), monitor, publish)
	if err != nil {
		return value.Value{}, err
	}
	return value.Integer(int64(id)), nil
}

func (s *Service) invokeUnregister(_ context.Context, args map[string]value.Value) (value.Value, error) {
	channel, err := intArg(args, ArgSubscriptionChannel)
	if err != nil {
		return value.Value{}, err
	}
	id, err := intArg(args, ArgSubscriptionID)
	if err != nil {
		return value.Value{}, err
	}
	ok, err := s.UnregisterSubscription(channel, id)
	if err != nil {
		return value.Value{}, err
	}
	return value.Logical(ok), nil
}

func (s *Service) invokeWait(ctx context.Context, args map[string]value.Value) (value.Value, error) {
	channel, err := intArg(args, ArgSubscriptionChannel)
	if err != nil {
		return value.Value{}, err
	}
	lastAck, err := intArg(args, ArgLastNotificationID)
	if err != nil {
		return value.Value{}, err
	}
	batch, err := s.WaitNotification(ctx, channel, lastAck)
	if err != nil {
		return value.Value{}, err
	}
	return wire.NotificationsValue(batch)
}

func intArg(args map[string]value.Value, name string) (int, error) {
	n, err := args[name].AsInt()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", wire.ErrInvalidArgument, name, err)
	}
	return int(n), nil
}

func (s *Service) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}
