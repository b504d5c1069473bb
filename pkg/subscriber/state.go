package subscriber

import (
	"errors"
	"log/slog"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/log"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscription"
)

// Subscriber errors.
var (
	ErrClosed     = errors.New("subscriber closed")
	ErrNilHandler = errors.New("nil notification handler")
)

// Default client channel settings.
const (
	DefaultManagementInterval  = time.Millisecond
	DefaultReconnectInterval   = time.Second
	DefaultRegisterBatchSize   = 50
	DefaultUnregisterBatchSize = 250
	DefaultRequestTimeout      = subscription.DefaultWaitTimeout + 10*time.Second
	DefaultCloseTimeout        = 2 * time.Second
)

// State represents the client channel state.
type State uint8

const (
	// StateNoChannel indicates no channel has been opened yet.
	StateNoChannel State = iota

	// StateOpening indicates a channel is being created.
	StateOpening

	// StateActive indicates the channel is open.
	StateActive

	// StateReconnecting indicates the channel was invalidated and is
	// about to be recreated.
	StateReconnecting

	// StateTerminated indicates the channel has been closed.
	StateTerminated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNoChannel:
		return "NO_CHANNEL"
	case StateOpening:
		return "OPENING"
	case StateActive:
		return "ACTIVE"
	case StateReconnecting:
		return "RECONNECTING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Config holds client channel configuration.
type Config struct {
	// QueueSize is the notification queue size requested from the server.
	QueueSize int

	// ServicePath locates the subscription service on the server.
	ServicePath string

	// ManagementInterval is the minimum period between management passes.
	ManagementInterval time.Duration

	// ReconnectInterval is the pause after a transport error.
	ReconnectInterval time.Duration

	// RegisterBatchSize caps registrations per round trip.
	RegisterBatchSize int

	// UnregisterBatchSize caps unregistrations per round trip.
	UnregisterBatchSize int

	// RequestTimeout bounds a single round trip, including a wait.
	RequestTimeout time.Duration

	// CloseTimeout bounds the unregistrations sent by Close.
	CloseTimeout time.Duration

	// LocalResolver serves the in-process fallback service (default:
	// sampling the server through reads).
	LocalResolver subscription.Resolver

	// Logger for operational logging (optional).
	Logger *slog.Logger

	// ProtocolLogger receives protocol events (optional).
	ProtocolLogger log.Logger

	// OnStateChange is called after every state transition (optional).
	OnStateChange func(oldState, newState State)
}

// DefaultConfig returns the default client channel configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:           subscription.DefaultQueueSize,
		ServicePath:         subscription.ServicePath,
		ManagementInterval:  DefaultManagementInterval,
		ReconnectInterval:   DefaultReconnectInterval,
		RegisterBatchSize:   DefaultRegisterBatchSize,
		UnregisterBatchSize: DefaultUnregisterBatchSize,
		RequestTimeout:      DefaultRequestTimeout,
		CloseTimeout:        DefaultCloseTimeout,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.ServicePath == "" {
		c.ServicePath = d.ServicePath
	}
	if c.ManagementInterval <= 0 {
		c.ManagementInterval = d.ManagementInterval
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = d.ReconnectInterval
	}
	if c.RegisterBatchSize <= 0 {
		c.RegisterBatchSize = d.RegisterBatchSize
	}
	if c.UnregisterBatchSize <= 0 {
		c.UnregisterBatchSize = d.UnregisterBatchSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = d.CloseTimeout
	}
	return c
}
