package log

import (
	"time"
)

// Event represents a protocol log event captured by a server-side or
// client-side subscription channel.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the emitting service or client channel (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is a server or a client.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address or base URL.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// ChannelID is the subscription channel id, 0 if none is open.
	ChannelID int64 `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Channel      *ChannelEvent      `cbor:"9,keyasint,omitempty"`
	Subscription *SubscriptionEvent `cbor:"10,keyasint,omitempty"`
	Notification *NotificationEvent `cbor:"11,keyasint,omitempty"`
	StateChange  *StateChangeEvent  `cbor:"12,keyasint,omitempty"`
	Error        *ErrorEventData    `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the request/response layer (HTTP, multi-request).
	LayerTransport Layer = 0
	// LayerChannel is the subscription channel (queue, wait/acknowledge).
	LayerChannel Layer = 1
	// LayerService is the subscription service facade.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerChannel:
		return "CHANNEL"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryChannel indicates a channel lifecycle event.
	CategoryChannel Category = 0
	// CategorySubscription indicates a subscription lifecycle event.
	CategorySubscription Category = 1
	// CategoryNotification indicates notifications were queued or delivered.
	CategoryNotification Category = 2
	// CategoryState indicates a state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryChannel:
		return "CHANNEL"
	case CategorySubscription:
		return "SUBSCRIPTION"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates the local role in the protocol.
type Role uint8

const (
	// RoleServer indicates the local side hosts the subscription service.
	RoleServer Role = 1
	// RoleClient indicates the local side runs a client channel.
	RoleClient Role = 2
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleServer:
		return "SERVER"
	case RoleClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// ChannelAction identifies a channel lifecycle step.
type ChannelAction uint8

const (
	ChannelCreated     ChannelAction = 0
	ChannelClosed      ChannelAction = 1
	ChannelExpired     ChannelAction = 2
	ChannelInvalidated ChannelAction = 3
)

// String returns the channel action name.
func (a ChannelAction) String() string {
	switch a {
	case ChannelCreated:
		return "CREATED"
	case ChannelClosed:
		return "CLOSED"
	case ChannelExpired:
		return "EXPIRED"
	case ChannelInvalidated:
		return "INVALIDATED"
	default:
		return "UNKNOWN"
	}
}

// ChannelEvent captures a channel lifecycle step.
type ChannelEvent struct {
	Action    ChannelAction `cbor:"1,keyasint"`
	QueueSize int           `cbor:"2,keyasint,omitempty"`
	Local     bool          `cbor:"3,keyasint,omitempty"` // in-process fallback service
	Reason    string        `cbor:"4,keyasint,omitempty"`
}

// SubscriptionAction identifies a subscription lifecycle step.
type SubscriptionAction uint8

const (
	SubscriptionRegistered   SubscriptionAction = 0
	SubscriptionUnregistered SubscriptionAction = 1
	SubscriptionFailed       SubscriptionAction = 2
	SubscriptionLost         SubscriptionAction = 3
)

// String returns the subscription action name.
func (a SubscriptionAction) String() string {
	switch a {
	case SubscriptionRegistered:
		return "REGISTERED"
	case SubscriptionUnregistered:
		return "UNREGISTERED"
	case SubscriptionFailed:
		return "FAILED"
	case SubscriptionLost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

// SubscriptionEvent captures a subscription lifecycle step.
type SubscriptionEvent struct {
	Action          SubscriptionAction `cbor:"1,keyasint"`
	SubscriptionID  int64              `cbor:"2,keyasint,omitempty"`
	Path            string             `cbor:"3,keyasint,omitempty"`
	MonitorInterval time.Duration      `cbor:"4,keyasint,omitempty"`
	PublishInterval time.Duration      `cbor:"5,keyasint,omitempty"`
}

// NotificationEvent captures a batch of notifications entering a queue
// (DirectionIn on the server) or handed to a waiter (DirectionOut on the
// server, DirectionIn on the client).
type NotificationEvent struct {
	Count       int   `cbor:"1,keyasint"`
	FirstID     int64 `cbor:"2,keyasint,omitempty"`
	LastID      int64 `cbor:"3,keyasint,omitempty"`
	Acknowledge int64 `cbor:"4,keyasint,omitempty"` // last acknowledged id of the wait
	Dropped     int   `cbor:"5,keyasint,omitempty"` // discarded by overflow
	Overflow    bool  `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures a client channel state transition.
type StateChangeEvent struct {
	OldState string `cbor:"1,keyasint"`
	NewState string `cbor:"2,keyasint"`
	Reason   string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
	Type    string `cbor:"3,keyasint,omitempty"` // protocol error type, if any
	Context string `cbor:"4,keyasint,omitempty"`
}
