package wire

import (
	"encoding/json"
	"errors"
)

// Protocol errors.
var (
	ErrNotFound                   = errors.New("not found")
	ErrInvalidSubscriptionChannel = errors.New("invalid subscription channel")
	ErrNotificationsLost          = errors.New("notifications lost")
	ErrInvalidArgument            = errors.New("invalid argument")
	ErrReadOnly                   = errors.New("read-only property")
)

// Error type names used on the wire.
const (
	TypeNotFound                   = "WoopsaNotFoundException"
	TypeInvalidSubscriptionChannel = "WoopsaInvalidSubscriptionChannelException"
	TypeNotificationsLost          = "WoopsaNotificationsLostException"
	TypeInvalidArgument            = "WoopsaInvalidArgumentException"
	TypeReadOnly                   = "WoopsaReadOnlyException"
	TypeGeneric                    = "WoopsaException"
)

var typeSentinels = map[string]error{
	TypeNotFound:                   ErrNotFound,
	TypeInvalidSubscriptionChannel: ErrInvalidSubscriptionChannel,
	TypeNotificationsLost:          ErrNotificationsLost,
	TypeInvalidArgument:            ErrInvalidArgument,
	TypeReadOnly:                   ErrReadOnly,
}

// Error is the JSON body of a failed call.
type Error struct {
	IsError bool   `json:"Error"`
	Message string `json:"Message"`
	Type    string `json:"Type"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Message
}

// Unwrap returns the sentinel matching the error type, if any.
func (e *Error) Unwrap() error {
	return typeSentinels[e.Type]
}

// NewError builds the wire form of err. Sentinels anywhere in the chain
// select the type name; anything else is reported as a generic exception.
func NewError(err error) *Error {
	var we *Error
	if errors.As(err, &we) {
		return &Error{IsError: true, Message: we.Message, Type: we.Type}
	}
	return &Error{IsError: true, Message: err.Error(), Type: ErrorType(err)}
}

// ErrorType returns the wire type name for err.
func ErrorType(err error) string {
	for name, sentinel := range typeSentinels {
		if errors.Is(err, sentinel) {
			return name
		}
	}
	return TypeGeneric
}

// DecodeError parses data as an error body. ok is false if data is not one.
func DecodeError(data []byte) (e *Error, ok bool) {
	var body Error
	if err := json.Unmarshal(data, &body); err != nil || !body.IsError {
		return nil, false
	}
	return &body, true
}

// IsProtocolError returns true if err was reported by a peer or maps onto a
// protocol sentinel. Other errors are transport failures.
func IsProtocolError(err error) bool {
	var we *Error
	return errors.As(err, &we) || ErrorType(err) != TypeGeneric
}
