package wire

import "fmt"

// Action is a Woopsa verb.
type Action uint8

const (
	// ActionRead gets the current value of a property.
	ActionRead Action = 1

	// ActionWrite sets the value of a property.
	ActionWrite Action = 2

	// ActionInvoke calls a method with named arguments.
	ActionInvoke Action = 3

	// ActionMeta describes an object.
	ActionMeta Action = 4
)

// String returns the verb as it appears in URLs and multi-requests.
func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionInvoke:
		return "invoke"
	case ActionMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// IsValid returns true if the action is a known verb.
func (a Action) IsValid() bool {
	return a >= ActionRead && a <= ActionMeta
}

// ParseAction parses a verb name.
func ParseAction(s string) (Action, error) {
	switch s {
	case "read":
		return ActionRead, nil
	case "write":
		return ActionWrite, nil
	case "invoke":
		return ActionInvoke, nil
	case "meta":
		return ActionMeta, nil
	default:
		return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	if !a.IsValid() {
		return nil, fmt.Errorf("invalid action: %d", a)
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
