package value

import (
	"errors"
	"fmt"
)

// ErrUnknownType is returned when a type name is not part of the enumeration.
var ErrUnknownType = errors.New("unknown value type")

// Type identifies the kind of a Value.
type Type uint8

const (
	TypeNull Type = iota
	TypeLogical
	TypeInteger
	TypeReal
	TypeDateTime
	TypeTimeSpan
	TypeText
	TypeLink
	TypeResourceURL
	TypeJSONData
)

var typeNames = [...]string{
	TypeNull:        "Null",
	TypeLogical:     "Logical",
	TypeInteger:     "Integer",
	TypeReal:        "Real",
	TypeDateTime:    "DateTime",
	TypeTimeSpan:    "TimeSpan",
	TypeText:        "Text",
	TypeLink:        "Link",
	TypeResourceURL: "ResourceUrl",
	TypeJSONData:    "JsonData",
}

// String returns the wire name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// IsValid returns true if t is a member of the enumeration.
func (t Type) IsValid() bool {
	return int(t) < len(typeNames)
}

// ParseType maps a wire type name onto the enumeration.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return TypeNull, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
