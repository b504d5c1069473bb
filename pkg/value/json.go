package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// jsonValue is the envelope used on the wire.
type jsonValue struct {
	Value     json.RawMessage `json:"Value"`
	Type      string          `json:"Type"`
	TimeStamp *time.Time      `json:"TimeStamp,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	raw, err := v.RawJSON()
	if err != nil {
		return nil, err
	}
	env := jsonValue{Value: raw, Type: v.typ.String()}
	if v.stamped {
		ts := v.timeStamp
		env.TimeStamp = &ts
	}
	return json.Marshal(env)
}

// UnmarshalJSON implements json.Unmarshaler. The type name is resolved
// before the payload is interpreted.
func (v *Value) UnmarshalJSON(data []byte) error {
	var env jsonValue
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	t, err := ParseType(env.Type)
	if err != nil {
		return err
	}
	parsed, err := FromRawJSON(t, env.Value)
	if err != nil {
		return err
	}
	if env.TimeStamp != nil {
		parsed = parsed.WithTimeStamp(*env.TimeStamp)
	}
	*v = parsed
	return nil
}

// RawJSON returns the bare JSON encoding of the payload, without the
// type envelope.
func (v Value) RawJSON() (json.RawMessage, error) {
	switch v.typ {
	case TypeNull:
		return json.RawMessage("null"), nil
	case TypeLogical, TypeInteger:
		return json.RawMessage(v.text), nil
	case TypeReal, TypeTimeSpan:
		f, err := strconv.ParseFloat(v.text, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %s cannot be encoded as JSON", ErrInvalidText, v.text)
		}
		return json.RawMessage(v.text), nil
	case TypeJSONData:
		if v.text == "" {
			return json.RawMessage("null"), nil
		}
		return json.RawMessage(v.text), nil
	case TypeDateTime, TypeText, TypeLink, TypeResourceURL:
		return json.Marshal(v.text)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, v.typ)
	}
}

// FromRawJSON interprets a bare JSON payload as a value of type t.
// Numbers and strings are accepted interchangeably for numeric types.
func FromRawJSON(t Type, raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if t == TypeJSONData {
		return JSON(raw)
	}
	if t == TypeNull || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if t != TypeNull && t != TypeText {
			return Value{}, fmt.Errorf("%w: null payload for %s", ErrInvalidText, t)
		}
		if t == TypeText {
			return Text(""), nil
		}
		return Null(), nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return Parse(t, s)
	}

	switch t {
	case TypeLogical, TypeInteger, TypeReal, TypeTimeSpan:
		return Parse(t, string(raw))
	default:
		return Value{}, fmt.Errorf("%w: %s expects a string payload", ErrInvalidText, t)
	}
}
