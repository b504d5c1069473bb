package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Value errors.
var (
	ErrInvalidText  = errors.New("invalid text for value type")
	ErrTypeMismatch = errors.New("value type mismatch")
)

// Value is an immutable typed value.
type Value struct {
	typ       Type
	text      string
	timeStamp time.Time
	stamped   bool
}

// Null returns the null value.
func Null() Value {
	return Value{typ: TypeNull}
}

// Logical returns a Logical value.
func Logical(b bool) Value {
	return Value{typ: TypeLogical, text: strconv.FormatBool(b)}
}

// Integer returns an Integer value.
func Integer(n int64) Value {
	return Value{typ: TypeInteger, text: strconv.FormatInt(n, 10)}
}

// Real returns a Real value.
func Real(f float64) Value {
	return Value{typ: TypeReal, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Text returns a Text value.
func Text(s string) Value {
	return Value{typ: TypeText, text: s}
}

// Link returns a Link value pointing at path.
func Link(path string) Value {
	return Value{typ: TypeLink, text: path}
}

// ResourceURL returns a ResourceUrl value.
func ResourceURL(url string) Value {
	return Value{typ: TypeResourceURL, text: url}
}

// DateTime returns a DateTime value. The time is normalized to UTC.
func DateTime(t time.Time) Value {
	return Value{typ: TypeDateTime, text: t.UTC().Format(time.RFC3339Nano)}
}

// TimeSpan returns a TimeSpan value.
func TimeSpan(d time.Duration) Value {
	return Value{typ: TypeTimeSpan, text: formatSeconds(d)}
}

// JSON returns a JsonData value holding the compacted document raw.
func JSON(raw []byte) (Value, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Value{typ: TypeJSONData, text: "null"}, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrInvalidText, err)
	}
	return Value{typ: TypeJSONData, text: buf.String()}, nil
}

// MustJSON is like JSON but panics on malformed input.
func MustJSON(raw []byte) Value {
	v, err := JSON(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Parse builds a value of type t from its text representation.
// The text is validated and normalized.
func Parse(t Type, text string) (Value, error) {
	switch t {
	case TypeNull:
		return Null(), nil
	case TypeLogical:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not Logical", ErrInvalidText, text)
		}
		return Logical(b), nil
	case TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not Integer", ErrInvalidText, text)
		}
		return Integer(n), nil
	case TypeReal:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not Real", ErrInvalidText, text)
		}
		return Real(f), nil
	case TypeDateTime:
		tm, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not DateTime", ErrInvalidText, text)
		}
		return DateTime(tm), nil
	case TypeTimeSpan:
		d, err := parseSeconds(text)
		if err != nil {
			return Value{}, err
		}
		return TimeSpan(d), nil
	case TypeText:
		return Text(text), nil
	case TypeLink:
		return Link(text), nil
	case TypeResourceURL:
		return ResourceURL(text), nil
	case TypeJSONData:
		return JSON([]byte(text))
	default:
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
}

// Type returns the value type.
func (v Value) Type() Type {
	return v.typ
}

// Text returns the invariant text representation.
func (v Value) Text() string {
	return v.text
}

// IsNull returns true for the null value.
func (v Value) IsNull() bool {
	return v.typ == TypeNull
}

// TimeStamp returns the observation time, if one was recorded.
func (v Value) TimeStamp() (time.Time, bool) {
	return v.timeStamp, v.stamped
}

// WithTimeStamp returns a copy of v stamped with t.
func (v Value) WithTimeStamp(t time.Time) Value {
	v.timeStamp = t.UTC()
	v.stamped = true
	return v
}

// Equal reports whether v and o have the same type and text.
// Timestamps are ignored.
func (v Value) Equal(o Value) bool {
	return v.typ == o.typ && v.text == o.text
}

// String returns a human-readable form, e.g. "Integer(42)".
func (v Value) String() string {
	if v.typ == TypeNull {
		return "Null"
	}
	return v.typ.String() + "(" + v.text + ")"
}

// AsBool returns the value as a bool.
func (v Value) AsBool() (bool, error) {
	if v.typ != TypeLogical {
		return false, fmt.Errorf("%w: %s is not Logical", ErrTypeMismatch, v.typ)
	}
	return v.text == "true", nil
}

// AsInt returns the value as an int64. Real values with no fractional part
// are accepted.
func (v Value) AsInt() (int64, error) {
	switch v.typ {
	case TypeInteger:
		return strconv.ParseInt(v.text, 10, 64)
	case TypeReal:
		f, err := strconv.ParseFloat(v.text, 64)
		if err != nil {
			return 0, err
		}
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("%w: %s has a fractional part", ErrTypeMismatch, v.text)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("%w: %s is not numeric", ErrTypeMismatch, v.typ)
	}
}

// AsFloat returns the value as a float64.
func (v Value) AsFloat() (float64, error) {
	switch v.typ {
	case TypeInteger, TypeReal, TypeTimeSpan:
		return strconv.ParseFloat(v.text, 64)
	default:
		return 0, fmt.Errorf("%w: %s is not numeric", ErrTypeMismatch, v.typ)
	}
}

// AsDuration returns a TimeSpan value as a time.Duration.
func (v Value) AsDuration() (time.Duration, error) {
	switch v.typ {
	case TypeTimeSpan, TypeReal, TypeInteger:
		return parseSeconds(v.text)
	default:
		return 0, fmt.Errorf("%w: %s is not TimeSpan", ErrTypeMismatch, v.typ)
	}
}

// AsTime returns a DateTime value as a time.Time.
func (v Value) AsTime() (time.Time, error) {
	if v.typ != TypeDateTime {
		return time.Time{}, fmt.Errorf("%w: %s is not DateTime", ErrTypeMismatch, v.typ)
	}
	return time.Parse(time.RFC3339Nano, v.text)
}

// Convert re-interprets v as type t through its text form.
// Converting to the same type returns v unchanged.
func (v Value) Convert(t Type) (Value, error) {
	if v.typ == t {
		return v, nil
	}
	out, err := Parse(t, v.text)
	if err != nil {
		return Value{}, err
	}
	if v.stamped {
		out = out.WithTimeStamp(v.timeStamp)
	}
	return out, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func parseSeconds(text string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not TimeSpan", ErrInvalidText, text)
	}
	return time.Duration(math.Round(f * float64(time.Second))), nil
}
