// Package value implements the typed values exchanged by Woopsa peers.
//
// A Value is an immutable pair of a Type and an invariant text
// representation, optionally carrying the time at which it was observed.
// Two values are equal when both their type and their text are equal; this
// is the rule used by subscriptions to detect changes.
//
// # JSON Form
//
// Values travel as
//
//	{"Value": 42, "Type": "Integer", "TimeStamp": "2026-01-01T00:00:00Z"}
//
// Decoding maps the "Type" string onto the fixed Type enumeration first and
// only then interprets "Value". An unknown type name is a decode error.
//
// # Text Conventions
//
//   - Logical: "true" / "false"
//   - Integer: base-10
//   - Real: shortest round-trip decimal
//   - DateTime: RFC 3339 with nanoseconds, UTC
//   - TimeSpan: seconds as a decimal number ("0.25" is 250ms)
//   - JsonData: the raw JSON document
package value
