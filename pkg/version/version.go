// Package version provides protocol version parsing, comparison, and the
// helpers used to advertise and check it over HTTP and mDNS.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this library.
const Current = "1.0"

// Header is the HTTP response header carrying the server's protocol version.
const Header = "X-Woopsa-Version"

// ErrIncompatible is returned when a peer speaks another major version.
var ErrIncompatible = errors.New("incompatible protocol version")

// ProtocolVersion represents a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ProtocolVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// Check verifies that a version announced by a peer is compatible with
// Current. An empty announcement is accepted: older peers do not send one.
func Check(announced string) error {
	if announced == "" {
		return nil
	}
	peer, err := Parse(announced)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	if !MustParse(Current).Compatible(peer) {
		return fmt.Errorf("%w: peer %s, local %s", ErrIncompatible, peer, Current)
	}
	return nil
}
