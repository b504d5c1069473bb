package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of Woopsa servers.
	ServiceType = "_woopsa._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// TXT record keys.
const (
	TXTKeyPath    = "path"
	TXTKeyVersion = "ver"
	TXTKeyName    = "name"
)

const (
	// DefaultTTL is the DNS record TTL.
	DefaultTTL = 120 * time.Second

	// BrowseTimeout is the default timeout for Find.
	BrowseTimeout = 10 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required field")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
)

// ServerInfo is what a server advertises.
type ServerInfo struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Port is the HTTP port.
	Port uint16

	// Path is the URL prefix of the Woopsa verbs.
	Path string

	// Version is the protocol version.
	Version string

	// Name is the root object name (optional).
	Name string
}

// Service is a server found by browsing.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
	Path         string
	Version      string
	Name         string
}

// URL returns the base URL of the server, using its first address, or
// its host name if no address was resolved. Returns "" if neither is known.
func (s *Service) URL() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	if host == "" {
		return ""
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(int(s.Port))) + s.Path
}
