package discovery

import (
	"context"
	"time"
)

// Advertiser announces a server on the local network.
type Advertiser interface {
	// Advertise starts advertising the server, replacing any previous
	// advertisement.
	Advertise(ctx context.Context, info *ServerInfo) error

	// Update updates the TXT records of the advertisement.
	Update(info *ServerInfo) error

	// Stop stops advertising.
	Stop() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}
