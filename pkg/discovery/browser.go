package discovery

import (
	"context"
	"time"
)

// Browser finds servers on the local network.
type Browser interface {
	// Browse emits every compatible server found until ctx is done. The
	// channel is closed when browsing stops.
	Browse(ctx context.Context) (<-chan *Service, error)

	// Find searches for the server with the given instance name.
	// Returns ErrNotFound if it does not show up within the browse timeout.
	Find(ctx context.Context, instanceName string) (*Service, error)
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout is the default timeout for Find.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		Interface:     "",
	}
}

// Collect browses for d and returns all servers found.
func Collect(ctx context.Context, b Browser, d time.Duration) ([]*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Service
	for svc := range found {
		out = append(out, svc)
	}
	return out, nil
}
