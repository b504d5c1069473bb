package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/interaction"
	"github.com/woopsa-protocol/woopsa-go/pkg/log"
	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscriber"
	"github.com/woopsa-protocol/woopsa-go/pkg/transport"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// ErrClientClosed is returned by a closed Client.
var ErrClientClosed = errors.New("client closed")

// ClientConfig configures a Client.
type ClientConfig struct {
	// Transport configures HTTP.
	Transport transport.ClientConfig

	// Timeout bounds a single round trip (default:
	// interaction.DefaultTimeout).
	Timeout time.Duration

	// Subscriber configures the subscription channel.
	Subscriber subscriber.Config

	// Logger for operational logging (optional).
	Logger *slog.Logger

	// ProtocolLogger receives protocol events of the subscription channel
	// (optional).
	ProtocolLogger log.Logger
}

// Client talks to one Woopsa server.
// Client implements model.RemoteClient and interaction.Peer.
type Client struct {
	config    ClientConfig
	transport *transport.Client
	client    *interaction.Client

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	channel *subscriber.Channel
	closed  bool
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://host:8080/woopsa".
func NewClient(baseURL string, config ClientConfig) (*Client, error) {
	t, err := transport.NewClient(baseURL, config.Transport)
	if err != nil {
		return nil, err
	}

	ic := interaction.NewClient(t)
	if config.Timeout > 0 {
		ic.SetTimeout(config.Timeout)
	}
	ic.SetLogger(config.Logger)

	if config.Subscriber.Logger == nil {
		config.Subscriber.Logger = config.Logger
	}
	if config.Subscriber.ProtocolLogger == nil {
		config.Subscriber.ProtocolLogger = config.ProtocolLogger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:    config,
		transport: t,
		client:    ic,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// URL returns the base URL of the server.
func (c *Client) URL() string {
	return c.transport.BaseURL()
}

// Read implements model.RemoteClient.
func (c *Client) Read(ctx context.Context, path string) (value.Value, error) {
	return c.client.Read(ctx, path)
}

// Write implements model.RemoteClient.
func (c *Client) Write(ctx context.Context, path string, v value.Value) error {
	return c.client.Write(ctx, path, v)
}

// Invoke implements model.RemoteClient.
func (c *Client) Invoke(ctx context.Context, path string, args map[string]value.Value) (value.Value, error) {
	return c.client.Invoke(ctx, path, args)
}

// Meta implements model.RemoteClient.
func (c *Client) Meta(ctx context.Context, path string) (*wire.Meta, error) {
	return c.client.Meta(ctx, path)
}

// Multi sends requests in one MultiRequest.
func (c *Client) Multi(ctx context.Context, reqs []wire.Request) ([]wire.Response, error) {
	return c.client.Multi(ctx, reqs)
}

// Batch returns an empty batch sent through this client.
func (c *Client) Batch() *interaction.Batch {
	return interaction.NewBatch(c.client)
}

// Channel returns the subscription channel, creating and starting it on
// first use.
func (c *Client) Channel() (*subscriber.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	if c.channel == nil {
		ch := subscriber.NewChannel(c.client, c.config.Subscriber)
		if err := ch.Start(c.ctx); err != nil {
			return nil, err
		}
		c.channel = ch
	}
	return c.channel, nil
}

// Subscribe watches path. See subscriber.Channel.Subscribe.
func (c *Client) Subscribe(path string, monitor, publish time.Duration, handler subscriber.Handler) (*subscriber.Subscription, error) {
	ch, err := c.Channel()
	if err != nil {
		return nil, err
	}
	return ch.Subscribe(path, monitor, publish, handler)
}

// Close closes the subscription channel, unregistering its
// subscriptions, and the client.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ch := c.channel
	c.mu.Unlock()

	var err error
	if ch != nil {
		err = ch.Close()
	}
	c.cancel()
	return errors.Join(err, c.client.Close())
}

// Ensure Client can be mounted and batched.
var (
	_ model.RemoteClient = (*Client)(nil)
	_ interaction.Peer   = (*Client)(nil)
)
