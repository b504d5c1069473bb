package interaction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// Client errors.
var (
	ErrClientClosed    = errors.New("client is closed")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// DefaultTimeout bounds a single round trip. It must stay above the
// server's WaitNotification timeout.
const DefaultTimeout = 30 * time.Second

// Transport carries one verb to a server and returns the raw response
// body. Protocol failures come back as an error body with a nil error;
// a non-nil error means the exchange itself failed.
type Transport interface {
	RoundTrip(ctx context.Context, action wire.Action, path string, form url.Values) ([]byte, error)
}

// Client provides a typed API for Woopsa verbs over a Transport.
// Client implements model.RemoteClient.
type Client struct {
	mu sync.RWMutex

	transport Transport
	timeout   time.Duration
	logger    *slog.Logger

	// Set once the peer answered NotFound for MultiRequest.
	noMulti atomic.Bool

	closed bool
}

// NewClient creates a new interaction client.
func NewClient(transport Transport) *Client {
	return &Client{
		transport: transport,
		timeout:   DefaultTimeout,
	}
}

// SetTimeout sets the round trip timeout. Zero disables it.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// SetLogger sets the operational logger. Nil disables logging.
func (c *Client) SetLogger(logger *slog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// Close closes the client. Further calls fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// roundTrip sends a verb and decodes an error body into a *wire.Error.
func (c *Client) roundTrip(ctx context.Context, action wire.Action, path string, form url.Values) ([]byte, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClientClosed
	}
	timeout := c.timeout
	c.mu.RUnlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := c.transport.RoundTrip(ctx, action, path, form)
	if err != nil {
		return nil, err
	}
	if e, ok := wire.DecodeError(body); ok {
		return nil, e
	}
	return body, nil
}

// Read reads the property at path.
func (c *Client) Read(ctx context.Context, path string) (value.Value, error) {
	body, err := c.roundTrip(ctx, wire.ActionRead, path, nil)
	if err != nil {
		return value.Value{}, err
	}
	return decodeValue(body)
}

// Write writes the property at path.
func (c *Client) Write(ctx context.Context, path string, v value.Value) error {
	_, err := c.roundTrip(ctx, wire.ActionWrite, path, url.Values{WriteValueKey: {v.Text()}})
	return err
}

// Invoke calls the method at path. Arguments travel as text.
func (c *Client) Invoke(ctx context.Context, path string, args map[string]value.Value) (value.Value, error) {
	form := make(url.Values, len(args))
	for k, v := range args {
		form.Set(k, v.Text())
	}
	body, err := c.roundTrip(ctx, wire.ActionInvoke, path, form)
	if err != nil {
		return value.Value{}, err
	}
	return decodeValue(body)
}

// Meta describes the object at path.
func (c *Client) Meta(ctx context.Context, path string) (*wire.Meta, error) {
	body, err := c.roundTrip(ctx, wire.ActionMeta, path, nil)
	if err != nil {
		return nil, err
	}
	var m wire.Meta
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}
	return &m, nil
}

// Multi sends reqs in one MultiRequest round trip. If the peer has no
// MultiRequest method the requests are sent one by one, and the client
// remembers not to try again.
func (c *Client) Multi(ctx context.Context, reqs []wire.Request) ([]wire.Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if c.noMulti.Load() {
		return sequential(ctx, c, reqs)
	}

	data, err := wire.EncodeRequests(reqs)
	if err != nil {
		return nil, err
	}
	result, err := c.Invoke(ctx, wire.MultiRequestMethod, map[string]value.Value{
		wire.MultiRequestArgument: value.Text(string(data)),
	})
	if errors.Is(err, wire.ErrNotFound) {
		c.noMulti.Store(true)
		c.debugLog("peer has no MultiRequest, falling back to single requests")
		return sequential(ctx, c, reqs)
	}
	if err != nil {
		return nil, err
	}

	resps, err := wire.DecodeResponses([]byte(result.Text()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}
	return resps, nil
}

func (c *Client) debugLog(msg string, args ...any) {
	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// decodeValue decodes a value body. An empty body is Null.
func decodeValue(body []byte) (value.Value, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return value.Null(), nil
	}
	var v value.Value
	if err := json.Unmarshal(body, &v); err != nil {
		return value.Value{}, fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}
	return v, nil
}
