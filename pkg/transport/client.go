package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/woopsa-protocol/woopsa-go/pkg/version"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// ErrBadResponse is returned for responses that carry no JSON body.
var ErrBadResponse = errors.New("bad response")

// maxResponseSize bounds response bodies.
const maxResponseSize = 16 << 20

// ClientConfig configures an HTTP client.
type ClientConfig struct {
	// HTTPClient is used for requests (default: a client with gzip
	// transport and no overall timeout; deadlines come from contexts).
	HTTPClient *http.Client

	// ConnectTimeout bounds dialing (default: 10s).
	ConnectTimeout time.Duration
}

// Client sends Woopsa verbs to an HTTP server.
// Client implements interaction.Transport.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://host:8080/woopsa".
func NewClient(baseURL string, config ClientConfig) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: unsupported scheme", baseURL)
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	hc := config.HTTPClient
	if hc == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.DialContext = (&net.Dialer{
			Timeout:   config.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
		hc = &http.Client{Transport: gzhttp.Transport(base)}
	}

	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: hc,
	}, nil
}

// BaseURL returns the base URL of the verbs.
func (c *Client) BaseURL() string {
	return c.base
}

// RoundTrip implements interaction.Transport. Reads and metadata use GET,
// writes and invocations POST a form.
func (c *Client) RoundTrip(ctx context.Context, action wire.Action, path string, form url.Values) ([]byte, error) {
	target := c.base + "/" + action.String() + "/" + escapePath(path)

	var (
		req *http.Request
		err error
	)
	switch action {
	case wire.ActionRead, wire.ActionMeta:
		if len(form) > 0 {
			target += "?" + form.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := version.Check(resp.Header.Get(version.Header)); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	// Failed calls must carry an error body, anything else (proxies,
	// wrong prefix) is a transport failure.
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "application/json" {
		if _, ok := wire.DecodeError(body); ok {
			return body, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBadResponse, resp.Status)
}

// escapePath escapes each segment of a Woopsa path.
func escapePath(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
