package interaction

import (
	"context"
	"net/url"

	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// Loopback is a Transport that calls a Server in-process. Requests still
// go through the wire encoding, so a loopback client behaves exactly like a
// remote one.
type Loopback struct {
	server *Server
}

// NewLoopback creates a loopback transport to server.
func NewLoopback(server *Server) *Loopback {
	return &Loopback{server: server}
}

// RoundTrip implements Transport.
func (l *Loopback) RoundTrip(ctx context.Context, action wire.Action, path string, form url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _ := l.server.Serve(ctx, action, path, form)
	return body, nil
}
