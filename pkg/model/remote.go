package model

import (
	"context"

	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// RemoteClient reaches the object hierarchy of another server.
// Paths are absolute within that server.
type RemoteClient interface {
	Read(ctx context.Context, path string) (value.Value, error)
	Write(ctx context.Context, path string, v value.Value) error
	Invoke(ctx context.Context, path string, args map[string]value.Value) (value.Value, error)
	Meta(ctx context.Context, path string) (*wire.Meta, error)
}

// Remote is a mount point: a named item whose subtree lives on another
// server.
type Remote struct {
	name   string
	client RemoteClient
}

// NewRemote creates a mount point.
func NewRemote(name string, client RemoteClient) *Remote {
	return &Remote{name: name, client: client}
}

// Name returns the mount name.
func (r *Remote) Name() string {
	return r.name
}

func (r *Remote) isItem() {}

// Client returns the client used to reach the mounted server.
func (r *Remote) Client() RemoteClient {
	return r.client
}
