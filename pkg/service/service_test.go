package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woopsa-protocol/woopsa-go/pkg/log"
	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscriber"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

func testServerConfig() ServerConfig {
	config := DefaultServerConfig()
	config.Address = "127.0.0.1:0"
	config.Subscription.WaitTimeout = 200 * time.Millisecond
	return config
}

func votesRoot(t *testing.T) (*model.Object, *model.Property) {
	t.Helper()
	root := model.NewObject("Plant")
	votes := model.NewProperty(&model.PropertyMetadata{Name: "Votes", Type: value.TypeInteger})
	require.NoError(t, root.AddProperty(votes))
	return root, votes
}

func startServer(t *testing.T, root *model.Object, config ServerConfig) *Server {
	t.Helper()
	s, err := NewServer(root, config)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	config := ClientConfig{Subscriber: subscriber.DefaultConfig()}
	config.Subscriber.ReconnectInterval = 20 * time.Millisecond
	c, err := NewClient(url, config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func expectValue(t *testing.T, out <-chan value.Value, want value.Value) {
	t.Helper()
	select {
	case got := <-out:
		assert.True(t, got.Equal(want), "got %v, want %v", got, want)
	case <-time.After(3 * time.Second):
		t.Fatalf("no notification for %v", want)
	}
}

func TestServerEndToEnd(t *testing.T) {
	root, votes := votesRoot(t)
	s := startServer(t, root, testServerConfig())
	assert.Equal(t, StateRunning, s.State())
	assert.True(t, strings.HasSuffix(s.URL(), "/woopsa"), "URL = %s", s.URL())

	c := newTestClient(t, s.URL())
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "/Votes", value.Integer(1)))
	v, err := c.Read(ctx, "/Votes")
	require.NoError(t, err)
	assert.True(t, v.Equal(value.Integer(1)))

	m, err := c.Meta(ctx, "/")
	require.NoError(t, err)
	assert.True(t, m.HasItem("SubscriptionService"))

	out := make(chan value.Value, 16)
	sub, err := c.Subscribe("/Votes", 10*time.Millisecond, 10*time.Millisecond, func(_ *subscriber.Subscription, n wire.Notification) {
		out <- n.Value
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := sub.ID(); return ok }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, votes.SetValue(value.Integer(2)))
	expectValue(t, out, value.Integer(2))

	ch, err := c.Channel()
	require.NoError(t, err)
	assert.False(t, ch.Local())
	assert.Equal(t, 1, s.Subscriptions().Len())
}

func TestServerBatch(t *testing.T) {
	root, _ := votesRoot(t)
	s := startServer(t, root, testServerConfig())
	c := newTestClient(t, s.URL())

	b := c.Batch()
	write := b.Write("/Votes", value.Integer(7))
	read := b.Read("/Votes")
	missing := b.Read("/Missing")
	require.NoError(t, b.Send(context.Background()))

	assert.NoError(t, write.Err())
	v, err := read.Value()
	require.NoError(t, err)
	assert.True(t, v.Equal(value.Integer(7)))
	assert.ErrorIs(t, missing.Err(), wire.ErrNotFound)
}

func TestServerMountRelaysSubscriptions(t *testing.T) {
	nestedRoot, nestedVotes := votesRoot(t)
	nested := startServer(t, nestedRoot, testServerConfig())

	config := testServerConfig()
	config.Mounts = map[string]string{"Nested": nested.URL()}
	outer := startServer(t, nil, config)
	assert.Equal(t, DefaultServerName, outer.Root().Name())

	c := newTestClient(t, outer.URL())
	v, err := c.Read(context.Background(), "/Nested/Votes")
	require.NoError(t, err)
	assert.True(t, v.Equal(value.Integer(0)))

	out := make(chan value.Value, 16)
	sub, err := c.Subscribe("/Nested/Votes", 0, 0, func(_ *subscriber.Subscription, n wire.Notification) {
		out <- n.Value
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := sub.ID(); return ok }, 3*time.Second, 10*time.Millisecond)

	// The outer server holds a channel on the nested one.
	require.Eventually(t, func() bool { return nested.Subscriptions().Len() == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, nestedVotes.SetValue(value.Integer(11)))
	expectValue(t, out, value.Integer(11))
}

func TestServerStartTwice(t *testing.T) {
	s := startServer(t, nil, testServerConfig())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.State())
}

func TestServerProtocolLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture"+log.FileExtension)
	config := testServerConfig()
	config.ProtocolLog = path

	root, votes := votesRoot(t)
	s, err := NewServer(root, config)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	c := newTestClient(t, s.URL())
	out := make(chan value.Value, 16)
	sub, err := c.Subscribe("/Votes", 10*time.Millisecond, 0, func(_ *subscriber.Subscription, n wire.Notification) {
		out <- n.Value
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := sub.ID(); return ok }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, votes.SetValue(value.Integer(3)))
	expectValue(t, out, value.Integer(3))

	require.NoError(t, c.Close())
	require.NoError(t, s.Stop())

	r, err := log.NewFilteredReader(path, log.Filter{Category: ptr(log.CategorySubscription)})
	require.NoError(t, err)
	defer r.Close()

	registered := 0
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, log.RoleServer, e.LocalRole)
		if e.Subscription.Action == log.SubscriptionRegistered {
			registered++
			assert.Equal(t, "/Votes", e.Subscription.Path)
		}
	}
	assert.Equal(t, 1, registered)
}

func ptr[T any](v T) *T { return &v }

func TestLoadServerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := `
name: Greenhouse
address: "127.0.0.1:9090"
advertise: true
subscription:
  queue_size: 50
  channel_lifetime: 5m
  max_channels: 8
mounts:
  Pump: http://10.0.0.2:8080/woopsa
relay: false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	config, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Greenhouse", config.Name)
	assert.Equal(t, "127.0.0.1:9090", config.Address)
	assert.True(t, config.Advertise)
	assert.False(t, config.Relay)
	assert.Equal(t, 50, config.Subscription.QueueSize)
	assert.Equal(t, 5*time.Minute, config.Subscription.ChannelLifetime)
	assert.Equal(t, 8, config.Subscription.MaxChannels)
	assert.Equal(t, "http://10.0.0.2:8080/woopsa", config.Mounts["Pump"])

	// Defaults survive.
	assert.Equal(t, "/woopsa", config.Prefix)
	assert.Equal(t, DefaultServerConfig().Subscription.WaitTimeout, config.Subscription.WaitTimeout)
}

func TestLoadServerConfigErrors(t *testing.T) {
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mounts:\n  Pump: ftp://host\n"), 0o600))
	_, err = LoadServerConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ServerConfig)
	}{
		{"EmptyName", func(c *ServerConfig) { c.Name = "" }},
		{"LongAdvertisedName", func(c *ServerConfig) { c.Advertise = true; c.Name = strings.Repeat("n", 64) }},
		{"NegativeQueue", func(c *ServerConfig) { c.Subscription.QueueSize = -1 }},
		{"NegativeLifetime", func(c *ServerConfig) { c.Subscription.ChannelLifetime = -time.Second }},
		{"RelativeMount", func(c *ServerConfig) { c.Mounts = map[string]string{"X": "woopsa"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultServerConfig()
			tt.modify(&config)
			assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
		})
	}

	config := DefaultServerConfig()
	assert.NoError(t, config.Validate())
}

func TestClientClosed(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1/woopsa", ClientConfig{})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Subscribe("/Votes", 0, 0, func(*subscriber.Subscription, wire.Notification) {})
	assert.ErrorIs(t, err, ErrClientClosed)

	_, err = NewClient("ftp://host", ClientConfig{})
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}
