package subscriber

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscription"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

func TestRelayForwardsNestedSubscriptions(t *testing.T) {
	nested := newTestServer(t, true)

	root := model.NewObject("Root")
	remote, err := root.Mount("Nested", nested.server)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := NewRelay(ctx, testConfig())
	defer relay.Close()

	resolver := subscription.NewModelResolver(root)
	resolver.Relay = relay.Func()
	outer := subscription.NewService(resolver, subscription.DefaultConfig())
	defer outer.Close()

	channel, err := outer.CreateChannel(10)
	require.NoError(t, err)
	subID, err := outer.RegisterSubscription(ctx, channel, "/Nested/Votes", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, relay.Len())

	relay.mu.Lock()
	relayed := relay.channels[remote]
	relay.mu.Unlock()
	require.NotNil(t, relayed)
	subs := relayed.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, "/Votes", subs[0].Path())
	registered(t, subs[0])

	require.NoError(t, nested.votes.SetValue(value.Integer(4)))

	var got []wire.Notification
	deadline := time.Now().Add(2 * time.Second)
	for len(got) == 0 && time.Now().Before(deadline) {
		got, err = outer.WaitNotification(ctx, channel, wire.NoNotification)
		require.NoError(t, err)
	}
	require.Len(t, got, 1)
	assert.Equal(t, subID, got[0].SubscriptionID)
	assert.True(t, got[0].Value.Equal(value.Integer(4)), "Value = %v", got[0].Value)

	// Unregistering upstream releases the nested subscription.
	ok, err := outer.UnregisterSubscription(channel, subID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return nested.serverSubscriptions(t, relayed) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRelayClosed(t *testing.T) {
	relay := NewRelay(context.Background(), testConfig())
	require.NoError(t, relay.Close())

	remote := model.NewRemote("Nested", newTestServer(t, true).server)
	_, err := relay.relay(context.Background(), remote, "/Votes", 0, 0)
	assert.ErrorIs(t, err, ErrClosed)
}
