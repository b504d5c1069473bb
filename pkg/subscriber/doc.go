// Package subscriber implements the client side of the Woopsa subscription
// channel protocol.
//
// A Channel keeps one subscription channel open on a server and runs two
// loops next to a dispatcher calling the handlers. The management loop opens the channel, then batches registrations
// and unregistrations into multi-requests; it is rate limited so that many
// Subscribe and Unsubscribe calls made together share a few round trips.
// The notification loop long-polls WaitNotification, dispatches each
// notification to the handler of its subscription and acknowledges it on
// the next wait.
//
// # Recovery
//
// All recoverable conditions are handled inside the loops:
//   - WoopsaInvalidSubscriptionChannelException: every subscription loses
//     its id, a new channel is created and the subscriptions are registered
//     again, keeping their handlers.
//   - WoopsaNotificationsLostException: the next wait acknowledges 0 to
//     resynchronize.
//   - Transport errors: the loop sleeps ReconnectInterval and retries.
//
// A server without a subscription service answers
// CreateSubscriptionChannel with WoopsaNotFoundException. The channel then
// runs an in-process subscription service that samples the server through
// plain reads, keeping the rest of the protocol unchanged.
//
// # Daisy-Chaining
//
// Relay plugs client channels into a server-side subscription.ModelResolver
// so that subscriptions below a mount point are relayed from the nested
// server's own subscription service instead of being sampled.
package subscriber
