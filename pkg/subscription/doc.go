// Package subscription implements the server side of the Woopsa
// subscription channel protocol.
//
// A client creates a channel, registers subscriptions on it and then
// long-polls it with WaitNotification. Each subscription runs a monitor,
// which detects changes of the watched value, and a publisher, which
// batches the changes and appends them to the channel's notification
// queue.
//
// # Intervals
//
// The monitor samples the value every MonitorInterval and compares it with
// the last value by type and text. A MonitorInterval of 0 selects push
// mode for sources that notify their own changes; sources that cannot
// push are then sampled at DefaultMonitorInterval. The value present at
// registration is the baseline and is not notified.
//
// The publisher hands pending changes to the channel every
// PublishInterval. A PublishInterval of 0 publishes immediately.
//
// # Wait and Acknowledge
//
// WaitNotification(channel, lastId) discards every notification with an id
// up to lastId and returns the rest, waiting up to WaitTimeout for one to
// arrive. Ids start at 1 and increase strictly within a channel; 0 means
// "acknowledge nothing".
//
// The queue is bounded. On overflow the oldest notification is dropped, and
// every wait whose lastId is below the highest dropped id fails with
// WoopsaNotificationsLostException; the client resynchronizes by waiting
// with lastId 0.
//
// # Lifetime
//
// Channels not contacted for ChannelLifetime are closed. Waiting on a
// closed or unknown channel fails with
// WoopsaInvalidSubscriptionChannelException, upon which the client creates
// a new channel and registers its subscriptions again.
package subscription
