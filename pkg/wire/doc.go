// Package wire defines the JSON wire formats of the Woopsa protocol.
//
// Woopsa runs over plain request/response HTTP. Everything a peer exchanges
// beyond a single typed value is one of the shapes defined here:
//
//   - Notification batches returned by WaitNotification
//   - Multi-request envelopes bundling several read/write/invoke calls
//   - Error bodies, whose Type names map onto the sentinel errors of this package
//   - Object metadata returned by the meta verb
//
// # Notifications
//
// A batch is a JSON array:
//
//	[{"Value": {"Value": 2, "Type": "Integer"}, "SubscriptionId": 7, "Id": 41}]
//
// Id is assigned by the channel and is strictly increasing within one channel.
// Id 0 is reserved and means "acknowledge nothing".
//
// # Errors
//
// Failed calls answer with
//
//	{"Error": true, "Message": "...", "Type": "WoopsaNotFoundException"}
//
// Decoded errors satisfy errors.Is against ErrNotFound,
// ErrInvalidSubscriptionChannel, ErrNotificationsLost, ErrInvalidArgument and
// ErrReadOnly.
package wire
