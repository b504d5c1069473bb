// Package transport carries Woopsa verbs over HTTP.
//
// # URL Layout
//
// Every verb is a URL below a common prefix (default "/woopsa"):
//
//	GET  /woopsa/read/Votes
//	POST /woopsa/write/Votes              value=3
//	POST /woopsa/invoke/SubscriptionService/WaitNotification
//	                                      SubscriptionChannel=7&LastNotificationId=41
//	GET  /woopsa/meta/SubscriptionService
//
// Arguments are form-encoded, either in the query string or in an
// application/x-www-form-urlencoded body.
//
// # Responses
//
// Successful calls answer 200 with a JSON body. Failed calls answer with
// the JSON error body of package wire and a status derived from its type:
//
//	WoopsaNotFoundException          404
//	WoopsaInvalidArgumentException   400
//	WoopsaReadOnlyException          400
//	anything else                    500
//
// Responses are gzip compressed when the client accepts it, and carry the
// protocol version in the X-Woopsa-Version header.
package transport
