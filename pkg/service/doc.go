// Package service assembles Woopsa servers and clients.
//
// A Server publishes an object hierarchy over HTTP together with the
// SubscriptionService and the MultiRequest method, optionally advertises
// itself over mDNS, mounts nested servers and records a protocol log.
//
// A Client wraps the HTTP transport and the typed verbs of one server and
// opens a subscription channel the first time Subscribe is called. A Client
// is also a model.RemoteClient, so it can be mounted into the hierarchy of
// another Server for daisy-chaining.
package service
