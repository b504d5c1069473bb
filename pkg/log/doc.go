// Package log provides structured protocol logging for Woopsa subscription
// channels.
//
// This package defines the Logger interface and Event types for capturing
// channel lifecycle, subscription registration, notification flow and
// client channel state changes. It is separate from operational logging
// (slog) - protocol capture provides a complete machine-readable event
// trace for debugging lost or duplicated notifications.
//
// # Basic Usage
//
// Components configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/woopsa/server.wlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Each event carries exactly one payload:
//   - ChannelEvent: channel created, closed, expired or invalidated
//   - SubscriptionEvent: subscription registered, unregistered, failed or lost
//   - NotificationEvent: notification ids queued or delivered
//   - StateChangeEvent: client channel state transitions
//   - ErrorEventData: errors at any layer
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .wlog extension.
// The woopsa-log CLI tool filters and prints them.
package log
