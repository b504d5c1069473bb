package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.LocalRole != 0 {
		attrs = append(attrs, slog.String("role", event.LocalRole.String()))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.ChannelID != 0 {
		attrs = append(attrs, slog.Int64("channel", event.ChannelID))
	}

	switch {
	case event.Channel != nil:
		attrs = append(attrs,
			slog.String("channel_action", event.Channel.Action.String()),
			slog.Bool("local", event.Channel.Local),
		)
		if event.Channel.QueueSize != 0 {
			attrs = append(attrs, slog.Int("queue_size", event.Channel.QueueSize))
		}
		if event.Channel.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Channel.Reason))
		}
	case event.Subscription != nil:
		attrs = append(attrs,
			slog.String("subscription_action", event.Subscription.Action.String()),
			slog.Int64("subscription", event.Subscription.SubscriptionID),
		)
		if event.Subscription.Path != "" {
			attrs = append(attrs,
				slog.String("path", event.Subscription.Path),
				slog.Duration("monitor", event.Subscription.MonitorInterval),
				slog.Duration("publish", event.Subscription.PublishInterval),
			)
		}
	case event.Notification != nil:
		attrs = append(attrs, slog.Int("count", event.Notification.Count))
		if event.Notification.Count > 0 {
			attrs = append(attrs,
				slog.Int64("first_id", event.Notification.FirstID),
				slog.Int64("last_id", event.Notification.LastID),
			)
		}
		if event.Notification.Acknowledge != 0 {
			attrs = append(attrs, slog.Int64("ack", event.Notification.Acknowledge))
		}
		if event.Notification.Dropped != 0 {
			attrs = append(attrs, slog.Int("dropped", event.Notification.Dropped))
		}
		if event.Notification.Overflow {
			attrs = append(attrs, slog.Bool("overflow", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Type != "" {
			attrs = append(attrs, slog.String("error_type", event.Error.Type))
		}
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
