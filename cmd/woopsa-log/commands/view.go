// Package commands implements the woopsa-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Role      *log.Role
}

// timestampFormat is used by view and export.
const timestampFormat = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] ROLE DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(timestampFormat)
	session := shortenID(event.SessionID)

	fmt.Fprintf(w, "%s [session:%s] %-6s %-3s %s %s",
		ts, session, event.LocalRole.String(), event.Direction.String(), event.Layer.String(), eventType(event))
	if event.ChannelID != 0 {
		fmt.Fprintf(w, " channel=%d", event.ChannelID)
	}
	fmt.Fprintln(w)

	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}

	switch {
	case event.Channel != nil:
		formatChannelDetails(w, event.Channel)
	case event.Subscription != nil:
		formatSubscriptionDetails(w, event.Subscription)
	case event.Notification != nil:
		formatNotificationDetails(w, event.Notification)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// eventType returns the label of the event payload.
func eventType(event log.Event) string {
	switch {
	case event.Channel != nil:
		return "Channel " + event.Channel.Action.String()
	case event.Subscription != nil:
		return "Subscription " + event.Subscription.Action.String()
	case event.Notification != nil:
		return "Notification"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a session ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatChannelDetails(w io.Writer, ch *log.ChannelEvent) {
	if ch.QueueSize > 0 {
		fmt.Fprintf(w, "  QueueSize: %d\n", ch.QueueSize)
	}
	if ch.Local {
		fmt.Fprintln(w, "  Local: true")
	}
	if ch.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", ch.Reason)
	}
}

func formatSubscriptionDetails(w io.Writer, sub *log.SubscriptionEvent) {
	if sub.SubscriptionID != 0 {
		fmt.Fprintf(w, "  SubscriptionID: %d\n", sub.SubscriptionID)
	}
	if sub.Path != "" {
		fmt.Fprintf(w, "  Path: %s\n", sub.Path)
	}
	if sub.MonitorInterval > 0 || sub.PublishInterval > 0 {
		fmt.Fprintf(w, "  Monitor: %s  Publish: %s\n",
			formatDuration(sub.MonitorInterval), formatDuration(sub.PublishInterval))
	}
}

func formatNotificationDetails(w io.Writer, n *log.NotificationEvent) {
	fmt.Fprintf(w, "  Count: %d", n.Count)
	if n.Count > 0 {
		fmt.Fprintf(w, "  IDs: %d..%d", n.FirstID, n.LastID)
	}
	fmt.Fprintln(w)
	if n.Acknowledge != 0 {
		fmt.Fprintf(w, "  Acknowledge: %d\n", n.Acknowledge)
	}
	if n.Overflow {
		fmt.Fprintf(w, "  Overflow: %d dropped\n", n.Dropped)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Type != "" {
		fmt.Fprintf(w, "  Type: %s\n", err.Type)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer string from a command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "channel":
		return log.LayerChannel, nil
	case "service":
		return log.LayerService, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, channel, or service)", s)
	}
}

// ParseDirectionFlag parses a direction string from a command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from a command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "channel":
		return log.CategoryChannel, nil
	case "subscription":
		return log.CategorySubscription, nil
	case "notification":
		return log.CategoryNotification, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be channel, subscription, notification, state, or error)", s)
	}
}

// ParseChannelActionFlag parses a channel action (created, closed, expired,
// invalidated).
func ParseChannelActionFlag(s string) (log.ChannelAction, error) {
	for _, a := range []log.ChannelAction{log.ChannelCreated, log.ChannelClosed, log.ChannelExpired, log.ChannelInvalidated} {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("invalid channel action: %s (must be created, closed, expired, or invalidated)", s)
}

// ParseSubscriptionActionFlag parses a subscription action (registered,
// unregistered, failed, lost).
func ParseSubscriptionActionFlag(s string) (log.SubscriptionAction, error) {
	for _, a := range []log.SubscriptionAction{log.SubscriptionRegistered, log.SubscriptionUnregistered, log.SubscriptionFailed, log.SubscriptionLost} {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("invalid subscription action: %s (must be registered, unregistered, failed, or lost)", s)
}

// ParseRoleFlag parses a role string from a command-line flag (case-insensitive).
func ParseRoleFlag(s string) (log.Role, error) {
	switch strings.ToLower(s) {
	case "server":
		return log.RoleServer, nil
	case "client":
		return log.RoleClient, nil
	default:
		return 0, fmt.Errorf("invalid role: %s (must be server or client)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, log.Filter{
		Layer:     filter.Layer,
		Direction: filter.Direction,
		Category:  filter.Category,
		Role:      filter.Role,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
