package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	if buf.Len() == 0 {
		t.Fatal("no output produced")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsNotificationEvent(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp: time.Now(),
		SessionID: "sess-123",
		Direction: DirectionOut,
		Layer:     LayerChannel,
		Category:  CategoryNotification,
		LocalRole: RoleServer,
		ChannelID: 17,
		Notification: &NotificationEvent{
			Count: 2, FirstID: 5, LastID: 6, Acknowledge: 4,
		},
	})

	checks := map[string]any{
		"msg":        "protocol",
		"session_id": "sess-123",
		"direction":  "OUT",
		"layer":      "CHANNEL",
		"category":   "NOTIFICATION",
		"role":       "SERVER",
		"channel":    float64(17),
		"count":      float64(2),
		"first_id":   float64(5),
		"last_id":    float64(6),
		"ack":        float64(4),
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("%s: got %v, want %v", k, entry[k], want)
		}
	}
	if _, ok := entry["dropped"]; ok {
		t.Error("dropped present without drops")
	}
}

func TestSlogAdapterLogsSubscriptionEvent(t *testing.T) {
	entry := logOne(t, Event{
		SessionID: "sess-1",
		Category:  CategorySubscription,
		Subscription: &SubscriptionEvent{
			Action:         SubscriptionLost,
			SubscriptionID: 33,
		},
	})

	if entry["subscription_action"] != "LOST" {
		t.Errorf("subscription_action: got %v, want LOST", entry["subscription_action"])
	}
	if entry["subscription"] != float64(33) {
		t.Errorf("subscription: got %v, want 33", entry["subscription"])
	}
	if _, ok := entry["path"]; ok {
		t.Error("path present for an event without path")
	}
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	entry := logOne(t, Event{
		SessionID:   "sess-1",
		Category:    CategoryState,
		StateChange: &StateChangeEvent{OldState: "ACTIVE", NewState: "RECONNECTING", Reason: "channel expired"},
	})

	if entry["old_state"] != "ACTIVE" || entry["new_state"] != "RECONNECTING" {
		t.Errorf("states: got %v -> %v", entry["old_state"], entry["new_state"])
	}
	if entry["reason"] != "channel expired" {
		t.Errorf("reason: got %v", entry["reason"])
	}
}

func TestSlogAdapterLogsError(t *testing.T) {
	entry := logOne(t, Event{
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerTransport, Message: "timeout", Type: "WoopsaException"},
	})

	if entry["error_layer"] != "TRANSPORT" || entry["error_msg"] != "timeout" {
		t.Errorf("error attrs: %v", entry)
	}
	if entry["error_type"] != "WoopsaException" {
		t.Errorf("error_type: got %v", entry["error_type"])
	}
}
