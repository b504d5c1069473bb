package log

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+FileExtension)

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, path string, filter Filter) []Event {
	t.Helper()
	reader, err := NewFilteredReader(path, filter)
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	var read []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return read
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}
}

func TestReaderIteratesEvents(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), SessionID: "sess-1", Layer: LayerTransport, Category: CategoryError},
		{Timestamp: time.Now(), SessionID: "sess-2", Layer: LayerChannel, Category: CategoryNotification},
		{Timestamp: time.Now(), SessionID: "sess-3", Layer: LayerService, Category: CategoryChannel},
	}

	read := readAll(t, createTestLogFile(t, events), Filter{})
	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	for i, e := range read {
		if e.SessionID != events[i].SessionID {
			t.Errorf("event %d: SessionID = %q, want %q", i, e.SessionID, events[i].SessionID)
		}
	}
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	if read := readAll(t, createTestLogFile(t, nil), Filter{}); len(read) != 0 {
		t.Errorf("got %d events from empty file", len(read))
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	in, out := DirectionIn, DirectionOut
	client := RoleClient
	state := CategoryState
	channel := LayerChannel
	start, end := base.Add(time.Second), base.Add(3*time.Second)

	events := []Event{
		{Timestamp: base, SessionID: "a", LocalRole: RoleServer, ChannelID: 1, Direction: DirectionIn,
			Layer: LayerChannel, Category: CategoryNotification},
		{Timestamp: base.Add(time.Second), SessionID: "b", LocalRole: RoleClient, ChannelID: 2, Direction: DirectionOut,
			Layer: LayerService, Category: CategorySubscription,
			Subscription: &SubscriptionEvent{Action: SubscriptionRegistered, SubscriptionID: 9}},
		{Timestamp: base.Add(2 * time.Second), SessionID: "b", LocalRole: RoleClient, ChannelID: 2, Direction: DirectionIn,
			Layer: LayerChannel, Category: CategoryState},
		{Timestamp: base.Add(3 * time.Second), SessionID: "a", LocalRole: RoleServer, ChannelID: 1, Direction: DirectionOut,
			Layer: LayerChannel, Category: CategoryNotification},
	}
	path := createTestLogFile(t, events)

	tests := []struct {
		name   string
		filter Filter
		want   []int
	}{
		{"session", Filter{SessionID: "a"}, []int{0, 3}},
		{"direction in", Filter{Direction: &in}, []int{0, 2}},
		{"direction out", Filter{Direction: &out}, []int{1, 3}},
		{"role", Filter{Role: &client}, []int{1, 2}},
		{"layer", Filter{Layer: &channel}, []int{0, 2, 3}},
		{"category", Filter{Category: &state}, []int{2}},
		{"channel", Filter{ChannelID: 1}, []int{0, 3}},
		{"subscription", Filter{SubscriptionID: 9}, []int{1}},
		{"time range", Filter{TimeStart: &start, TimeEnd: &end}, []int{1, 2}},
		{"combined", Filter{SessionID: "b", Direction: &in}, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			read := readAll(t, path, tt.filter)
			if len(read) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(read), len(tt.want))
			}
			for i, idx := range tt.want {
				if !read[i].Timestamp.Equal(events[idx].Timestamp) {
					t.Errorf("event %d: Timestamp = %v, want %v", i, read[i].Timestamp, events[idx].Timestamp)
				}
			}
		})
	}
}

func TestNewReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing"+FileExtension)); err == nil {
		t.Error("NewReader succeeded for a missing file")
	}
}

func TestReaderFiltersWoopsaPayloads(t *testing.T) {
	created, expired := ChannelCreated, ChannelExpired
	failed := SubscriptionFailed

	events := []Event{
		{SessionID: "0", Category: CategoryChannel, Channel: &ChannelEvent{Action: ChannelCreated, QueueSize: 10}},
		{SessionID: "1", Category: CategorySubscription,
			Subscription: &SubscriptionEvent{Action: SubscriptionRegistered, SubscriptionID: 1, Path: "/Plant/Temperature"}},
		{SessionID: "2", Category: CategorySubscription,
			Subscription: &SubscriptionEvent{Action: SubscriptionFailed, SubscriptionID: 2, Path: "/Plant2/Missing"}},
		{SessionID: "3", Category: CategoryNotification, Notification: &NotificationEvent{Count: 4, FirstID: 1, LastID: 4}},
		{SessionID: "4", Category: CategoryNotification, Notification: &NotificationEvent{Count: 2, FirstID: 5, LastID: 6, Dropped: 1}},
		{SessionID: "5", Category: CategoryNotification, Notification: &NotificationEvent{Overflow: true}},
		{SessionID: "6", Category: CategoryChannel, Channel: &ChannelEvent{Action: ChannelExpired, Reason: "idle"}},
	}
	path := createTestLogFile(t, events)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"channel created", Filter{ChannelAction: &created}, []string{"0"}},
		{"channel expired", Filter{ChannelAction: &expired}, []string{"6"}},
		{"subscription failed", Filter{SubscriptionAction: &failed}, []string{"2"}},
		{"path prefix", Filter{Path: "/Plant"}, []string{"1"}},
		{"path trailing slash", Filter{Path: "/Plant/"}, []string{"1"}},
		{"exact path", Filter{Path: "/Plant2/Missing"}, []string{"2"}},
		{"lost", Filter{Lost: true}, []string{"4", "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			read := readAll(t, path, tt.filter)
			var got []string
			for _, e := range read {
				got = append(got, e.SessionID)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("sessions = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sessions = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestReaderCountsSkipped(t *testing.T) {
	notification := CategoryNotification
	path := createTestLogFile(t, []Event{
		{Category: CategoryChannel},
		{Category: CategoryNotification},
		{Category: CategoryState},
	})

	reader, err := NewFilteredReader(path, Filter{Category: &notification})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()
	for {
		if _, err := reader.Next(); err != nil {
			break
		}
	}
	if reader.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", reader.Skipped())
	}
}

func TestReaderStopsAtTruncatedRecord(t *testing.T) {
	path := createTestLogFile(t, []Event{{SessionID: "complete"}})

	partial, err := EncodeEvent(Event{SessionID: "cut short by a crash"})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if _, err := f.Write(partial[:len(partial)/2]); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	f.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	e, err := reader.Next()
	if err != nil || e.SessionID != "complete" {
		t.Fatalf("Next() = %+v, %v; want the complete event", e, err)
	}
	if _, err := reader.Next(); err != io.EOF {
		t.Fatalf("Next() error = %v, want io.EOF", err)
	}
	if !reader.Truncated() {
		t.Error("Truncated() = false, want true")
	}
}
