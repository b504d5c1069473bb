package commands

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+log.FileExtension)

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
}

var testTime = time.Date(2026, 3, 2, 9, 30, 15, 250000000, time.UTC)

func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: testTime,
			SessionID: "5f1c2a90-aaaa-bbbb-cccc-000000000001",
			Direction: log.DirectionOut,
			Layer:     log.LayerService,
			Category:  log.CategoryChannel,
			LocalRole: log.RoleServer,
			ChannelID: 17,
			Channel:   &log.ChannelEvent{Action: log.ChannelCreated, QueueSize: 100},
		},
		{
			Timestamp: testTime.Add(time.Millisecond),
			SessionID: "5f1c2a90-aaaa-bbbb-cccc-000000000001",
			Direction: log.DirectionIn,
			Layer:     log.LayerService,
			Category:  log.CategorySubscription,
			LocalRole: log.RoleServer,
			ChannelID: 17,
			Subscription: &log.SubscriptionEvent{
				Action:          log.SubscriptionRegistered,
				SubscriptionID:  3,
				Path:            "/Votes",
				MonitorInterval: 20 * time.Millisecond,
				PublishInterval: 50 * time.Millisecond,
			},
		},
		{
			Timestamp:    testTime.Add(2 * time.Millisecond),
			SessionID:    "5f1c2a90-aaaa-bbbb-cccc-000000000001",
			Direction:    log.DirectionIn,
			Layer:        log.LayerChannel,
			Category:     log.CategoryNotification,
			LocalRole:    log.RoleServer,
			ChannelID:    17,
			Notification: &log.NotificationEvent{Count: 2, FirstID: 1, LastID: 2, Dropped: 1, Overflow: true},
		},
		{
			Timestamp:  testTime.Add(3 * time.Millisecond),
			SessionID:  "9b0d7e11-dddd-eeee-ffff-000000000002",
			Direction:  log.DirectionIn,
			Layer:      log.LayerChannel,
			Category:   log.CategoryState,
			LocalRole:  log.RoleClient,
			RemoteAddr: "http://127.0.0.1:8080/woopsa",
			StateChange: &log.StateChangeEvent{
				OldState: "OPENING",
				NewState: "ACTIVE",
			},
		},
		{
			Timestamp: testTime.Add(4 * time.Millisecond),
			SessionID: "9b0d7e11-dddd-eeee-ffff-000000000002",
			Direction: log.DirectionIn,
			Layer:     log.LayerTransport,
			Category:  log.CategoryError,
			LocalRole: log.RoleClient,
			Error: &log.ErrorEventData{
				Layer:   log.LayerTransport,
				Message: "connection refused",
				Context: "wait",
			},
		},
	}
}

func TestFormatEventHeader(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[1])
	output := buf.String()

	for _, want := range []string{
		"2026-03-02T09:30:15.251000Z",
		"[session:5f1c2a90]",
		"SERVER",
		"IN",
		"SERVICE",
		"Subscription REGISTERED",
		"channel=17",
		"SubscriptionID: 3",
		"Path: /Votes",
		"Monitor: 20.000ms  Publish: 50.000ms",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestFormatEventDetails(t *testing.T) {
	events := sampleEvents()
	tests := []struct {
		name  string
		event log.Event
		want  []string
	}{
		{"channel", events[0], []string{"Channel CREATED", "QueueSize: 100"}},
		{"notification", events[2], []string{"Notification", "Count: 2  IDs: 1..2", "Overflow: 1 dropped"}},
		{"state", events[3], []string{"CLIENT", "State", "OPENING -> ACTIVE", "Remote: http://127.0.0.1:8080/woopsa"}},
		{"error", events[4], []string{"Error", "Message: connection refused", "Context: wait"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, tt.event)
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0"},
		{500 * time.Nanosecond, "0.500us"},
		{1500 * time.Microsecond, "1.500ms"},
		{2 * time.Second, "2.000s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("Channel"); err != nil || l != log.LayerChannel {
		t.Errorf("ParseLayerFlag(Channel) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("wire"); err == nil {
		t.Error("ParseLayerFlag(wire) should fail")
	}
	if d, err := ParseDirectionFlag("OUT"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(OUT) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("notification"); err != nil || c != log.CategoryNotification {
		t.Errorf("ParseCategoryFlag(notification) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("frame"); err == nil {
		t.Error("ParseCategoryFlag(frame) should fail")
	}
	if r, err := ParseRoleFlag("client"); err != nil || r != log.RoleClient {
		t.Errorf("ParseRoleFlag(client) = %v, %v", r, err)
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	role := log.RoleClient
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Role: &role}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	if strings.Contains(output, "SERVER") {
		t.Errorf("server events not filtered:\n%s", output)
	}
	if got := strings.Count(output, "[session:9b0d7e11]"); got != 2 {
		t.Errorf("client events = %d, want 2", got)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.wlog"), ViewFilter{}, io.Discard)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered"+log.FileExtension)

	n, err := RunFilter(path, FilterOptions{Output: out, ChannelID: 17, Category: "subscription"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("RunFilter wrote %d events, want 1", n)
	}

	events := readAll(t, out)
	if len(events) != 1 {
		t.Fatalf("output has %d events, want 1", len(events))
	}
	if events[0].Subscription == nil || events[0].Subscription.Path != "/Votes" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestRunFilterTimeRange(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered"+log.FileExtension)

	n, err := RunFilter(path, FilterOptions{
		Output:    out,
		TimeStart: "2026-03-02T09:30:15Z",
		TimeEnd:   "2026-03-02T09:30:16Z",
		Role:      "server",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 3 {
		t.Errorf("RunFilter wrote %d events, want 3", n)
	}
}

func TestRunFilterWoopsaCriteria(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	tests := []struct {
		name string
		opts FilterOptions
		want int
	}{
		{"path", FilterOptions{Path: "/Votes"}, 1},
		{"unknown path", FilterOptions{Path: "/Vote"}, 0},
		{"channel action", FilterOptions{ChannelAction: "created"}, 1},
		{"subscription action", FilterOptions{SubscriptionAction: "REGISTERED"}, 1},
		{"lost", FilterOptions{Lost: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Output = filepath.Join(t.TempDir(), "filtered"+log.FileExtension)
			n, err := RunFilter(path, tt.opts)
			if err != nil {
				t.Fatalf("RunFilter failed: %v", err)
			}
			if n != tt.want {
				t.Errorf("RunFilter wrote %d events, want %d", n, tt.want)
			}
		})
	}
}

func TestRunFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered"+log.FileExtension)

	tests := []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, TimeEnd: "2026-13-01"},
		{Output: out, Layer: "wire"},
		{Output: out, Direction: "sideways"},
		{Output: out, Category: "frame"},
		{Output: out, Role: "device"},
		{Output: out, ChannelAction: "opened"},
		{Output: out, SubscriptionAction: "paused"},
	}
	for _, opts := range tests {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("RunFilter(%+v) should fail", opts)
		}
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output file created for invalid options")
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "events.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("failed to open export: %v", err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event log.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %d is not an event: %v", lines+1, err)
		}
		lines++
	}
	if lines != len(sampleEvents()) {
		t.Errorf("exported %d lines, want %d", lines, len(sampleEvents()))
	}
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "events.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("failed to open export: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != len(sampleEvents())+1 {
		t.Fatalf("CSV has %d records, want %d", len(records), len(sampleEvents())+1)
	}
	sub := records[2]
	if sub[6] != "17" || sub[8] != "3" || sub[9] != "/Votes" {
		t.Errorf("subscription row = %v", sub)
	}
	if records[3][10] != "2" {
		t.Errorf("notification count = %q, want 2", records[3][10])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	if err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCollectStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := Collect(path)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if stats.TotalEvents != 5 {
		t.Errorf("TotalEvents = %d, want 5", stats.TotalEvents)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if len(stats.Sessions) != 2 {
		t.Fatalf("Sessions = %d, want 2", len(stats.Sessions))
	}

	server := stats.Sessions["5f1c2a90-aaaa-bbbb-cccc-000000000001"]
	if server.Role != log.RoleServer {
		t.Errorf("Role = %v, want SERVER", server.Role)
	}
	if len(server.Channels) != 1 || server.Registered != 1 {
		t.Errorf("Channels = %d, Registered = %d, want 1, 1", len(server.Channels), server.Registered)
	}
	if server.Notifications != 2 || server.Dropped != 1 {
		t.Errorf("Notifications = %d, Dropped = %d, want 2, 1", server.Notifications, server.Dropped)
	}
	if got := stats.TimeRange.End.Sub(stats.TimeRange.Start); got != 4*time.Millisecond {
		t.Errorf("time range = %v, want 4ms", got)
	}
}

func TestRunStatsOutput(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 5",
		"CHANNEL:",
		"SUBSCRIPTION:",
		"Sessions: 2",
		"[5f1c2a90] SERVER",
		"Subscriptions: 1 registered",
		"Notifications: 2 (dropped 1)",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
