package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Sessions          map[string]*SessionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for one server service or client channel.
type SessionStats struct {
	Role          log.Role
	FirstSeen     time.Time
	LastSeen      time.Time
	Events        int
	Channels      map[int64]bool
	Registered    int
	Failed        int
	Lost          int
	Notifications int
	Dropped       int
}

// Collect reads the log file and aggregates its events.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Sessions:          make(map[string]*SessionStats),
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	session, ok := s.Sessions[event.SessionID]
	if !ok {
		session = &SessionStats{
			Role:      event.LocalRole,
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Channels:  make(map[int64]bool),
		}
		s.Sessions[event.SessionID] = session
	}
	session.Events++
	if event.Timestamp.After(session.LastSeen) {
		session.LastSeen = event.Timestamp
	}
	if event.ChannelID != 0 {
		session.Channels[event.ChannelID] = true
	}

	switch {
	case event.Subscription != nil:
		switch event.Subscription.Action {
		case log.SubscriptionRegistered:
			session.Registered++
		case log.SubscriptionFailed:
			session.Failed++
		case log.SubscriptionLost:
			session.Lost++
		}
	case event.Notification != nil:
		// Queued notifications are counted once, on entry.
		if event.Direction == log.DirectionIn {
			session.Notifications += event.Notification.Count
		}
		session.Dropped += event.Notification.Dropped
	case event.Error != nil:
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Woopsa Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerChannel, log.LayerService} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryChannel, log.CategorySubscription, log.CategoryNotification, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s, %d events, duration %s\n", shortenID(s.id), s.stats.Role, s.stats.Events, duration)
			fmt.Fprintf(w, "           Channels: %d\n", len(s.stats.Channels))
			fmt.Fprintf(w, "           Subscriptions: %d registered", s.stats.Registered)
			if s.stats.Failed > 0 {
				fmt.Fprintf(w, ", %d failed", s.stats.Failed)
			}
			if s.stats.Lost > 0 {
				fmt.Fprintf(w, ", %d lost", s.stats.Lost)
			}
			fmt.Fprintln(w)
			if s.stats.Notifications > 0 || s.stats.Dropped > 0 {
				fmt.Fprintf(w, "           Notifications: %d (dropped %d)\n", s.stats.Notifications, s.stats.Dropped)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
