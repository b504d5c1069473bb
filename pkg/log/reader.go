package log

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events of a capture. The zero Filter selects everything;
// each set field narrows the selection.
type Filter struct {
	SessionID string
	Direction *Direction
	Layer     *Layer
	Category  *Category
	Role      *Role

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	ChannelID int64

	// SubscriptionID and Path select subscription lifecycle events. Path
	// matches the watched path or any path below it.
	SubscriptionID int64
	Path           string

	ChannelAction      *ChannelAction
	SubscriptionAction *SubscriptionAction

	// Lost selects notification batches that dropped notifications or
	// reported an overflow.
	Lost bool
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	return f.matchEnvelope(e) && f.matchChannel(e.Channel) &&
		f.matchSubscription(e.Subscription) && f.matchNotification(e.Notification)
}

func (f Filter) matchEnvelope(e Event) bool {
	switch {
	case f.SessionID != "" && e.SessionID != f.SessionID,
		f.Direction != nil && e.Direction != *f.Direction,
		f.Layer != nil && e.Layer != *f.Layer,
		f.Category != nil && e.Category != *f.Category,
		f.Role != nil && e.LocalRole != *f.Role,
		f.ChannelID != 0 && e.ChannelID != f.ChannelID,
		f.TimeStart != nil && e.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !e.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

func (f Filter) matchChannel(c *ChannelEvent) bool {
	if f.ChannelAction == nil {
		return true
	}
	return c != nil && c.Action == *f.ChannelAction
}

func (f Filter) matchSubscription(s *SubscriptionEvent) bool {
	if f.SubscriptionID == 0 && f.Path == "" && f.SubscriptionAction == nil {
		return true
	}
	if s == nil {
		return false
	}
	if f.SubscriptionID != 0 && s.SubscriptionID != f.SubscriptionID {
		return false
	}
	if f.SubscriptionAction != nil && s.Action != *f.SubscriptionAction {
		return false
	}
	return f.Path == "" || underPath(s.Path, f.Path)
}

func (f Filter) matchNotification(n *NotificationEvent) bool {
	if !f.Lost {
		return true
	}
	return n != nil && (n.Dropped > 0 || n.Overflow)
}

// underPath reports whether path is prefix or lies below it.
func underPath(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Reader streams the events of a capture file.
//
// A server killed while writing can leave a partial record at the end of
// the file. The reader ends at such a record instead of failing; Truncated
// reports whether it did.
type Reader struct {
	src       io.ReadCloser
	dec       *cbor.Decoder
	filter    Filter
	skipped   int
	truncated bool
}

// NewReader opens a capture file for reading every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a capture file for reading the events passing
// filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{src: f, dec: NewDecoder(f), filter: filter}, nil
}

// Next returns the next event passing the filter, or io.EOF at the end of
// the capture.
func (r *Reader) Next() (Event, error) {
	for {
		var e Event
		err := r.dec.Decode(&e)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return Event{}, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			r.truncated = true
			return Event{}, io.EOF
		default:
			return Event{}, err
		}

		if r.filter.Match(e) {
			return e, nil
		}
		r.skipped++
	}
}

// Skipped returns the number of events the filter rejected so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Truncated reports whether the capture ended in a partial record.
func (r *Reader) Truncated() bool {
	return r.truncated
}

// Close closes the capture file.
func (r *Reader) Close() error {
	return r.src.Close()
}
