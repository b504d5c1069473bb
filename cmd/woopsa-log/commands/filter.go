package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output         string
	SessionID      string
	ChannelID      int64
	SubscriptionID int64
	TimeStart      string
	TimeEnd        string
	Layer          string
	Direction      string
	Category       string
	Role           string

	// Criteria on the event payloads.
	Path               string
	ChannelAction      string
	SubscriptionAction string
	Lost               bool
}

// filter converts the options to a log.Filter.
func (o FilterOptions) filter() (log.Filter, error) {
	f := log.Filter{
		SessionID:      o.SessionID,
		ChannelID:      o.ChannelID,
		SubscriptionID: o.SubscriptionID,
		Path:           o.Path,
		Lost:           o.Lost,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return f, fmt.Errorf("invalid time-start format: %w", err)
		}
		f.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return f, fmt.Errorf("invalid time-end format: %w", err)
		}
		f.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := ParseLayerFlag(o.Layer)
		if err != nil {
			return f, err
		}
		f.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirectionFlag(o.Direction)
		if err != nil {
			return f, err
		}
		f.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	if o.Role != "" {
		r, err := ParseRoleFlag(o.Role)
		if err != nil {
			return f, err
		}
		f.Role = &r
	}
	if o.ChannelAction != "" {
		a, err := ParseChannelActionFlag(o.ChannelAction)
		if err != nil {
			return f, err
		}
		f.ChannelAction = &a
	}
	if o.SubscriptionAction != "" {
		a, err := ParseSubscriptionActionFlag(o.SubscriptionAction)
		if err != nil {
			return f, err
		}
		f.SubscriptionAction = &a
	}
	return f, nil
}

// RunFilter filters the log file and writes matching events to a new file.
// It returns the number of events written.
func RunFilter(path string, opts FilterOptions) (int, error) {
	filter, err := opts.filter()
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}
	return count, logger.Flush()
}
