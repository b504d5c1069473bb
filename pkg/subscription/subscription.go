package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// Subscription errors.
var (
	ErrInvalidInterval = errors.New("invalid subscription interval")
	ErrTooManyChannels = errors.New("maximum subscription channels reached")
	ErrChannelClosed   = errors.New("subscription channel closed")
)

// Default intervals and limits.
const (
	DefaultMonitorInterval = 200 * time.Millisecond
	DefaultPublishInterval = 200 * time.Millisecond
	DefaultQueueSize       = 1000
	DefaultChannelLifetime = 20 * time.Minute
	DefaultWaitTimeout     = 5 * time.Second
)

// pushBuffer bounds values pushed by a watcher but not yet compared.
const pushBuffer = 16

// Subscription watches one source on behalf of a channel.
//
// Two goroutines run per subscription. The monitor samples the source every
// monitor interval (or receives pushed values) and compares each value with
// the last one it saw; changes are passed to the publisher, which batches
// them for the publish interval and hands each batch to the channel. The
// last value is owned by the monitor goroutine only.
type Subscription struct {
	id              int
	path            string
	monitorInterval time.Duration
	publishInterval time.Duration

	source  Source
	publish func([]wire.Notification)

	changes chan wire.Notification
	pushed  chan value.Value

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopWatch func()
	stopOnce  sync.Once
}

// newSubscription validates the intervals and creates a stopped subscription.
func newSubscription(id int, path string, monitor, publish time.Duration, src Source, sink func([]wire.Notification)) (*Subscription, error) {
	if monitor < 0 || publish < 0 {
		return nil, fmt.Errorf("%w: %w: monitor %v, publish %v", wire.ErrInvalidArgument, ErrInvalidInterval, monitor, publish)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscription{
		id:              id,
		path:            path,
		monitorInterval: monitor,
		publishInterval: publish,
		source:          src,
		publish:         sink,
		changes:         make(chan wire.Notification, pushBuffer),
		ctx:             ctx,
		cancel:          cancel,
	}, nil
}

// ID returns the subscription id, unique within its channel.
func (s *Subscription) ID() int {
	return s.id
}

// Path returns the watched path.
func (s *Subscription) Path() string {
	return s.path
}

// MonitorInterval returns the sampling period. Zero means the source
// pushes its changes.
func (s *Subscription) MonitorInterval() time.Duration {
	return s.monitorInterval
}

// PublishInterval returns the batching period.
func (s *Subscription) PublishInterval() time.Duration {
	return s.publishInterval
}

// start reads the baseline and launches the monitor and publisher.
// The baseline itself is never notified.
func (s *Subscription) start(ctx context.Context) error {
	var (
		baseline value.Value
		primed   bool
	)
	if sampler, ok := s.source.(Sampler); ok {
		v, err := sampler.Sample(ctx)
		if err != nil && errors.Is(err, wire.ErrNotFound) {
			return err
		}
		baseline, primed = v, err == nil
	}

	if canPush(s.source, s.monitorInterval) {
		s.pushed = make(chan value.Value, pushBuffer)
		stop, err := s.source.(Watcher).Watch(s.push)
		if err != nil {
			return err
		}
		s.stopWatch = stop
	} else if _, ok := s.source.(Sampler); !ok {
		return fmt.Errorf("%w: %s cannot be sampled", wire.ErrInvalidArgument, s.path)
	}

	s.wg.Add(2)
	go s.monitor(baseline, primed)
	go s.publisher()
	return nil
}

// stop ends both goroutines and waits for them. A batch being handed to
// the channel completes first.
func (s *Subscription) stop() {
	s.stopOnce.Do(func() {
		if s.stopWatch != nil {
			s.stopWatch()
		}
		s.cancel()
	})
	s.wg.Wait()
}

// push receives a value from a watcher.
func (s *Subscription) push(v value.Value) {
	select {
	case s.pushed <- v:
	case <-s.ctx.Done():
	}
}

func (s *Subscription) monitor(last value.Value, primed bool) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.pushed == nil {
		interval := s.monitorInterval
		if interval == 0 {
			interval = DefaultMonitorInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	check := func(v value.Value) {
		if primed && v.Equal(last) {
			return
		}
		if _, ok := v.TimeStamp(); !ok {
			v = v.WithTimeStamp(time.Now())
		}
		last, primed = v, true
		select {
		case s.changes <- wire.Notification{Value: v, SubscriptionID: s.id}:
		case <-s.ctx.Done():
		}
	}

	sampler, _ := s.source.(Sampler)
	for {
		select {
		case <-s.ctx.Done():
			return
		case v := <-s.pushed:
			check(v)
		case <-tick:
			v, err := sampler.Sample(s.ctx)
			if err != nil {
				// Unreadable values produce no notification; the next
				// successful sample is compared with the last good one.
				continue
			}
			check(v)
		}
	}
}

func (s *Subscription) publisher() {
	defer s.wg.Done()

	var (
		pending []wire.Notification
		tick    <-chan time.Time
	)
	if s.publishInterval > 0 {
		ticker := time.NewTicker(s.publishInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		s.publish(batch)
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case n := <-s.changes:
			pending = append(pending, n)
			if tick == nil {
				s.drain(&pending)
				flush()
			}
		case <-tick:
			flush()
		}
	}
}

// drain moves already queued changes into pending without blocking.
func (s *Subscription) drain(pending *[]wire.Notification) {
	for {
		select {
		case n := <-s.changes:
			*pending = append(*pending, n)
		default:
			return
		}
	}
}
