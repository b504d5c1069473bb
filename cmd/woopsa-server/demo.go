package main

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
)

// Demo is the object tree published by woopsa-server:
//
//	/Votes               Integer, writable
//	/Message             Text, writable
//	/Vote()              Integer, increments Votes
//	/Reset()             resets Votes to 0
//	/Plant/Temperature   Real, computed
//	/Plant/Setpoint      Real, writable
//	/Plant/Uptime        TimeSpan, computed
type Demo struct {
	root     *model.Object
	votes    *model.Property
	setpoint *model.Property
	started  time.Time

	mu sync.Mutex // serializes Vote and Reset
}

// NewDemo builds the demo tree below a root object called name.
func NewDemo(name string) (*Demo, error) {
	d := &Demo{
		root:    model.NewObject(name),
		started: time.Now(),
	}

	d.votes = model.NewProperty(&model.PropertyMetadata{
		Name:        "Votes",
		Type:        value.TypeInteger,
		Description: "Number of votes cast",
	})
	message := model.NewProperty(&model.PropertyMetadata{
		Name:    "Message",
		Type:    value.TypeText,
		Default: value.Text("Hello, Woopsa"),
	})

	vote := model.NewMethod(&model.MethodMetadata{
		Name:        "Vote",
		ReturnType:  value.TypeInteger,
		Description: "Casts a vote and returns the new count",
	}, func(context.Context, map[string]value.Value) (value.Value, error) {
		n, err := d.Vote()
		if err != nil {
			return value.Value{}, err
		}
		return value.Integer(n), nil
	})
	reset := model.NewMethod(&model.MethodMetadata{
		Name:       "Reset",
		ReturnType: value.TypeNull,
	}, func(context.Context, map[string]value.Value) (value.Value, error) {
		return value.Null(), d.Reset()
	})

	for _, p := range []*model.Property{d.votes, message} {
		if err := d.root.AddProperty(p); err != nil {
			return nil, err
		}
	}
	for _, m := range []*model.Method{vote, reset} {
		if err := d.root.AddMethod(m); err != nil {
			return nil, err
		}
	}

	plant, err := d.newPlant()
	if err != nil {
		return nil, err
	}
	if err := d.root.AddItem(plant); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Demo) newPlant() (*model.Object, error) {
	plant := model.NewObject("Plant")

	d.setpoint = model.NewProperty(&model.PropertyMetadata{
		Name:    "Setpoint",
		Type:    value.TypeReal,
		Default: value.Real(21),
	})
	temperature := model.NewComputedProperty(&model.PropertyMetadata{
		Name:        "Temperature",
		Type:        value.TypeReal,
		Description: "Oscillates around Setpoint",
	}, func(ctx context.Context) (value.Value, error) {
		return d.temperature(ctx, time.Now())
	}, nil)
	uptime := model.NewComputedProperty(&model.PropertyMetadata{
		Name: "Uptime",
		Type: value.TypeTimeSpan,
	}, func(context.Context) (value.Value, error) {
		return value.TimeSpan(time.Since(d.started).Truncate(time.Millisecond)), nil
	}, nil)

	for _, p := range []*model.Property{d.setpoint, temperature, uptime} {
		if err := plant.AddProperty(p); err != nil {
			return nil, err
		}
	}
	return plant, nil
}

// temperature returns the simulated temperature at now: the setpoint plus
// a one minute sine wave of 0.5 degrees.
func (d *Demo) temperature(ctx context.Context, now time.Time) (value.Value, error) {
	sp, err := d.setpoint.Read(ctx)
	if err != nil {
		return value.Value{}, err
	}
	base, err := sp.AsFloat()
	if err != nil {
		return value.Value{}, err
	}
	phase := 2 * math.Pi * float64(now.Sub(d.started)) / float64(time.Minute)
	return value.Real(math.Round((base+0.5*math.Sin(phase))*100) / 100), nil
}

// Root returns the root object.
func (d *Demo) Root() *model.Object {
	return d.root
}

// Vote increments Votes and returns the new count.
func (d *Demo) Vote() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.votes.Read(context.Background())
	if err != nil {
		return 0, err
	}
	n, err := v.AsInt()
	if err != nil {
		return 0, err
	}
	n++
	return n, d.votes.SetValue(value.Integer(n))
}

// Reset sets Votes back to 0.
func (d *Demo) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.votes.SetValue(value.Integer(0))
}

// Simulate casts a vote every interval until ctx is done.
func (d *Demo) Simulate(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Vote(); err != nil {
				return
			}
		}
	}
}
