package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// PropertyMetadata describes a property.
type PropertyMetadata struct {
	// Name is the property name within its object.
	Name string

	// Type is the value type.
	Type value.Type

	// ReadOnly rejects writes through Write.
	ReadOnly bool

	// Default is the initial value of a stored property.
	// A zero Value is replaced by the zero value of Type.
	Default value.Value

	// Description is a human-readable description.
	Description string
}

// Getter computes the current value of a property.
type Getter func(ctx context.Context) (value.Value, error)

// Setter applies a written value.
type Setter func(ctx context.Context, v value.Value) error

// Property is a typed, named value of an object.
type Property struct {
	mu       sync.RWMutex
	metadata *PropertyMetadata
	value    value.Value
	getter   Getter
	setter   Setter

	watchers  map[uint64]func(value.Value)
	nextWatch uint64
}

// NewProperty creates a stored property.
func NewProperty(meta *PropertyMetadata) *Property {
	initial := meta.Default
	if initial.Type() != meta.Type {
		initial = zeroValue(meta.Type)
	}
	return &Property{
		metadata: meta,
		value:    initial,
		watchers: make(map[uint64]func(value.Value)),
	}
}

// NewComputedProperty creates a property whose value comes from get.
// set may be nil for read-only properties.
func NewComputedProperty(meta *PropertyMetadata, get Getter, set Setter) *Property {
	if set == nil {
		meta.ReadOnly = true
	}
	return &Property{
		metadata: meta,
		getter:   get,
		setter:   set,
		watchers: make(map[uint64]func(value.Value)),
	}
}

// Name returns the property name.
func (p *Property) Name() string {
	return p.metadata.Name
}

// Metadata returns the property metadata.
func (p *Property) Metadata() *PropertyMetadata {
	return p.metadata
}

// Read returns the current value.
func (p *Property) Read(ctx context.Context) (value.Value, error) {
	if p.getter != nil {
		v, err := p.getter(ctx)
		if err != nil {
			return value.Value{}, err
		}
		return v.Convert(p.metadata.Type)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, nil
}

// Write sets the value on behalf of a client.
// Returns wire.ErrReadOnly for read-only properties.
func (p *Property) Write(ctx context.Context, v value.Value) error {
	if p.metadata.ReadOnly {
		return fmt.Errorf("%w: %s", wire.ErrReadOnly, p.metadata.Name)
	}
	return p.set(ctx, v)
}

// SetValue sets the value without checking write access.
// Used by the server implementation to update read-only properties.
func (p *Property) SetValue(v value.Value) error {
	return p.set(context.Background(), v)
}

func (p *Property) set(ctx context.Context, v value.Value) error {
	converted, err := v.Convert(p.metadata.Type)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", wire.ErrInvalidArgument, p.metadata.Name, err)
	}

	if p.setter != nil {
		return p.setter(ctx, converted)
	}
	if p.getter != nil {
		return fmt.Errorf("%w: %s", wire.ErrReadOnly, p.metadata.Name)
	}

	p.mu.Lock()
	changed := !p.value.Equal(converted)
	p.value = converted
	p.mu.Unlock()

	if changed {
		p.notifyChanged(converted)
	}
	return nil
}

// CanWatch returns true if the property pushes its changes.
func (p *Property) CanWatch() bool {
	return p.getter == nil
}

// Watch registers fn to be called with every new value. The returned
// function removes the watcher. Computed properties cannot be watched.
func (p *Property) Watch(fn func(value.Value)) (stop func(), err error) {
	if !p.CanWatch() {
		return nil, fmt.Errorf("property %s is computed and cannot be watched", p.metadata.Name)
	}

	p.mu.Lock()
	id := p.nextWatch
	p.nextWatch++
	p.watchers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}, nil
}

// notifyChanged calls all watchers outside the lock.
func (p *Property) notifyChanged(v value.Value) {
	p.mu.RLock()
	fns := make([]func(value.Value), 0, len(p.watchers))
	for _, fn := range p.watchers {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

func zeroValue(t value.Type) value.Value {
	switch t {
	case value.TypeLogical:
		return value.Logical(false)
	case value.TypeInteger:
		return value.Integer(0)
	case value.TypeReal:
		return value.Real(0)
	case value.TypeTimeSpan:
		return value.TimeSpan(0)
	case value.TypeDateTime:
		return value.DateTime(time.Unix(0, 0))
	case value.TypeText:
		return value.Text("")
	case value.TypeLink:
		return value.Link("")
	case value.TypeResourceURL:
		return value.ResourceURL("")
	case value.TypeJSONData:
		return value.MustJSON([]byte("null"))
	default:
		return value.Null()
	}
}
