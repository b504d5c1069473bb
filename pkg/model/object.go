package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// Object errors.
var (
	ErrDuplicateName = errors.New("duplicate name")
	ErrInvalidName   = errors.New("invalid name")
)

// Item is a child of an object: an *Object or a *Remote.
type Item interface {
	Name() string
	isItem()
}

// Object is a named container of items, properties and methods.
type Object struct {
	mu sync.RWMutex

	name string

	// Members indexed by name, with declaration order kept for metadata.
	items      map[string]Item
	properties map[string]*Property
	methods    map[string]*Method
	order      []string
}

// NewObject creates an empty object.
func NewObject(name string) *Object {
	return &Object{
		name:       name,
		items:      make(map[string]Item),
		properties: make(map[string]*Property),
		methods:    make(map[string]*Method),
	}
}

// Name returns the object name.
func (o *Object) Name() string {
	return o.name
}

func (o *Object) isItem() {}

// AddItem adds a child object.
func (o *Object) AddItem(child *Object) error {
	return o.add(child.Name(), func() { o.items[child.Name()] = child })
}

// Mount adds a remote mount point whose subtree is served by client.
func (o *Object) Mount(name string, client RemoteClient) (*Remote, error) {
	r := NewRemote(name, client)
	if err := o.add(name, func() { o.items[name] = r }); err != nil {
		return nil, err
	}
	return r, nil
}

// AddProperty adds a property.
func (o *Object) AddProperty(p *Property) error {
	return o.add(p.Name(), func() { o.properties[p.Name()] = p })
}

// AddMethod adds a method.
func (o *Object) AddMethod(m *Method) error {
	return o.add(m.Name(), func() { o.methods[m.Name()] = m })
}

func (o *Object) add(name string, insert func()) error {
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.hasUnlocked(name) {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateName, name, o.name)
	}
	insert()
	o.order = append(o.order, name)
	return nil
}

// Remove removes the member with the given name.
// Returns false if no such member exists.
func (o *Object) Remove(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.hasUnlocked(name) {
		return false
	}
	delete(o.items, name)
	delete(o.properties, name)
	delete(o.methods, name)
	for i, n := range o.order {
		if n == name {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

func (o *Object) hasUnlocked(name string) bool {
	_, isItem := o.items[name]
	_, isProperty := o.properties[name]
	_, isMethod := o.methods[name]
	return isItem || isProperty || isMethod
}

// Item returns a child by name.
func (o *Object) Item(name string) (Item, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	it, ok := o.items[name]
	return it, ok
}

// Property returns a property by name.
func (o *Object) Property(name string) (*Property, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.properties[name]
	return p, ok
}

// Method returns a method by name.
func (o *Object) Method(name string) (*Method, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	m, ok := o.methods[name]
	return m, ok
}

// Meta describes the object for the meta verb.
func (o *Object) Meta() *wire.Meta {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := &wire.Meta{
		Name:       o.name,
		Items:      []string{},
		Properties: []wire.PropertyMeta{},
		Methods:    []wire.MethodMeta{},
	}
	for _, name := range o.order {
		if _, ok := o.items[name]; ok {
			m.Items = append(m.Items, name)
		}
		if p, ok := o.properties[name]; ok {
			md := p.Metadata()
			m.Properties = append(m.Properties, wire.PropertyMeta{
				Name:     md.Name,
				Type:     md.Type,
				ReadOnly: md.ReadOnly,
			})
		}
		if mt, ok := o.methods[name]; ok {
			md := mt.Metadata()
			mm := wire.MethodMeta{
				Name:          md.Name,
				ReturnType:    md.ReturnType,
				ArgumentInfos: make([]wire.ArgumentMeta, 0, len(md.Arguments)),
			}
			for _, a := range md.Arguments {
				mm.ArgumentInfos = append(mm.ArgumentInfos, wire.ArgumentMeta{Name: a.Name, Type: a.Type})
			}
			m.Methods = append(m.Methods, mm)
		}
	}
	return m
}
