package wire

import "github.com/woopsa-protocol/woopsa-go/pkg/value"

// Meta describes an object: its children, properties and methods.
type Meta struct {
	Name       string         `json:"Name"`
	Items      []string       `json:"Items"`
	Properties []PropertyMeta `json:"Properties"`
	Methods    []MethodMeta   `json:"Methods"`
}

// PropertyMeta describes a property.
type PropertyMeta struct {
	Name     string     `json:"Name"`
	Type     value.Type `json:"Type"`
	ReadOnly bool       `json:"ReadOnly"`
}

// MethodMeta describes a method.
type MethodMeta struct {
	Name          string         `json:"Name"`
	ReturnType    value.Type     `json:"ReturnType"`
	ArgumentInfos []ArgumentMeta `json:"ArgumentInfos"`
}

// ArgumentMeta describes a method argument.
type ArgumentMeta struct {
	Name string     `json:"Name"`
	Type value.Type `json:"Type"`
}

// HasItem returns true if the object has a child named name.
func (m *Meta) HasItem(name string) bool {
	for _, item := range m.Items {
		if item == name {
			return true
		}
	}
	return false
}

// Method returns the metadata of the named method.
func (m *Meta) Method(name string) (MethodMeta, bool) {
	for _, mm := range m.Methods {
		if mm.Name == name {
			return mm, true
		}
	}
	return MethodMeta{}, false
}

// Property returns the metadata of the named property.
func (m *Meta) Property(name string) (PropertyMeta, bool) {
	for _, pm := range m.Properties {
		if pm.Name == name {
			return pm, true
		}
	}
	return PropertyMeta{}, false
}
