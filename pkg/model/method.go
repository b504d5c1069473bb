package model

import (
	"context"
	"fmt"

	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// MethodHandler is the function signature for method implementations.
// Arguments are already converted to their declared types.
type MethodHandler func(ctx context.Context, args map[string]value.Value) (value.Value, error)

// ArgumentMetadata describes a method argument.
type ArgumentMetadata struct {
	Name string
	Type value.Type
}

// MethodMetadata describes a method.
type MethodMetadata struct {
	// Name is the method name within its object.
	Name string

	// ReturnType is the type of the result. TypeNull for methods
	// without a result.
	ReturnType value.Type

	// Arguments lists the expected arguments in declaration order.
	// All arguments are mandatory.
	Arguments []ArgumentMetadata

	// Description is a human-readable description.
	Description string
}

// Method is an invokable operation of an object.
type Method struct {
	metadata *MethodMetadata
	handler  MethodHandler
}

// NewMethod creates a new method with the given metadata and handler.
func NewMethod(meta *MethodMetadata, handler MethodHandler) *Method {
	return &Method{
		metadata: meta,
		handler:  handler,
	}
}

// Name returns the method name.
func (m *Method) Name() string {
	return m.metadata.Name
}

// Metadata returns the method metadata.
func (m *Method) Metadata() *MethodMetadata {
	return m.metadata
}

// Invoke validates and converts args, then runs the handler.
func (m *Method) Invoke(ctx context.Context, args map[string]value.Value) (value.Value, error) {
	converted, err := m.convertArguments(args)
	if err != nil {
		return value.Value{}, err
	}

	if m.handler == nil {
		return value.Value{}, fmt.Errorf("%w: method %s has no handler", wire.ErrNotFound, m.metadata.Name)
	}

	result, err := m.handler(ctx, converted)
	if err != nil {
		return value.Value{}, err
	}
	if m.metadata.ReturnType == value.TypeNull {
		return value.Null(), nil
	}
	return result.Convert(m.metadata.ReturnType)
}

// convertArguments checks that every declared argument is present and
// converts it to its declared type.
func (m *Method) convertArguments(args map[string]value.Value) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(m.metadata.Arguments))
	for _, a := range m.metadata.Arguments {
		v, ok := args[a.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing argument %s", wire.ErrInvalidArgument, m.metadata.Name, a.Name)
		}
		cv, err := v.Convert(a.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: argument %s: %v", wire.ErrInvalidArgument, m.metadata.Name, a.Name, err)
		}
		out[a.Name] = cv
	}
	return out, nil
}
