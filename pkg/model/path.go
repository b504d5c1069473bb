package model

import (
	"fmt"
	"strings"

	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// PathSeparator separates path segments.
const PathSeparator = "/"

// Target is the result of resolving a path.
// Exactly one of Object, Property, Method and Remote is set.
type Target struct {
	Object   *Object
	Property *Property
	Method   *Method

	// Remote is set when the path crosses a mount point. Rest is the
	// remaining path within the mounted server, starting with "/".
	Remote *Remote
	Rest   string
}

// SplitPath returns the non-empty segments of path.
func SplitPath(path string) []string {
	parts := strings.Split(path, PathSeparator)
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// JoinPath joins segments into an absolute path.
func JoinPath(segs ...string) string {
	var all []string
	for _, s := range segs {
		all = append(all, SplitPath(s)...)
	}
	return PathSeparator + strings.Join(all, PathSeparator)
}

// Resolve walks path from root.
// Returns wire.ErrNotFound if a segment does not exist.
func Resolve(root *Object, path string) (*Target, error) {
	segs := SplitPath(path)
	cur := root

	for i, seg := range segs {
		last := i == len(segs)-1

		if it, ok := cur.Item(seg); ok {
			switch item := it.(type) {
			case *Remote:
				return &Target{Remote: item, Rest: JoinPath(segs[i+1:]...)}, nil
			case *Object:
				cur = item
				continue
			}
		}

		if !last {
			return nil, fmt.Errorf("%w: %s", wire.ErrNotFound, path)
		}
		if p, ok := cur.Property(seg); ok {
			return &Target{Property: p}, nil
		}
		if m, ok := cur.Method(seg); ok {
			return &Target{Method: m}, nil
		}
		return nil, fmt.Errorf("%w: %s", wire.ErrNotFound, path)
	}

	return &Target{Object: cur}, nil
}

// ResolveProperty resolves path to a local property.
func ResolveProperty(root *Object, path string) (*Property, error) {
	t, err := Resolve(root, path)
	if err != nil {
		return nil, err
	}
	if t.Property == nil {
		return nil, fmt.Errorf("%w: %s is not a property", wire.ErrNotFound, path)
	}
	return t.Property, nil
}

func validName(name string) bool {
	return name != "" && !strings.Contains(name, PathSeparator)
}
