package facet

import (
	"reflect"
)

// PropertyReader is the read capability source objects expose: Value returns
// the named property and whether the object has such a property at all.
// "No such property" (false) is distinct from "property holds nil" (nil, true).
type PropertyReader interface {
	Value(name string) (any, bool)
}

// PropertyWriter is the mutation capability path-addressed updates need.
type PropertyWriter interface {
	SetValue(name string, value any) error
}

// propState classifies a property lookup on an arbitrary node.
type propState int

const (
	// propNoAccessor: the node has no such property.
	propNoAccessor propState = iota
	// propAbsent: the property is declared but was never populated.
	propAbsent
	// propPresent: the property holds a value (possibly nil).
	propPresent
)

// lookupProperty reads a named property from any supported node kind.
// Generic records distinguish declared-but-unpopulated from undeclared;
// plain maps and readers treat a missing key as "no such property".
func lookupProperty(node any, name string) (any, propState) {
	switch n := node.(type) {
	case *GenericRecord:
		if n == nil {
			return nil, propNoAccessor
		}
		if _, err := n.Property(name); err != nil {
			return nil, propNoAccessor
		}
		v, populated := n.Value(name)
		if !populated {
			return nil, propAbsent
		}
		return v, propPresent
	case map[string]any:
		v, ok := n[name]
		if !ok {
			return nil, propNoAccessor
		}
		return v, propPresent
	case PropertyReader:
		v, ok := n.Value(name)
		if !ok {
			return nil, propNoAccessor
		}
		return v, propPresent
	}
	return nil, propNoAccessor
}

// writeProperty writes a named property on a mutable node.
func writeProperty(node any, name string, value any) error {
	switch n := node.(type) {
	case PropertyWriter:
		return n.SetValue(name, value)
	case map[string]any:
		n[name] = value
		return nil
	}
	return NewInternalError("node does not support property writes", nil).WithProperty(name)
}

// asSequence coerces a value into an indexable view. []any is the fast path;
// other slice and array kinds go through reflection.
func asSequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case []any:
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}
