package realm

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// Converter turns an engine value into the value handed to application code.
type Converter func(r *Realm, v wire.Value) (any, error)

// typeRegistry is the process-wide Type Registry. Entries never change
// once registered.
var typeRegistry = struct {
	mu         sync.RWMutex
	converters map[wire.Kind]Converter
}{converters: make(map[wire.Kind]Converter)}

// RegisterConverter installs the converter for a wire kind. Registering a
// kind twice fails.
func RegisterConverter(kind wire.Kind, c Converter) error {
	typeRegistry.mu.Lock()
	defer typeRegistry.mu.Unlock()

	if _, exists := typeRegistry.converters[kind]; exists {
		return newError(ErrType, "register converter", "a converter for %s is already registered", kind)
	}
	typeRegistry.converters[kind] = c
	return nil
}

// LookupConverter returns the converter registered for kind.
func LookupConverter(kind wire.Kind) (Converter, bool) {
	typeRegistry.mu.RLock()
	defer typeRegistry.mu.RUnlock()
	c, ok := typeRegistry.converters[kind]
	return c, ok
}

// Kinds lists the property kinds a schema may declare.
func Kinds() []schema.Kind {
	return slices.Clone(schema.Kinds)
}

func mustRegister(kind wire.Kind, c Converter) {
	if err := RegisterConverter(kind, c); err != nil {
		panic(err)
	}
}

func init() {
	scalar := func(_ *Realm, v wire.Value) (any, error) { return wire.Native(v), nil }
	for _, k := range []wire.Kind{
		wire.KindNull, wire.KindBool, wire.KindInt, wire.KindFloat,
		wire.KindDouble, wire.KindString, wire.KindDate, wire.KindData,
	} {
		mustRegister(k, scalar)
	}

	mustRegister(wire.KindObject, func(r *Realm, v wire.Value) (any, error) {
		return r.materialize(v.(wire.Object)), nil
	})
	mustRegister(wire.KindList, func(r *Realm, v wire.Value) (any, error) {
		return &List{collection{realm: r, handle: v.(wire.List)}}, nil
	})
	mustRegister(wire.KindResults, func(r *Realm, v wire.Value) (any, error) {
		return &Results{collection{realm: r, handle: v.(wire.Results)}}, nil
	})
	mustRegister(wire.KindArray, func(r *Realm, v wire.Value) (any, error) {
		arr := v.(wire.Array)
		out := make([]any, len(arr))
		for i, e := range arr {
			n, err := r.fromWire(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	})
	mustRegister(wire.KindMap, func(r *Realm, v wire.Value) (any, error) {
		m := v.(wire.Map)
		out := make(map[string]any, len(m))
		for k, e := range m {
			n, err := r.fromWire(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	})
}

// fromWire converts an engine value through the Type Registry. Values of a
// kind without a converter pass through unchanged.
func (r *Realm) fromWire(v wire.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	c, ok := LookupConverter(wire.KindOf(v))
	if !ok {
		return v, nil
	}
	return c(r, v)
}

// toWire converts an application value for the engine: handles and
// collections of this realm's file, maps, slices and scalars.
func (r *Realm) toWire(v any) (wire.Value, error) {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return wire.Null{}, nil
	}
	switch val := v.(type) {
	case nil:
		return wire.Null{}, nil
	case wire.Value:
		return val, nil
	case Handle:
		o := val.object()
		if o == nil {
			return wire.Null{}, nil
		}
		if !r.sameFile(o.realm) {
			return nil, newError(ErrType, "convert", "%s belongs to a different realm", o.ref)
		}
		return o.ref, nil
	case *Results:
		if !r.sameFile(val.realm) {
			return nil, newError(ErrType, "convert", "results belong to a different realm")
		}
		return val.handle, nil
	case *List:
		if !r.sameFile(val.realm) {
			return nil, newError(ErrType, "convert", "list belongs to a different realm")
		}
		return val.handle, nil
	case []byte:
		if val == nil {
			return wire.Null{}, nil
		}
		return wire.Data(bytes.Clone(val)), nil
	case []any:
		return r.arrayToWire(len(val), func(i int) any { return val[i] })
	case map[string]any:
		out := make(wire.Map, len(val))
		for k, e := range val {
			w, err := r.toWire(e)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return wire.Null{}, nil
		}
		return r.arrayToWire(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, newError(ErrType, "convert", "map keys must be strings, got %s", rv.Type().Key())
		}
		out := make(wire.Map, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			w, err := r.toWire(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = w
		}
		return out, nil
	}

	w, err := wire.FromScalar(v)
	if err != nil {
		return nil, &Error{Kind: ErrType, Op: "convert", Err: err}
	}
	return w, nil
}

func (r *Realm) arrayToWire(n int, at func(int) any) (wire.Value, error) {
	out := make(wire.Array, n)
	for i := range n {
		w, err := r.toWire(at(i))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}
