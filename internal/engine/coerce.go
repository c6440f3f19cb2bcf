package engine

import (
	"fmt"
	"math"

	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// txn applies mutations to a working dataset.
type txn struct {
	ds    *dataset
	clock *Clock
	// results evaluates a results handle of the calling realm, used when a
	// Results value is assigned to a list.
	results func(wire.Results) ([]int64, error)
}

// atomically runs fn as one operation. When fn fails, objects it created
// and records it changed, including nested link targets, are put back.
func (t *txn) atomically(fn func() error) error {
	t.ds.begin()
	err := fn()
	t.ds.settle(err != nil)
	return err
}

func (t *txn) schemaOf(typ string) (*schema.ObjectSchema, error) {
	os, ok := t.ds.set.Get(typ)
	if !ok {
		return nil, Errorf(ErrCodeUnknownType, "unknown object type %q", typ)
	}
	return os, nil
}

// create stores a new object. values is a Map keyed by property name, an
// Array in property order, or null for all defaults.
func (t *txn) create(typ string, values wire.Value) (*record, error) {
	os, err := t.schemaOf(typ)
	if err != nil {
		return nil, err
	}
	lookup, err := valueLookup(os, values)
	if err != nil {
		return nil, err
	}

	if os.PrimaryKey != "" {
		pk, _ := os.Property(os.PrimaryKey)
		v, ok := lookup(pk.Name)
		if !ok && pk.Default != nil {
			v, ok = defaultValue(pk)
		}
		if !ok {
			return nil, Errorf(ErrCodeMissingValue, "%s.%s: primary key is required", typ, pk.Name)
		}
		v, err := t.coerce(os, pk, v)
		if err != nil {
			return nil, err
		}
		if existing := t.findByPrimaryKey(os, v); existing != nil {
			return nil, Errorf(ErrCodeDuplicatePrimaryKey, "%s with %s %s already exists", typ, pk.Name, wire.Format(v))
		}
	}

	rec := &record{gen: t.ds.gen, id: t.clock.Next(), typ: typ, values: make(map[string]wire.Value, len(os.Properties))}
	for i := range os.Properties {
		p := &os.Properties[i]
		v, given := lookup(p.Name)
		if !given {
			if v, given = defaultValue(p); !given {
				switch {
				case p.Type == schema.List:
					v = wire.Array{}
				case p.Nullable():
					v = wire.Null{}
				default:
					return nil, Errorf(ErrCodeMissingValue, "%s.%s: missing value for required property", typ, p.Name)
				}
			}
		}
		cv, err := t.coerce(os, p, v)
		if err != nil {
			return nil, err
		}
		rec.values[p.Name] = cv
	}
	t.ds.insert(rec)
	return rec, nil
}

// upsert creates an object from a value map, or updates the object with the
// same primary key when the type declares one.
func (t *txn) upsert(typ string, values wire.Map) (*record, error) {
	os, err := t.schemaOf(typ)
	if err != nil {
		return nil, err
	}
	if os.PrimaryKey != "" {
		if raw, ok := values[os.PrimaryKey]; ok {
			pk, _ := os.Property(os.PrimaryKey)
			v, err := t.coerce(os, pk, raw)
			if err != nil {
				return nil, err
			}
			if existing := t.findByPrimaryKey(os, v); existing != nil {
				for i := range os.Properties {
					p := &os.Properties[i]
					nv, ok := values[p.Name]
					if !ok || p.Name == os.PrimaryKey {
						continue
					}
					if err := t.set(os, existing, p, nv); err != nil {
						return nil, err
					}
				}
				return existing, nil
			}
		}
	}
	return t.create(typ, values)
}

func (t *txn) findByPrimaryKey(os *schema.ObjectSchema, v wire.Value) *record {
	for _, id := range t.ds.byType[os.Name] {
		if rec := t.ds.objects[id]; wire.Equal(rec.values[os.PrimaryKey], v) {
			return rec
		}
	}
	return nil
}

// set coerces v and assigns it to one property of rec.
func (t *txn) set(os *schema.ObjectSchema, rec *record, p *schema.Property, v wire.Value) error {
	cv, err := t.coerce(os, p, v)
	if err != nil {
		return err
	}
	if p.Name == os.PrimaryKey && !wire.Equal(rec.values[p.Name], cv) {
		return Errorf(ErrCodeTypeMismatch, "%s.%s: primary key cannot be changed", os.Name, p.Name)
	}
	// Coercion may have created objects and copied rec.
	id := rec.id
	current, ok := t.ds.objects[id]
	if !ok {
		return Errorf(ErrCodeInvalidObject, "%s#%d was deleted", os.Name, id)
	}
	t.ds.mutable(current).values[p.Name] = cv
	t.ds.version++
	return nil
}

// delete removes objects and clears every link and list entry that pointed
// at them.
func (t *txn) delete(ids []int64) {
	gone := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if rec, ok := t.ds.objects[id]; ok {
			gone[id] = true
			t.ds.remove(rec)
		}
	}
	if len(gone) == 0 {
		return
	}

	for _, rec := range t.ds.objects {
		os, ok := t.ds.set.Get(rec.typ)
		if !ok {
			continue
		}
		for i := range os.Properties {
			p := &os.Properties[i]
			switch p.Type {
			case schema.Object:
				if ref, ok := rec.values[p.Name].(wire.Object); ok && gone[ref.ID] {
					rec = t.ds.mutable(rec)
					rec.values[p.Name] = wire.Null{}
				}
			case schema.List:
				arr, _ := rec.values[p.Name].(wire.Array)
				kept := make(wire.Array, 0, len(arr))
				for _, e := range arr {
					if ref, ok := e.(wire.Object); !ok || !gone[ref.ID] {
						kept = append(kept, e)
					}
				}
				if len(kept) != len(arr) {
					rec = t.ds.mutable(rec)
					rec.values[p.Name] = kept
				}
			}
		}
	}
	t.ds.version++
}

// coerce converts v to the stored representation of property p.
func (t *txn) coerce(os *schema.ObjectSchema, p *schema.Property, v wire.Value) (wire.Value, error) {
	mismatch := func() error {
		return Errorf(ErrCodeTypeMismatch, "%s.%s: expected %s, got %s", os.Name, p.Name, p.String(), wire.KindOf(v))
	}

	if wire.IsNull(v) {
		if !p.Nullable() {
			return nil, Errorf(ErrCodeNotNullable, "%s.%s: %s is not nullable", os.Name, p.Name, p.String())
		}
		return wire.Null{}, nil
	}

	switch p.Type {
	case schema.Bool:
		if b, ok := v.(wire.Bool); ok {
			return b, nil
		}
	case schema.Int:
		switch n := v.(type) {
		case wire.Int:
			return n, nil
		case wire.Float, wire.Double:
			f, _ := wire.AsFloat(n)
			if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
				return wire.Int(int64(f)), nil
			}
		}
	case schema.Float:
		// Out-of-range finite values would round to infinity.
		if f, ok := wire.AsFloat(v); ok && (math.Abs(f) <= math.MaxFloat32 || math.IsInf(f, 0)) {
			return wire.Float(float32(f)), nil
		}
	case schema.Double:
		if f, ok := wire.AsFloat(v); ok {
			return wire.Double(f), nil
		}
	case schema.String:
		if s, ok := v.(wire.String); ok {
			return s, nil
		}
	case schema.Date:
		if d, ok := v.(wire.Date); ok {
			return d, nil
		}
	case schema.Data:
		switch d := v.(type) {
		case wire.Data:
			return d, nil
		case wire.String:
			return wire.Data(d), nil
		}
	case schema.Object:
		ref, err := t.link(os, p, v)
		if err != nil {
			return nil, err
		}
		return ref, nil
	case schema.List:
		return t.list(os, p, v)
	}
	return nil, mismatch()
}

// link resolves a value assigned to a link property or list element: an
// existing object of the target type, a value map (upsert) or a positional
// array (create).
func (t *txn) link(os *schema.ObjectSchema, p *schema.Property, v wire.Value) (wire.Object, error) {
	switch val := v.(type) {
	case wire.Object:
		if val.Type != p.ObjectType {
			return wire.Object{}, Errorf(ErrCodeTypeMismatch, "%s.%s: expected %s, got %s", os.Name, p.Name, p.ObjectType, val.Type)
		}
		if _, ok := t.ds.lookup(val); !ok {
			return wire.Object{}, Errorf(ErrCodeInvalidObject, "%s.%s: %s was deleted", os.Name, p.Name, val)
		}
		return val, nil
	case wire.Map:
		rec, err := t.upsert(p.ObjectType, val)
		if err != nil {
			return wire.Object{}, err
		}
		return wire.Object{Type: rec.typ, ID: rec.id}, nil
	case wire.Array:
		rec, err := t.create(p.ObjectType, val)
		if err != nil {
			return wire.Object{}, err
		}
		return wire.Object{Type: rec.typ, ID: rec.id}, nil
	}
	return wire.Object{}, Errorf(ErrCodeTypeMismatch, "%s.%s: expected %s, got %s", os.Name, p.Name, p.ObjectType, wire.KindOf(v))
}

func (t *txn) list(os *schema.ObjectSchema, p *schema.Property, v wire.Value) (wire.Value, error) {
	var elems wire.Array
	switch val := v.(type) {
	case wire.Array:
		elems = val
	case wire.List:
		owner, ok := t.ds.lookup(val.Owner)
		if !ok {
			return nil, Errorf(ErrCodeInvalidObject, "%s.%s: source list owner %s was deleted", os.Name, p.Name, val.Owner)
		}
		elems, _ = owner.values[val.Property].(wire.Array)
	case wire.Results:
		if t.results == nil {
			return nil, Errorf(ErrCodeTypeMismatch, "%s.%s: results cannot be assigned here", os.Name, p.Name)
		}
		ids, err := t.results(val)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			elems = append(elems, wire.Object{Type: val.ObjectType, ID: id})
		}
	default:
		return nil, Errorf(ErrCodeTypeMismatch, "%s.%s: expected %s, got %s", os.Name, p.Name, p.String(), wire.KindOf(v))
	}

	out := make(wire.Array, 0, len(elems))
	for i, e := range elems {
		if wire.IsNull(e) {
			return nil, Errorf(ErrCodeNotNullable, "%s.%s[%d]: list elements cannot be null", os.Name, p.Name, i)
		}
		ref, err := t.link(os, p, e)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// valueLookup reads create values by property name.
func valueLookup(os *schema.ObjectSchema, values wire.Value) (func(string) (wire.Value, bool), error) {
	switch vals := values.(type) {
	case nil, wire.Null:
		return func(string) (wire.Value, bool) { return nil, false }, nil
	case wire.Map:
		return func(name string) (wire.Value, bool) {
			v, ok := vals[name]
			return v, ok
		}, nil
	case wire.Array:
		if len(vals) > len(os.Properties) {
			return nil, Errorf(ErrCodeTypeMismatch, "%s: %d values given for %d properties", os.Name, len(vals), len(os.Properties))
		}
		index := make(map[string]int, len(os.Properties))
		for i, p := range os.Properties {
			index[p.Name] = i
		}
		return func(name string) (wire.Value, bool) {
			i := index[name]
			if i >= len(vals) {
				return nil, false
			}
			return vals[i], true
		}, nil
	}
	return nil, Errorf(ErrCodeTypeMismatch, "%s: values must be a map or an array, got %s", os.Name, wire.KindOf(values))
}

// defaultValue converts a schema default to a wire value.
func defaultValue(p *schema.Property) (wire.Value, bool) {
	if p.Default == nil {
		return nil, false
	}
	v, err := wire.FromScalar(p.Default)
	if err != nil {
		panic(fmt.Sprintf("schema default for %s passed validation but cannot be converted: %v", p.Name, err))
	}
	return v, true
}
