package realm

import (
	"fmt"
	"runtime"

	"github.com/roach88/realmbind/internal/engine"
	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// Handle is a materialized object: *Object, or a user type embedding it.
type Handle interface {
	object() *Object
}

// Object is a live handle to one stored object. It holds only the object's
// identity; every Get and Set goes to the engine.
type Object struct {
	realm *Realm
	ref   wire.Object
	table *accessorTable
}

func (o *Object) object() *Object { return o }

// Realm returns the owning realm.
func (o *Object) Realm() *Realm { return o.realm }

// Type returns the object type name.
func (o *Object) Type() string { return o.ref.Type }

// ID returns the engine object id.
func (o *Object) ID() int64 { return o.ref.ID }

// Schema returns the descriptor of the object's type.
func (o *Object) Schema() *schema.ObjectSchema { return o.table.schema }

// Keys lists the property names in declaration order.
func (o *Object) Keys() []string { return o.table.schema.PropertyNames() }

// Get reads a property. An unknown name returns nil without error.
func (o *Object) Get(name string) (any, error) {
	acc, ok := o.table.byName[name]
	if !ok {
		return nil, nil
	}
	return acc.get(o)
}

// Set writes a property. It requires an active write transaction on the
// owning realm.
func (o *Object) Set(name string, value any) error {
	acc, ok := o.table.byName[name]
	if !ok {
		return newError(ErrType, "set", "%s has no property %q", o.ref.Type, name)
	}
	return acc.set(o, value)
}

// IsValid reports whether the object still exists and its realm is open.
func (o *Object) IsValid() bool {
	if o.realm.check("is valid") != nil {
		return false
	}
	v, err := o.realm.engine.CallMethod(o.realm.ID(), engine.MethodIsValid, o.ref)
	if err != nil {
		return false
	}
	b, _ := v.(wire.Bool)
	return bool(b)
}

// Equal reports whether h refers to the same stored object.
func (o *Object) Equal(h Handle) bool {
	if h == nil {
		return false
	}
	other := h.object()
	return other != nil && o.realm.sameFile(other.realm) && o.ref == other.ref
}

func (o *Object) String() string {
	return o.ref.String()
}

// Value reads a property and asserts it to T. A null value returns the
// zero T.
func Value[T any](h Handle, name string) (T, error) {
	var zero T
	v, err := h.object().Get(name)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, newError(ErrType, "value", "%s.%s is %T, not %T", h.object().ref.Type, name, v, zero)
	}
	return t, nil
}

// Class pairs an object type with the user type that materializes it.
// A *Class is a schema.Definition and can be listed in Config.Schema.
type Class struct {
	schema    *schema.ObjectSchema
	construct func(*Object) Handle
}

// NewClass registers construct as the native shape of objects of type os.
//
//	type Dog struct{ *realm.Object }
//	var DogClass = realm.NewClass(dogSchema, func(o *realm.Object) *Dog { return &Dog{o} })
func NewClass[T Handle](os *schema.ObjectSchema, construct func(*Object) T) *Class {
	return &Class{
		schema:    os,
		construct: func(o *Object) Handle { return construct(o) },
	}
}

// ObjectSchema implements schema.Definition.
func (c *Class) ObjectSchema() *schema.ObjectSchema { return c.schema }

// Name returns the object type name.
func (c *Class) Name() string { return c.schema.Name }

// materialize builds the handle for ref: the registered class's type when
// there is one, a plain *Object otherwise.
func (r *Realm) materialize(ref wire.Object) Handle {
	o := &Object{realm: r, ref: ref, table: r.accessors[ref.Type]}
	if c, ok := r.classes[ref.Type]; ok {
		return c.construct(o)
	}
	return o
}

// accessor reads and writes one property through the engine.
type accessor struct {
	prop *schema.Property
	get  func(o *Object) (any, error)
	set  func(o *Object, value any) error
}

// accessorTable holds the accessors of one object type.
type accessorTable struct {
	schema *schema.ObjectSchema
	byName map[string]*accessor
}

func buildAccessors(set *schema.Set) map[string]*accessorTable {
	tables := make(map[string]*accessorTable, set.Len())
	for _, os := range set.All() {
		t := &accessorTable{schema: os, byName: make(map[string]*accessor, len(os.Properties))}
		for i := range os.Properties {
			p := &os.Properties[i]
			t.byName[p.Name] = &accessor{prop: p, get: propertyGetter(p), set: propertySetter(p)}
		}
		tables[os.Name] = t
	}
	return tables
}

func propertyGetter(p *schema.Property) func(*Object) (any, error) {
	op := "get " + p.Name
	return func(o *Object) (any, error) {
		r := o.realm
		if err := r.check(op); err != nil {
			return nil, err
		}
		v, err := r.engine.GetProperty(r.ID(), o.ref, p.Name)
		if err != nil {
			return nil, wrapEngine(op, err)
		}
		return r.fromWire(v)
	}
}

func propertySetter(p *schema.Property) func(*Object, any) error {
	op := "set " + p.Name
	return func(o *Object, value any) error {
		r := o.realm
		if err := r.check(op); err != nil {
			return err
		}
		if !r.IsInTransaction() {
			return newError(ErrTransaction, op, "cannot modify %s outside of a write transaction", o.ref)
		}
		defer runtime.KeepAlive(value)
		v, err := r.toWire(value)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return wrapEngine(op, r.engine.SetProperty(r.ID(), o.ref, p.Name, v))
	}
}
