package query

import (
	"fmt"

	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// Validate checks that every key path in p resolves in the schema starting
// at typeName, and that each comparison value suits the property kind.
//
// Validate is a pure function with no side effects.
func Validate(p Predicate, set *schema.Set, typeName string) error {
	os, ok := set.Get(typeName)
	if !ok {
		return &Error{Message: fmt.Sprintf("unknown type %q", typeName)}
	}
	v := &validator{set: set, root: os}
	return v.predicate(p)
}

type validator struct {
	set  *schema.Set
	root *schema.ObjectSchema
}

func (v *validator) predicate(p Predicate) error {
	switch n := p.(type) {
	case nil, Const:
		return nil
	case *Not:
		return v.predicate(n.Predicate)
	case *And:
		return v.all(n.Predicates)
	case *Or:
		return v.all(n.Predicates)
	case *Compare:
		return v.compare(n)
	}
	return &Error{Message: fmt.Sprintf("unknown predicate %T", p)}
}

func (v *validator) all(ps []Predicate) error {
	for _, p := range ps {
		if err := v.predicate(p); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) compare(c *Compare) error {
	prop, err := ResolveProperty(v.set, v.root, c.Path)
	if err != nil {
		return err
	}
	fail := func(format string, args ...any) error {
		return &Error{Expr: c.Property(), Message: fmt.Sprintf(format, args...)}
	}

	if prop.Type == schema.List {
		return fail("list properties cannot be compared")
	}
	if wire.IsNull(c.Value) {
		if c.Op != OpEq && c.Op != OpNe {
			return fail("null can only be compared with == or !=")
		}
		return nil
	}
	if c.Op.Regexp() && prop.Type != schema.String {
		return fail("%s requires a string property, %s is %s", c.Op, c.Property(), prop.Type)
	}
	if c.Op.Ordered() {
		switch prop.Type {
		case schema.Int, schema.Float, schema.Double, schema.String, schema.Date:
		default:
			return fail("%s properties are not ordered", prop.Type)
		}
	}

	if !valueFits(prop, c.Value) {
		return fail("cannot compare %s property with %s", prop.Type, wire.KindOf(c.Value))
	}
	return nil
}

// ResolveProperty walks a key path from root through link properties.
func ResolveProperty(set *schema.Set, root *schema.ObjectSchema, path []string) (*schema.Property, error) {
	if len(path) == 0 {
		return nil, &Error{Message: "empty key path"}
	}
	cur := root
	for i, name := range path {
		prop, ok := cur.Property(name)
		if !ok {
			return nil, &Error{Expr: joinPath(path), Message: fmt.Sprintf("%s has no property %q", cur.Name, name)}
		}
		if i == len(path)-1 {
			return prop, nil
		}
		if prop.Type != schema.Object {
			return nil, &Error{Expr: joinPath(path), Message: fmt.Sprintf("%s.%s is not a link", cur.Name, name)}
		}
		if cur, ok = set.Get(prop.ObjectType); !ok {
			return nil, &Error{Expr: joinPath(path), Message: fmt.Sprintf("unknown type %q", prop.ObjectType)}
		}
	}
	return nil, &Error{Message: "empty key path"}
}

func valueFits(prop *schema.Property, v wire.Value) bool {
	switch prop.Type {
	case schema.Bool:
		_, ok := v.(wire.Bool)
		return ok
	case schema.Int, schema.Float, schema.Double:
		_, ok := wire.AsFloat(v)
		return ok
	case schema.String:
		_, ok := v.(wire.String)
		return ok
	case schema.Date:
		_, ok := v.(wire.Date)
		return ok
	case schema.Data:
		_, ok := v.(wire.Data)
		return ok
	case schema.Object:
		ref, ok := v.(wire.Object)
		return ok && ref.Type == prop.ObjectType
	}
	return false
}

func joinPath(path []string) string {
	return (&Compare{Path: path}).Property()
}
