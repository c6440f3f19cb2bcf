package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/realmbind/internal/wire"
)

// Kind is the semantic type of a property.
type Kind string

const (
	Bool   Kind = "bool"
	Int    Kind = "int"
	Float  Kind = "float"
	Double Kind = "double"
	String Kind = "string"
	Date   Kind = "date"
	Data   Kind = "data"
	Object Kind = "object"
	List   Kind = "list"
)

// Kinds lists every supported property kind in declaration order.
var Kinds = []Kind{Bool, Int, Float, Double, String, Date, Data, Object, List}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// IsLink reports whether properties of this kind reference other objects.
func (k Kind) IsLink() bool {
	return k == Object || k == List
}

// Property describes one field of an object type.
type Property struct {
	Name       string `json:"name" yaml:"name"`
	Type       Kind   `json:"type" yaml:"type"`
	ObjectType string `json:"objectType,omitempty" yaml:"objectType,omitempty"`
	Optional   bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
	Default    any    `json:"default,omitempty" yaml:"default,omitempty"`
	Indexed    bool   `json:"indexed,omitempty" yaml:"indexed,omitempty"`
}

// Nullable reports whether null is an acceptable value. Links are always
// nullable; lists never are.
func (p *Property) Nullable() bool {
	switch p.Type {
	case Object:
		return true
	case List:
		return false
	default:
		return p.Optional
	}
}

// String renders the property type in shorthand form.
func (p *Property) String() string {
	switch p.Type {
	case Object:
		return p.ObjectType
	case List:
		return p.ObjectType + "[]"
	}
	if p.Optional {
		return string(p.Type) + "?"
	}
	return string(p.Type)
}

// ObjectSchema describes one object type.
type ObjectSchema struct {
	Name       string     `json:"name" yaml:"name"`
	PrimaryKey string     `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	Properties []Property `json:"properties" yaml:"properties"`
}

// ObjectSchema implements Definition for a bare descriptor.
func (s *ObjectSchema) ObjectSchema() *ObjectSchema {
	return s
}

// Property looks up a property by name.
func (s *ObjectSchema) Property(name string) (*Property, bool) {
	for i := range s.Properties {
		if s.Properties[i].Name == name {
			return &s.Properties[i], true
		}
	}
	return nil, false
}

// PropertyNames returns property names in declaration order.
func (s *ObjectSchema) PropertyNames() []string {
	names := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		names[i] = p.Name
	}
	return names
}

// Clone returns a deep copy of s.
func (s *ObjectSchema) Clone() *ObjectSchema {
	c := *s
	c.Properties = slices.Clone(s.Properties)
	return &c
}

// Definition is one entry of a realm's schema list. *ObjectSchema is the
// plain variant; other implementations attach a native shape to the
// descriptor and are returned in Compile's side table.
type Definition interface {
	ObjectSchema() *ObjectSchema
}

// Set is an immutable, compiled set of object types.
type Set struct {
	schemas []*ObjectSchema
	byName  map[string]*ObjectSchema
}

func newSet(schemas []*ObjectSchema) *Set {
	s := &Set{schemas: schemas, byName: make(map[string]*ObjectSchema, len(schemas))}
	for _, os := range schemas {
		s.byName[os.Name] = os
	}
	return s
}

// Get looks up a type by name.
func (s *Set) Get(name string) (*ObjectSchema, bool) {
	os, ok := s.byName[name]
	return os, ok
}

// Len returns the number of types.
func (s *Set) Len() int {
	return len(s.schemas)
}

// Names returns type names in declaration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.schemas))
	for i, os := range s.schemas {
		names[i] = os.Name
	}
	return names
}

// All returns copies of every descriptor in declaration order.
func (s *Set) All() []*ObjectSchema {
	out := make([]*ObjectSchema, len(s.schemas))
	for i, os := range s.schemas {
		out[i] = os.Clone()
	}
	return out
}

// Hash returns the content hash of the set. Type order is irrelevant;
// property order is significant because it defines positional create.
// Defaults do not contribute.
func (s *Set) Hash() (string, error) {
	types := make(wire.Array, 0, len(s.schemas))
	for _, os := range slices.SortedFunc(slices.Values(s.schemas), func(a, b *ObjectSchema) int {
		return strings.Compare(a.Name, b.Name)
	}) {
		props := make(wire.Array, len(os.Properties))
		for i, p := range os.Properties {
			props[i] = wire.Map{
				"name":       wire.String(p.Name),
				"type":       wire.String(p.Type),
				"objectType": wire.String(p.ObjectType),
				"optional":   wire.Bool(p.Optional),
				"indexed":    wire.Bool(p.Indexed),
			}
		}
		types = append(types, wire.Map{
			"name":       wire.String(os.Name),
			"primaryKey": wire.String(os.PrimaryKey),
			"properties": props,
		})
	}
	return wire.SchemaHash(wire.Map{"types": types})
}

// MarshalJSON encodes the set as a list of descriptors.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.schemas)
}

// UnmarshalJSON decodes and recompiles a set produced by MarshalJSON.
func (s *Set) UnmarshalJSON(data []byte) error {
	var schemas []*ObjectSchema
	if err := json.Unmarshal(data, &schemas); err != nil {
		return err
	}
	defs := make([]Definition, len(schemas))
	for i, os := range schemas {
		defs[i] = os
	}
	set, _, err := Compile(defs)
	if err != nil {
		return fmt.Errorf("decode schema set: %w", err)
	}
	*s = *set
	return nil
}
