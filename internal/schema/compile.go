package schema

import (
	"strings"
)

// Compile normalizes and validates a list of definitions.
//
// The returned Set holds normalized copies; defs is never modified. The side
// table maps type names to every definition that is not a bare
// *ObjectSchema, so callers can recover the native shape attached to a type.
// On failure the error is a ValidationErrors listing every problem found.
func Compile(defs []Definition) (*Set, map[string]Definition, error) {
	var errs ValidationErrors
	schemas := make([]*ObjectSchema, 0, len(defs))
	shapes := make(map[string]Definition)

	for i, def := range defs {
		if def == nil {
			errs = append(errs, ValidationError{
				Field:   fieldf("schema[%d]", i),
				Message: "definition is nil",
				Code:    ErrNilDefinition,
			})
			continue
		}
		os := def.ObjectSchema()
		if os == nil {
			errs = append(errs, ValidationError{
				Field:   fieldf("schema[%d]", i),
				Message: "definition has no object schema",
				Code:    ErrNilDefinition,
			})
			continue
		}
		normalized := normalize(os)
		schemas = append(schemas, normalized)
		if _, plain := def.(*ObjectSchema); !plain && normalized.Name != "" {
			shapes[normalized.Name] = def
		}
	}

	errs = append(errs, validateSet(schemas)...)
	if len(errs) > 0 {
		return nil, nil, errs
	}
	return newSet(schemas), shapes, nil
}

// MustCompile is like Compile but panics on error.
// Use only in tests or for static schemas.
func MustCompile(defs ...Definition) *Set {
	set, _, err := Compile(defs)
	if err != nil {
		panic(err)
	}
	return set
}

// normalize returns a copy of os with type shorthands expanded.
func normalize(os *ObjectSchema) *ObjectSchema {
	out := os.Clone()
	for i := range out.Properties {
		p := &out.Properties[i]
		ParseType(p, string(p.Type))
		if p.Type == Object {
			p.Optional = true
		}
	}
	return out
}

// ParseType fills the kind, link target and optionality of p from a type
// shorthand:
//
//	"int"       int
//	"int?"      optional int
//	"Person"    link to Person
//	"Person[]"  list of Person
//
// A full kind name keeps any ObjectType already set on p.
func ParseType(p *Property, typ string) {
	typ = strings.TrimSpace(typ)
	if base, ok := strings.CutSuffix(typ, "?"); ok {
		p.Optional = true
		typ = base
	}
	if base, ok := strings.CutSuffix(typ, "[]"); ok {
		p.Type = List
		p.ObjectType = base
		return
	}
	if typ == "" || Kind(typ).Valid() {
		p.Type = Kind(typ)
		return
	}
	if isTypeName(typ) {
		p.Type = Object
		p.ObjectType = typ
		return
	}
	p.Type = Kind(typ)
}

// isTypeName reports whether s looks like an object type name rather than a
// misspelt kind: type names start with an upper case letter.
func isTypeName(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}
