package schema

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a CUE decoding error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads a CUE schema file and compiles its top-level schema struct.
func LoadFile(path string) (*Set, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileCUE(v.LookupPath(cue.ParsePath("schema")))
}

// CompileCUE decodes a struct of object types and compiles it.
//
// Each field of v is a type. Properties are written either as a type
// shorthand string or as a struct:
//
//	schema: {
//		Person: {
//			primaryKey: "name"
//			properties: {
//				name: "string"
//				age:  {type: "int", default: 0}
//				dog:  "Dog"
//			}
//		}
//	}
//
// Field order in the CUE source is the declaration order.
func CompileCUE(v cue.Value) (*Set, error) {
	defs, err := DecodeCUE(v)
	if err != nil {
		return nil, err
	}
	set, _, err := Compile(defs)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// DecodeCUE decodes v into descriptors without validating them.
func DecodeCUE(v cue.Value) ([]Definition, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "schema", Message: "schema is required", Pos: v.Pos()}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []Definition
	for iter.Next() {
		desc, err := decodeObjectSchema(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, desc)
	}
	return defs, nil
}

func decodeObjectSchema(name string, v cue.Value) (*ObjectSchema, error) {
	desc := &ObjectSchema{Name: name}

	if pk := v.LookupPath(cue.ParsePath("primaryKey")); pk.Exists() {
		s, err := pk.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		desc.PrimaryKey = s
	}

	props := v.LookupPath(cue.ParsePath("properties"))
	if !props.Exists() {
		return nil, &CompileError{
			Field:   name + ".properties",
			Message: "properties are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := props.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		p, err := decodeProperty(name, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		desc.Properties = append(desc.Properties, p)
	}
	return desc, nil
}

func decodeProperty(typeName, name string, v cue.Value) (Property, error) {
	p := Property{Name: name}
	field := typeName + "." + name

	// Shorthand: "int?", "Person", "Person[]"
	if s, err := v.String(); err == nil {
		ParseType(&p, s)
		return p, nil
	}

	typ := v.LookupPath(cue.ParsePath("type"))
	if !typ.Exists() {
		return p, &CompileError{Field: field, Message: "property must be a type string or a struct with a type", Pos: v.Pos()}
	}
	s, err := typ.String()
	if err != nil {
		return p, formatCUEError(err)
	}
	ParseType(&p, s)

	if ot := v.LookupPath(cue.ParsePath("objectType")); ot.Exists() {
		if p.ObjectType, err = ot.String(); err != nil {
			return p, formatCUEError(err)
		}
	}
	if opt := v.LookupPath(cue.ParsePath("optional")); opt.Exists() {
		b, err := opt.Bool()
		if err != nil {
			return p, formatCUEError(err)
		}
		p.Optional = p.Optional || b
	}
	if idx := v.LookupPath(cue.ParsePath("indexed")); idx.Exists() {
		if p.Indexed, err = idx.Bool(); err != nil {
			return p, formatCUEError(err)
		}
	}
	if def := v.LookupPath(cue.ParsePath("default")); def.Exists() {
		if p.Default, err = decodeDefault(field, p.Type, def); err != nil {
			return p, err
		}
	}
	return p, nil
}

// decodeDefault converts a concrete CUE value to the Go value used for
// defaults. Dates are written as RFC 3339 strings.
func decodeDefault(field string, k Kind, v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if k == Float || k == Double {
			return float64(n), nil
		}
		return n, nil
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if k == Date {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, &CompileError{Field: field + ".default", Message: err.Error(), Pos: v.Pos()}
			}
			return t, nil
		}
		return s, nil
	case cue.BytesKind:
		return v.Bytes()
	}
	return nil, &CompileError{
		Field:   field + ".default",
		Message: fmt.Sprintf("unsupported default of kind %s", v.Kind()),
		Pos:     v.Pos(),
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
