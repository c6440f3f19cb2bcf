package schema

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Validation error codes (E201-E219)
const (
	ErrEmptyTypeName     = "E201" // type name is required
	ErrDuplicateType     = "E202" // two definitions share a type name
	ErrEmptyPropertyName = "E203" // property name is required
	ErrDuplicateProperty = "E204" // property name repeated within a type
	ErrUnknownKind       = "E205" // property type is not a supported kind
	ErrMissingObjectType = "E206" // link property without a target type
	ErrUnresolvedLink    = "E207" // link target not in the schema set
	ErrInvalidPrimaryKey = "E208" // primary key missing, optional, or of the wrong kind
	ErrOptionalList      = "E209" // lists cannot be optional
	ErrNilDefinition     = "E210" // nil definition or descriptor
	ErrInvalidDefault    = "E211" // default value incompatible with the kind
	ErrUnexpectedTarget  = "E212" // objectType set on a non-link property
	ErrNoProperties      = "E213" // type declares no properties
)

// ValidationError is one schema problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is the error returned by Compile.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return "invalid schema: " + errs[0].Error()
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("invalid schema (%d errors): %s", len(errs), strings.Join(parts, "; "))
}

// HasCode reports whether any error carries code.
func (errs ValidationErrors) HasCode(code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func fieldf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// validateSet checks every descriptor and the links between them.
func validateSet(schemas []*ObjectSchema) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool, len(schemas))
	for i, os := range schemas {
		if strings.TrimSpace(os.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   fieldf("schema[%d].name", i),
				Message: "type name is required",
				Code:    ErrEmptyTypeName,
			})
			continue
		}
		if names[os.Name] {
			errs = append(errs, ValidationError{
				Field:   fieldf("schema[%d].name", i),
				Message: fmt.Sprintf("duplicate type name: %q", os.Name),
				Code:    ErrDuplicateType,
			})
		}
		names[os.Name] = true
	}

	for _, os := range schemas {
		errs = append(errs, validateObjectSchema(os, names)...)
	}
	return errs
}

func validateObjectSchema(os *ObjectSchema, names map[string]bool) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(os.Properties))

	if len(os.Properties) == 0 {
		errs = append(errs, ValidationError{
			Field:   os.Name,
			Message: "at least one property is required",
			Code:    ErrNoProperties,
		})
	}

	for i, p := range os.Properties {
		field := fieldf("%s.properties[%d]", os.Name, i)
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "property name is required",
				Code:    ErrEmptyPropertyName,
			})
		} else {
			field = os.Name + "." + p.Name
			if seen[p.Name] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("duplicate property name: %q", p.Name),
					Code:    ErrDuplicateProperty,
				})
			}
			seen[p.Name] = true
		}

		if !p.Type.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unsupported property type %q", p.Type),
				Code:    ErrUnknownKind,
			})
			continue
		}

		if p.Type.IsLink() {
			switch {
			case p.ObjectType == "":
				errs = append(errs, ValidationError{
					Field:   field + ".objectType",
					Message: fmt.Sprintf("%s property requires an objectType", p.Type),
					Code:    ErrMissingObjectType,
				})
			case !names[p.ObjectType]:
				errs = append(errs, ValidationError{
					Field:   field + ".objectType",
					Message: fmt.Sprintf("link target %q is not in the schema", p.ObjectType),
					Code:    ErrUnresolvedLink,
				})
			}
		} else if p.ObjectType != "" {
			errs = append(errs, ValidationError{
				Field:   field + ".objectType",
				Message: fmt.Sprintf("objectType is only valid on object and list properties, not %s", p.Type),
				Code:    ErrUnexpectedTarget,
			})
		}

		if p.Type == List && p.Optional {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "list properties cannot be optional",
				Code:    ErrOptionalList,
			})
		}

		if p.Default != nil && !DefaultMatches(p.Type, p.Default) {
			errs = append(errs, ValidationError{
				Field:   field + ".default",
				Message: fmt.Sprintf("default %v (%T) is not a valid %s", p.Default, p.Default, p.Type),
				Code:    ErrInvalidDefault,
			})
		}
	}

	if os.PrimaryKey != "" {
		p, ok := os.Property(os.PrimaryKey)
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Field:   os.Name + ".primaryKey",
				Message: fmt.Sprintf("primary key %q is not a property", os.PrimaryKey),
				Code:    ErrInvalidPrimaryKey,
			})
		case p.Type != Int && p.Type != String:
			errs = append(errs, ValidationError{
				Field:   os.Name + ".primaryKey",
				Message: fmt.Sprintf("primary key must be int or string, not %s", p.Type),
				Code:    ErrInvalidPrimaryKey,
			})
		case p.Optional:
			errs = append(errs, ValidationError{
				Field:   os.Name + ".primaryKey",
				Message: "primary key cannot be optional",
				Code:    ErrInvalidPrimaryKey,
			})
		}
	}

	return errs
}

// DefaultMatches reports whether v is an acceptable default for kind k.
// Numbers decoded from JSON or YAML arrive as float64 and are accepted for
// int when integral.
func DefaultMatches(k Kind, v any) bool {
	switch k {
	case Bool:
		_, ok := v.(bool)
		return ok
	case Int:
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case Float, Double:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case String:
		_, ok := v.(string)
		return ok
	case Date:
		_, ok := v.(time.Time)
		return ok
	case Data:
		switch v.(type) {
		case []byte, string:
			return true
		}
		return false
	default:
		return false
	}
}
