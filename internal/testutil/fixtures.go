// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"time"

	"github.com/roach88/realmbind/internal/schema"
)

// PersonSchema is a type with scalar, optional, default, link and list
// properties.
func PersonSchema() *schema.ObjectSchema {
	return &schema.ObjectSchema{
		Name: "Person",
		Properties: []schema.Property{
			{Name: "name", Type: "string"},
			{Name: "age", Type: "int", Default: int64(0)},
			{Name: "nickname", Type: "string?"},
			{Name: "friend", Type: "Person"},
			{Name: "dogs", Type: "Dog[]"},
		},
	}
}

// DogSchema links back to Person.
func DogSchema() *schema.ObjectSchema {
	return &schema.ObjectSchema{
		Name: "Dog",
		Properties: []schema.Property{
			{Name: "name", Type: "string"},
			{Name: "owner", Type: "Person"},
		},
	}
}

// AccountSchema has an int primary key.
func AccountSchema() *schema.ObjectSchema {
	return &schema.ObjectSchema{
		Name:       "Account",
		PrimaryKey: "id",
		Properties: []schema.Property{
			{Name: "id", Type: "int"},
			{Name: "email", Type: "string", Indexed: true},
			{Name: "balance", Type: "double", Default: float64(0)},
		},
	}
}

// AllTypesSchema declares one property of every kind.
func AllTypesSchema() *schema.ObjectSchema {
	return &schema.ObjectSchema{
		Name: "AllTypes",
		Properties: []schema.Property{
			{Name: "boolCol", Type: "bool"},
			{Name: "intCol", Type: "int"},
			{Name: "floatCol", Type: "float"},
			{Name: "doubleCol", Type: "double"},
			{Name: "stringCol", Type: "string"},
			{Name: "dateCol", Type: "date"},
			{Name: "dataCol", Type: "data"},
			{Name: "objectCol", Type: "Dog"},
			{Name: "listCol", Type: "Dog[]"},
			{Name: "optionalCol", Type: "string?"},
		},
	}
}

// Definitions returns every fixture type.
func Definitions() []schema.Definition {
	return []schema.Definition{PersonSchema(), DogSchema(), AccountSchema(), AllTypesSchema()}
}

// Set compiles Definitions.
func Set() *schema.Set {
	return schema.MustCompile(Definitions()...)
}

// FixedTime is a stable timestamp with millisecond precision, so it
// survives persistence unchanged.
func FixedTime() time.Time {
	return time.Date(2024, time.March, 9, 12, 30, 15, 250_000_000, time.UTC)
}
