package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one realm test case.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Schema is the CUE schema file, relative to the scenario file.
	Schema string `yaml:"schema"`

	// Flow is executed in order against one realm.
	Flow []Step `yaml:"flow"`

	// Assertions are evaluated against the realm after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation. Exactly one of the operation fields is set.
type Step struct {
	// Create names the type of a new object built from Values.
	Create string `yaml:"create,omitempty"`
	Values any    `yaml:"values,omitempty"`

	// Set assigns Value to Property of the named object.
	Set   string `yaml:"set,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Read reads Property of the named object and compares it to Expect.
	Read     string `yaml:"read,omitempty"`
	Property string `yaml:"property,omitempty"`

	// Delete removes the named object or collection.
	Delete string `yaml:"delete,omitempty"`

	// Objects queries a type; Filter, Args and Sort narrow the results.
	Objects string   `yaml:"objects,omitempty"`
	Filter  string   `yaml:"filter,omitempty"`
	Args    []any    `yaml:"args,omitempty"`
	Sort    []string `yaml:"sort,omitempty"`

	// Length reads the live length of the named collection.
	Length string `yaml:"length,omitempty"`

	// At reads element Index of the named collection.
	At    string `yaml:"at,omitempty"`
	Index int    `yaml:"index,omitempty"`

	// Push appends Value (or each element of a sequence) to the named list.
	Push string `yaml:"push,omitempty"`

	// Write runs the nested steps in one transaction. With Abort the
	// transaction function returns an error after the nested steps.
	Write []Step `yaml:"write,omitempty"`
	Abort bool   `yaml:"abort,omitempty"`

	// Close closes the realm.
	Close bool `yaml:"close,omitempty"`

	// As names the step's result for later steps.
	As string `yaml:"as,omitempty"`

	// Expect is compared against the step's result.
	Expect any `yaml:"expect,omitempty"`

	// ExpectError is the error kind the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// op returns the operation name and its target.
func (s *Step) op() (string, string) {
	switch {
	case s.Create != "":
		return "create", s.Create
	case s.Set != "":
		return "set", s.Set + "." + s.Property
	case s.Read != "":
		return "read", s.Read + "." + s.Property
	case s.Delete != "":
		return "delete", s.Delete
	case s.Objects != "":
		return "objects", s.Objects
	case s.Length != "":
		return "length", s.Length
	case s.At != "":
		return "at", fmt.Sprintf("%s[%d]", s.At, s.Index)
	case s.Push != "":
		return "push", s.Push
	case s.Write != nil:
		return "write", ""
	case s.Close:
		return "close", ""
	}
	return "", ""
}

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// ObjectType, Filter and Args select objects (count).
	ObjectType string `yaml:"object_type,omitempty"`
	Filter     string `yaml:"filter,omitempty"`
	Args       []any  `yaml:"args,omitempty"`

	// Ref names an object from the flow (object, valid).
	Ref string `yaml:"ref,omitempty"`

	// Expect holds expected property values (object). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Valid is the expected validity of Ref (valid).
	Valid bool `yaml:"valid,omitempty"`

	// Op is the trace operation (trace_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number of objects or trace events.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertCount      = "count"
	AssertObject     = "object"
	AssertValid      = "valid"
	AssertTraceCount = "trace_count"
)

// LoadScenario reads and validates a scenario file. The schema path is
// resolved against the scenario's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if s.Schema == "" {
		return errors.New("schema is required")
	}
	if _, err := os.Stat(s.Schema); err != nil {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}
	if len(s.Flow) == 0 {
		return errors.New("flow list is required and must be non-empty")
	}
	for i := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), &s.Flow[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(field string, s *Step) error {
	set := 0
	for _, ok := range []bool{
		s.Create != "", s.Set != "", s.Read != "", s.Delete != "", s.Objects != "",
		s.Length != "", s.At != "", s.Push != "", s.Write != nil, s.Close,
	} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%s: exactly one operation is required, got %d", field, set)
	}
	if (s.Set != "" || s.Read != "") && s.Property == "" {
		return fmt.Errorf("%s: property is required", field)
	}
	if s.ExpectError != "" && !knownKind(s.ExpectError) {
		return fmt.Errorf("%s: unknown error kind %q", field, s.ExpectError)
	}
	for i := range s.Write {
		if s.Write[i].Write != nil {
			return fmt.Errorf("%s.write[%d]: writes cannot be nested in a scenario", field, i)
		}
		if err := validateStep(fmt.Sprintf("%s.write[%d]", field, i), &s.Write[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCount:
		if a.ObjectType == "" {
			return fmt.Errorf("assertions[%d]: object_type is required for count", index)
		}
	case AssertObject:
		if a.Ref == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: ref and expect are required for object", index)
		}
	case AssertValid:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for valid", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
