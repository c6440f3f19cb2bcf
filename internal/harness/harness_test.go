package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			result := RunWithGolden(t, path)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

// writeScenario writes a scenario next to a copy of the test schema.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	schema, err := os.ReadFile("testdata/schema.cue")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), schema, 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runScenario(t *testing.T, body string) *Result {
	t.Helper()
	s, err := LoadScenario(writeScenario(t, body))
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_ReportsMismatches(t *testing.T) {
	result := runScenario(t, `
name: mismatch
description: every expectation in this flow is wrong
schema: schema.cue
flow:
  - write:
      - create: Person
        values: {name: Eve, age: 40}
        as: eve
  - read: eve
    property: age
    expect: 41
  - read: eve
    property: name
    expect_error: state
  - set: eve
    property: age
    value: 1
assertions:
  - type: count
    object_type: Person
    count: 2
`)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected 41, got 40")
	assert.Contains(t, result.Errors[1], "expected state error, got none")
	assert.Contains(t, result.Errors[2], "unexpected error")
	assert.Contains(t, result.Errors[3], "assertion count failed: expected 2, got 1")
	assert.Equal(t, "5 set eve.age -> error: transaction", result.Trace[4].String())
}

func TestRun_UnexpectedErrorCancelsWrite(t *testing.T) {
	result := runScenario(t, `
name: cancelled
description: a failing step inside a write rolls the write back
schema: schema.cue
flow:
  - write:
      - create: Person
        values: {name: Fay}
      - create: Person
        values: {name: Fay}
assertions:
  - type: count
    object_type: Person
    count: 0
`)

	assert.False(t, result.Pass)
	assert.Equal(t, "1 create Person -> Person#1\n"+
		"2 create Person -> error: type\n"+
		"3 write -> error: type\n", result.TraceText())
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "write[1]: create Person: unexpected error")
	assert.Contains(t, result.Errors[1], "flow[0]: write : unexpected error")
}

func TestRun_UnknownRef(t *testing.T) {
	result := runScenario(t, `
name: unknown_ref
description: referring to a name never bound is a step error
schema: schema.cue
flow:
  - read: nobody
    property: name
`)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `ref "nobody" is not an object`)
	assert.Equal(t, "1 read nobody.name -> error: unknown", result.Trace[0].String())
}

func TestRun_SchemaLoadFailure(t *testing.T) {
	path := writeScenario(t, `
name: broken
description: the schema does not compile
schema: schema.cue
flow:
  - close: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "schema.cue"), []byte("schema: {"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading schema")
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "null"},
		{"bool", true, "true"},
		{"int", 7, "7"},
		{"int64", int64(-3), "-3"},
		{"float32", float32(1.5), "1.5"},
		{"float64", 2.25, "2.25"},
		{"string", "Rex", "Rex"},
		{"bytes", []byte("abc"), "<3 bytes>"},
		{"slice", []any{"Dog#2", 3}, "[Dog#2, 3]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, format(tt.value))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "aborted", kindOf(errAborted))
	assert.Equal(t, "unknown", kindOf(os.ErrNotExist))
	assert.True(t, knownKind("index"))
	assert.False(t, knownKind("panic"))
}
