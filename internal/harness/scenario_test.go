package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/basic_crud.yaml")
	require.NoError(t, err)

	assert.Equal(t, "basic_crud", s.Name)
	assert.Equal(t, filepath.Join("testdata", "schema.cue"), s.Schema)
	require.Len(t, s.Flow, 8)
	require.Len(t, s.Flow[0].Write, 1)
	assert.Equal(t, "Person", s.Flow[0].Write[0].Create)
	assert.Equal(t, "alice", s.Flow[0].Write[0].As)
	assert.Equal(t, "transaction", s.Flow[4].ExpectError)
	assert.Len(t, s.Assertions, 4)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing name",
			body:    "description: d\nschema: schema.cue\nflow: [{close: true}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			body:    "name: n\nschema: schema.cue\nflow: [{close: true}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing schema file",
			body:    "name: n\ndescription: d\nschema: nope.cue\nflow: [{close: true}]\n",
			wantErr: "schema file not found",
		},
		{
			name:    "empty flow",
			body:    "name: n\ndescription: d\nschema: schema.cue\n",
			wantErr: "flow list is required",
		},
		{
			name:    "no operation",
			body:    "name: n\ndescription: d\nschema: schema.cue\nflow: [{as: x}]\n",
			wantErr: "flow[0]: exactly one operation is required, got 0",
		},
		{
			name:    "two operations",
			body:    "name: n\ndescription: d\nschema: schema.cue\nflow: [{create: Person, close: true}]\n",
			wantErr: "got 2",
		},
		{
			name:    "read without property",
			body:    "name: n\ndescription: d\nschema: schema.cue\nflow: [{read: x}]\n",
			wantErr: "flow[0]: property is required",
		},
		{
			name:    "unknown error kind",
			body:    "name: n\ndescription: d\nschema: schema.cue\nflow: [{close: true, expect_error: fatal}]\n",
			wantErr: `unknown error kind "fatal"`,
		},
		{
			name:    "nested write",
			body:    "name: n\ndescription: d\nschema: schema.cue\nflow: [{write: [{write: []}]}]\n",
			wantErr: "writes cannot be nested",
		},
		{
			name:    "unknown assertion",
			body:    "name: n\ndescription: d\nschema: schema.cue\nflow: [{close: true}]\nassertions: [{type: magic}]\n",
			wantErr: `unknown assertion type "magic"`,
		},
		{
			name:    "count without type",
			body:    "name: n\ndescription: d\nschema: schema.cue\nflow: [{close: true}]\nassertions: [{type: count}]\n",
			wantErr: "object_type is required",
		},
		{
			name:    "unknown field",
			body:    "name: n\ndescription: d\nschema: schema.cue\nflow: [{close: true}]\nextra: 1\n",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStep_Op(t *testing.T) {
	tests := []struct {
		step       Step
		op, target string
	}{
		{Step{Create: "Dog"}, "create", "Dog"},
		{Step{Set: "rex", Property: "name"}, "set", "rex.name"},
		{Step{At: "dogs", Index: 2}, "at", "dogs[2]"},
		{Step{Write: []Step{}}, "write", ""},
		{Step{Close: true}, "close", ""},
	}
	for _, tt := range tests {
		op, target := tt.step.op()
		assert.Equal(t, tt.op, op)
		assert.Equal(t, tt.target, target)
	}
}
