package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedPeople creates Alice with two dogs and Bob, each in its own command.
func seedPeople(t *testing.T, cfg string) {
	t.Helper()
	out, err := execute(t, "-c", cfg, "create", "Person",
		`{"name": "Alice", "age": 30, "dogs": [{"name": "Rex"}, {"name": "Fido"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "✓ Created Person#1 {name: \"Alice\", age: 30, nickname: null, dogs: [Dog#2, Dog#3]}\n", out)

	_, err = execute(t, "-c", cfg, "create", "Person", `["Bob", 25]`)
	require.NoError(t, err)
}

func TestObjectsPersistAcrossCommands(t *testing.T) {
	cfg := writeConfig(t, "")
	seedPeople(t, cfg)

	out, err := execute(t, "-c", cfg, "objects", "Person")
	require.NoError(t, err)
	assertGolden(t, "objects_people", out)
}

func TestObjectsSorted(t *testing.T) {
	cfg := writeConfig(t, "")
	seedPeople(t, cfg)

	out, err := execute(t, "-c", cfg, "objects", "Dog", "--sort", "-name")
	require.NoError(t, err)
	assertGolden(t, "objects_dogs_sorted", out)
}

func TestObjectsFiltered(t *testing.T) {
	cfg := writeConfig(t, "")
	seedPeople(t, cfg)

	out, err := execute(t, "-c", cfg, "--format", "json", "objects", "Person",
		"--filter", "age > $0", "--arg", "26")
	require.NoError(t, err)

	var resp struct {
		Data []ObjectRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Person", resp.Data[0].Type)
	assert.Equal(t, int64(1), resp.Data[0].ID)
	assert.Equal(t, "Alice", resp.Data[0].Values["name"])
	assert.Equal(t, []any{"Dog#2", "Dog#3"}, resp.Data[0].Values["dogs"])
}

func TestObjectsEmptyInMemory(t *testing.T) {
	cfg := writeConfig(t, "in_memory: true\n")

	out, err := execute(t, "-c", cfg, "objects", "Person")
	require.NoError(t, err)
	assert.Equal(t, "No Person objects\n", out)
	_, err = os.Stat(filepath.Join(filepath.Dir(cfg), "store.db"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestObjectsInvalidQuery(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, "-c", cfg, "objects", "Person", "--filter", "shoeSize > 3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeType+"]")
}

func TestObjectsUnknownType(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, "-c", cfg, "objects", "Cat")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeType+"]")
}

func TestMissingConfig(t *testing.T) {
	out, err := execute(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"), "objects", "Person")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeConfig+"]")
}

func TestCreateRejections(t *testing.T) {
	cfg := writeConfig(t, "")
	seedPeople(t, cfg)

	tests := []struct {
		name string
		args []string
		code string
		exit int
	}{
		{"unknown type", []string{"Cat", `{}`}, ErrCodeType, ExitFailure},
		{"not json", []string{"Person", `{name`}, ErrCodeBadInput, ExitFailure},
		{"duplicate key", []string{"Person", `{"name": "Alice"}`}, ErrCodeType, ExitFailure},
		{"wrong type", []string{"Person", `{"name": "Carol", "age": "old"}`}, ErrCodeType, ExitFailure},
		{"missing required", []string{"Dog", `{}`}, ErrCodeType, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"-c", cfg, "create"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}

	// Nothing from the rejected commands was committed.
	out, err := execute(t, "-c", cfg, "objects", "Person")
	require.NoError(t, err)
	assertGolden(t, "objects_people", out)
}

func TestCreateUpdatesLinkedObjectByPrimaryKey(t *testing.T) {
	cfg := writeConfig(t, "")
	seedPeople(t, cfg)

	out, err := execute(t, "-c", cfg, "create", "Dog", `{"name": "Spot", "owner": {"name": "Bob", "nickname": "B"}}`)
	require.NoError(t, err)
	assert.Equal(t, "✓ Created Dog#5 {name: \"Spot\", owner: Person#4}\n", out)

	out, err = execute(t, "-c", cfg, "objects", "Person", "--filter", `name == "Bob"`)
	require.NoError(t, err)
	assert.Equal(t, "Person#4 {name: \"Bob\", age: 25, nickname: \"B\", dogs: []}\n", out)
}

func TestDelete(t *testing.T) {
	cfg := writeConfig(t, "")
	seedPeople(t, cfg)

	out, err := execute(t, "-c", cfg, "delete", "Dog", "--filter", "name == $0", "--arg", `"Rex"`)
	require.NoError(t, err)
	assert.Equal(t, "✓ Deleted 1 Dog object(s)\n", out)

	out, err = execute(t, "-c", cfg, "objects", "Person", "--filter", `name == "Alice"`)
	require.NoError(t, err)
	assert.Equal(t, "Person#1 {name: \"Alice\", age: 30, nickname: null, dogs: [Dog#3]}\n", out)

	out, err = execute(t, "-c", cfg, "--format", "json", "delete", "Person")
	require.NoError(t, err)
	var resp struct {
		Data DeleteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, DeleteResult{Type: "Person", Deleted: 2}, resp.Data)

	out, err = execute(t, "-c", cfg, "objects", "Person")
	require.NoError(t, err)
	assert.Equal(t, "No Person objects\n", out)
}

func TestVerboseReportsEngineCalls(t *testing.T) {
	cfg := writeConfig(t, "in_memory: true\n")

	cmd := NewRootCommand()
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(diag)
	cmd.SetArgs([]string{"-c", cfg, "-v", "objects", "Person"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "No Person objects\n", out.String())
	assert.Contains(t, diag.String(), "Opened people.realm")
	assert.Contains(t, diag.String(), "engine create_realm OK: 1 call(s)")
	assert.Contains(t, diag.String(), "engine close_realm OK: 1 call(s)")
}
