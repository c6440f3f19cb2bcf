package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestParse(t *testing.T) {
	data := []byte(`
path: people.realm
schema: schema.cue
store: ${DATA}/store.db
log_level: debug
`)
	cfg, err := Parse(data, env(map[string]string{"DATA": "/var/lib/realm"}))
	require.NoError(t, err)

	assert.Equal(t, "people.realm", cfg.Path)
	assert.Equal(t, "schema.cue", cfg.Schema)
	assert.Equal(t, "/var/lib/realm/store.db", cfg.Store)
	assert.False(t, cfg.InMemory)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("schema: s.cue\nin_memory: true\n"), env(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultPath, cfg.Path)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.True(t, cfg.InMemory)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		fields []string
	}{
		{"empty", "", []string{"schema", "store"}},
		{"missing store", "schema: s.cue", []string{"store"}},
		{"bad level", "schema: s.cue\nin_memory: true\nlog_level: loud", []string{"log_level"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), env(nil))
			require.Error(t, err)
			for _, f := range tt.fields {
				assert.Contains(t, err.Error(), "config: "+f+":")
			}
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("schema: s.cue\nin_memory: true\ncolour: blue\n"), env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestParseExpandsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("schema: ${SCHEMA:-fallback.cue}\nin_memory: true\n"), env(nil))
	require.NoError(t, err)
	assert.Equal(t, "fallback.cue", cfg.Schema)
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "realmctl.yaml")
	require.NoError(t, os.WriteFile(file, []byte("schema: schema.cue\nstore: /abs/store.db\n"), 0o644))

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "schema.cue"), cfg.Schema)
	assert.Equal(t, "/abs/store.db", cfg.Store)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	require.NoError(t, err)

	var doc struct {
		Title      string                     `json:"title"`
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "realmctl configuration", doc.Title)
	assert.Equal(t, []string{"schema"}, doc.Required)
	assert.Len(t, doc.Properties, 5)
	assert.Contains(t, string(doc.Properties["log_level"]), `"debug"`)
}
