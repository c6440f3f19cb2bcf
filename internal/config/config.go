package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/drone/envsubst"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the realm file used when the config names none.
const DefaultPath = "default.realm"

// LogLevels lists the accepted log_level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Config is the realmctl configuration file.
type Config struct {
	Path     string `yaml:"path" json:"path,omitempty" jsonschema:"description=Realm file opened by the commands"`
	Schema   string `yaml:"schema" json:"schema" jsonschema:"description=CUE schema file"`
	Store    string `yaml:"store" json:"store,omitempty" jsonschema:"description=SQLite database holding persisted realm files"`
	InMemory bool   `yaml:"in_memory" json:"in_memory,omitempty" jsonschema:"description=Keep the realm in memory and skip the store"`
	LogLevel string `yaml:"log_level" json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
}

// ValidationError reports an invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{Path: DefaultPath, LogLevel: "info"}
}

// Load reads, expands and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse expands ${VAR} references through lookup, decodes data and
// validates the result. Unknown keys are rejected.
func Parse(data []byte, lookup func(string) string) (*Config, error) {
	expanded, err := envsubst.Eval(string(data), lookup)
	if err != nil {
		return nil, fmt.Errorf("config: expand: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and enums.
func (c *Config) Validate() error {
	var errs []error
	if c.Schema == "" {
		errs = append(errs, &ValidationError{Field: "schema", Message: "is required"})
	}
	if !c.InMemory && c.Store == "" {
		errs = append(errs, &ValidationError{Field: "store", Message: "is required unless in_memory is set"})
	}
	if !slices.Contains(LogLevels, c.LogLevel) {
		errs = append(errs, &ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("%q is not one of %v", c.LogLevel, LogLevels),
		})
	}
	return errors.Join(errs...)
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c *Config) resolve(dir string) {
	if c.Schema != "" && !filepath.IsAbs(c.Schema) {
		c.Schema = filepath.Join(dir, c.Schema)
	}
	if c.Store != "" && !filepath.IsAbs(c.Store) {
		c.Store = filepath.Join(dir, c.Store)
	}
}

// JSONSchema returns the JSON Schema of the config file, indented.
func JSONSchema() ([]byte, error) {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	s := r.Reflect(&Config{})
	s.Title = "realmctl configuration"
	return json.MarshalIndent(s, "", "  ")
}
