package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the data-only part of store construction. Handlers and
// middleware are code and are supplied through Options.
//
// Example JSON:
//
//	{
//	  "name": "counter",
//	  "observer": "slog",
//	  "state": {"count": 0, "message": "hi"}
//	}
type Config struct {
	// Name identifies the store as the Source of its events.
	Name string `json:"name" toml:"name"`

	// Observer names a registered observer ("noop", "slog", ...).
	Observer string `json:"observer" toml:"observer"`

	// State is the initial state. Required.
	State State `json:"state" toml:"state"`
}

// DefaultConfig returns a Config named "default" that logs through the
// "slog" observer and starts from an empty state.
func DefaultConfig() Config {
	return Config{
		Name:     "default",
		Observer: "slog",
		State:    State{},
	}
}

// Merge applies non-zero values from source into c. A non-nil source State
// replaces the current one wholesale.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}

	if source.Observer != "" {
		c.Observer = source.Observer
	}

	if source.State != nil {
		c.State = source.State
	}
}

// LoadConfig reads a JSON or TOML (by .toml extension) config file and
// merges it over DefaultConfig. The file must define a state; one that does
// not fails with ErrNilState.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		if err := toml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if loaded.State == nil {
		return nil, fmt.Errorf("config file %s has no state: %w", filename, ErrNilState)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
