package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadPartialFile reads a partial config from a JSON or YAML file. The format
// is chosen by extension; anything other than .json is parsed as YAML.
func LoadPartialFile(path string) (Partial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Partial{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var p Partial
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &p)
	} else {
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return Partial{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return p, nil
}

// LoadFile reads a complete config file, filling unspecified fields from the
// defaults, and validates the result.
func LoadFile(path string) (Config, error) {
	p, err := LoadPartialFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Merge(Default(), p)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
