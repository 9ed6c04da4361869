package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// LoadTOML loads configuration from the .smaliref.toml file in
// projectRoot. It returns nil, nil when there is no such file. Keys absent
// from the file keep their defaults; exclude entries add to the default
// exclusions.
func LoadTOML(projectRoot string) (*Config, error) {
	tomlPath := filepath.Join(projectRoot, TOMLFileName)

	data, err := os.ReadFile(tomlPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TOMLFileName, err)
	}

	cfg, err := parseTOML(data)
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, projectRoot)
	return cfg, nil
}

func parseTOML(data []byte) (*Config, error) {
	cfg := Default("")
	cfg.Project = Project{}
	defaults := cfg.Exclude
	cfg.Exclude = nil
	cfg.Include = nil // the validator restores the default when unset

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg.Exclude = DeduplicatePatterns(append(defaults, cfg.Exclude...))
	return cfg, nil
}
