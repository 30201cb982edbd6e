package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from path. Unlike a daemon with optional
// settings, gestured has nothing to do without gestures, so a missing file
// is an error wrapping os.ErrNotExist.
//
// The format follows the extension (.toml, .json, .yaml, .yml). Unknown
// extensions try TOML, then JSON, then YAML. A JSON document whose top
// level is an array is read as the gesture list alone, with every other
// setting at its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext over the defaults.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := DefaultConfig()

	switch ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := decodeJSON(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, nil
}

// decodeJSON accepts both the sectioned document and the legacy bare
// array of gestures.
func decodeJSON(data []byte, cfg *Config) error {
	if isLegacyArray(data) {
		var gestures []Gesture
		if err := json.Unmarshal(data, &gestures); err != nil {
			return err
		}
		cfg.Gestures = gestures
		cfg.StrictSymbols = false
		return nil
	}
	return json.Unmarshal(data, cfg)
}

func isLegacyArray(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// autoDetectAndParse attempts to parse the config in multiple formats.
func autoDetectAndParse(data []byte, cfg *Config) error {
	// Each attempt starts from fresh defaults.
	try := func(decode func(*Config) error) bool {
		c := DefaultConfig()
		if err := decode(c); err != nil {
			return false
		}
		*cfg = *c
		return true
	}

	if try(func(c *Config) error { _, err := toml.Decode(string(data), c); return err }) {
		return nil
	}
	if try(func(c *Config) error { return decodeJSON(data, c) }) {
		return nil
	}
	if try(func(c *Config) error { return yaml.Unmarshal(data, c) }) {
		return nil
	}
	return fmt.Errorf("unable to parse config as TOML, JSON, or YAML")
}

// FindConfigFile returns the first config file found in the current
// directory or ConfigDir.
func FindConfigFile() (string, error) {
	for _, dir := range searchDirs() {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("no config file in . or %s: %w", ConfigDir(), os.ErrNotExist)
}

// Resolve returns path if set, otherwise FindConfigFile.
func Resolve(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return FindConfigFile()
}
