package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options for the ud tooling.
//
// The config file format is JWCC (JSON with comments and trailing commas),
// parsed via hujson.
type Config struct {
	// Workers is the default goroutine count for bench and stress runs.
	Workers int `json:"workers,omitempty"`

	// Iterations is the default per-worker operation count.
	Iterations int `json:"iterations,omitempty"`

	// OutDir is where reports are written. Empty disables report files.
	OutDir string `json:"out_dir,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Workers:    8,
		Iterations: 100_000,
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".ud.json"

// globalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/ud/config.json if set, otherwise
// ~/.config/ud/config.json. Returns empty string if neither can be
// determined.
func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok && after != "" {
			return filepath.Join(after, "ud", "config.json")
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "ud", "config.json")
	}

	return ""
}

// LoadConfig loads configuration with the following precedence (highest
// wins):
//  1. Defaults
//  2. Global user config ($XDG_CONFIG_HOME/ud/config.json)
//  3. Project config at workDir/.ud.json, if it exists
//  4. Explicit config file via configPath, if non-empty
//
// Flag overrides are applied by the individual commands on top of the
// result.
func LoadConfig(workDir, configPath string, env []string) (Config, ConfigSources, error) {
	cfg := DefaultConfig()

	var sources ConfigSources

	if global := globalConfigPath(env); global != "" {
		loaded, ok, err := loadConfigFile(global)
		if err != nil {
			return Config{}, ConfigSources{}, err
		}

		if ok {
			sources.Global = global
			cfg = mergeConfig(cfg, loaded)
		}
	}

	project := filepath.Join(workDir, ConfigFileName)
	if configPath != "" {
		project = configPath
	}

	loaded, ok, err := loadConfigFile(project)
	if err != nil {
		return Config{}, ConfigSources{}, err
	}

	if !ok && configPath != "" {
		return Config{}, ConfigSources{}, fmt.Errorf("config file not found: %s", configPath)
	}

	if ok {
		sources.Project = project
		cfg = mergeConfig(cfg, loaded)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, ConfigSources{}, err
	}

	return cfg, sources, nil
}

// loadConfigFile reads and parses one JWCC config file. A missing file is
// not an error; the second return reports whether the file existed.
func loadConfigFile(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, true, nil
}

// mergeConfig overlays set fields of override onto base.
func mergeConfig(base, override Config) Config {
	if override.Workers != 0 {
		base.Workers = override.Workers
	}

	if override.Iterations != 0 {
		base.Iterations = override.Iterations
	}

	if override.OutDir != "" {
		base.OutDir = override.OutDir
	}

	return base
}

func (c Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}

	if c.Iterations < 1 {
		return fmt.Errorf("config: iterations must be >= 1, got %d", c.Iterations)
	}

	return nil
}
