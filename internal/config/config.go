package config

import (
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when --config is not given.
const DefaultConfigFile = ".ctxwrap.yaml"

// Config holds all ctxwrap configuration.
type Config struct {
	// Directive recognition
	DirectivePrefix string `yaml:"directive_prefix"`

	// Runtime package the rewritten code imports
	RuntimeImport string `yaml:"runtime_import"`
	ImportAlias   string `yaml:"import_alias"`

	// Overlay output
	OutputDir   string `yaml:"output_dir"`
	OverlayFile string `yaml:"overlay_file"` // defaults to <output_dir>/overlay.json

	// Package discovery
	IncludeTests bool     `yaml:"include_tests"`
	Exclude      []string `yaml:"exclude"` // glob patterns matched against directory base names
	Workers      int      `yaml:"workers"` // 0 means GOMAXPROCS

	Watch WatchConfig `yaml:"watch"`

	// Environment and flags for `ctxwrap go`
	Go GoConfig `yaml:"go"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// WatchConfig configures `ctxwrap watch`.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// GoConfig configures the go command run by `ctxwrap go`.
type GoConfig struct {
	Env   map[string]string `yaml:"env"`   // added to the inherited environment
	Flags []string          `yaml:"flags"` // inserted after the subcommand, before user arguments
}

// Validate checks env keys and flags.
func (g *GoConfig) Validate() error {
	for key := range g.Env {
		if key == "" || strings.ContainsAny(key, "= \t") {
			return fmt.Errorf("invalid go.env key %q", key)
		}
	}
	for _, flag := range g.Flags {
		if !strings.HasPrefix(flag, "-") {
			return fmt.Errorf("go.flags entry %q is not a flag", flag)
		}
		if name := strings.TrimLeft(strings.SplitN(flag, "=", 2)[0], "-"); name == "overlay" {
			return fmt.Errorf("go.flags must not set -overlay")
		}
	}
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DirectivePrefix: "ctxwrap",
		RuntimeImport:   "ctxwrap/pkg/wrap",
		ImportAlias:     "ctxwrap",
		OutputDir:       ".ctxwrap",
		IncludeTests:    true,
		Watch: WatchConfig{
			Debounce: "200ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("CTXWRAP_OUTPUT_DIR"); dir != "" {
		c.OutputDir = dir
	}
	if path := os.Getenv("CTXWRAP_RUNTIME_IMPORT"); path != "" {
		c.RuntimeImport = path
	}
	if level := os.Getenv("CTXWRAP_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if workers := os.Getenv("CTXWRAP_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			c.Workers = n
		}
	}
}

// OverlayPath returns the overlay.json path.
func (c *Config) OverlayPath() string {
	if c.OverlayFile != "" {
		return c.OverlayFile
	}
	return filepath.Join(c.OutputDir, "overlay.json")
}

// EffectiveWorkers returns the number of files rewritten concurrently.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// GetDebounce returns the watch debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DirectivePrefix == "" || strings.ContainsAny(c.DirectivePrefix, " \t:/") {
		return fmt.Errorf("invalid directive_prefix %q", c.DirectivePrefix)
	}
	if c.RuntimeImport == "" {
		return fmt.Errorf("runtime_import must not be empty")
	}
	if !token.IsIdentifier(c.ImportAlias) || c.ImportAlias == "_" {
		return fmt.Errorf("import_alias %q is not a Go identifier", c.ImportAlias)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	for _, pattern := range c.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("invalid watch.debounce: %w", err)
		}
	}
	if err := c.Go.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
