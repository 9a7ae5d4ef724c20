package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // console, json
	File       string          `yaml:"file"`       // empty = stderr
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Validate checks the level and format.
func (c *LoggingConfig) Validate() error {
	if c.Level != "" {
		if _, err := zapcore.ParseLevel(c.Level); err != nil {
			return fmt.Errorf("invalid logging.level: %w", err)
		}
	}
	switch c.Format {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("invalid logging.format %q (valid: console, json)", c.Format)
	}
}
