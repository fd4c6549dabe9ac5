// Package config loads sitegen CLI configuration from .sitegen.yml,
// SITEGEN_* environment variables, and command-line flags, in that
// ascending order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full CLI configuration.
type Config struct {
	Content ContentConfig `mapstructure:"content"`
	Output  OutputConfig  `mapstructure:"output"`
	Static  StaticConfig  `mapstructure:"static"`
	Styles  StylesConfig  `mapstructure:"styles"`
	Watch   WatchConfig   `mapstructure:"watch"`
	// LogLevel is debug, info, warn, or error.
	LogLevel string `mapstructure:"log_level"`
}

// ContentConfig locates the markdown sources.
type ContentConfig struct {
	// Glob selects the source files, e.g. "content/*.md".
	Glob string `mapstructure:"glob"`
}

// OutputConfig locates the generated site.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// StaticConfig locates passthrough assets mirrored into the output.
type StaticConfig struct {
	// Dir is the asset root; empty disables mirroring.
	Dir string `mapstructure:"dir"`
}

// StylesConfig locates the stylesheet and its compilation cache.
type StylesConfig struct {
	// Source is the entry stylesheet; empty disables the styles step.
	Source string `mapstructure:"source"`
	// CacheDir backs the content-addressed compilation cache.
	CacheDir string `mapstructure:"cache_dir"`
}

// WatchConfig controls the rebuild loop.
type WatchConfig struct {
	// Roots are watched recursively; when empty the build derives them
	// from the content glob, static dir, and styles source.
	Roots []string `mapstructure:"roots"`
	// Debounce is the quiet window that must elapse before a rebuild
	// fires.
	Debounce time.Duration `mapstructure:"debounce"`
}

// Load reads configuration with the standard precedence: defaults,
// then .sitegen.yml, then SITEGEN_* environment variables, then any
// flags bound onto viper by the CLI.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	v.SetConfigName(".sitegen")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SITEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("content.glob", "content/*.md")
	v.SetDefault("output.dir", "dist")
	v.SetDefault("static.dir", "static")
	v.SetDefault("styles.source", "")
	v.SetDefault("styles.cache_dir", ".sitegen-cache")
	v.SetDefault("watch.debounce", 300*time.Millisecond)
	v.SetDefault("log_level", "info")
}

// Validate rejects configurations the build cannot run with.
func (c *Config) Validate() error {
	if c.Content.Glob == "" {
		return fmt.Errorf("config: content.glob must not be empty")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("config: output.dir must not be empty")
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("config: watch.debounce must be positive, got %s", c.Watch.Debounce)
	}
	if c.Styles.Source != "" && c.Styles.CacheDir == "" {
		return fmt.Errorf("config: styles.cache_dir must be set when styles.source is")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
