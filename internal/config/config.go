// Package config loads the startup configuration of the propls binary.
//
// Sources are merged in order, later ones winning:
//
//  1. built-in defaults
//  2. a TOML file (".propls.toml" in the working directory, or --config)
//  3. environment variables prefixed with PROPLS_
//
// Environment variables name a section and a key separated by the first
// underscore after the prefix, e.g. PROPLS_METADATA_RETRY_INITIAL_INTERVAL
// sets metadata.retry_initial_interval.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = ".propls.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROPLS_"

// Log configures logging.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Metadata configures where project metadata comes from.
type Metadata struct {
	// File is a metadata JSON file used when the client provides none.
	File                 string        `koanf:"file"`
	Retries              uint          `koanf:"retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
}

// Docs configures documentation rendering.
type Docs struct {
	CacheBytes int64 `koanf:"cache_bytes"`
}

// Validation configures the validation scheduler.
type Validation struct {
	Workers int `koanf:"workers"`
}

// Output configures CLI output.
type Output struct {
	// Color is one of auto, on, off.
	Color string `koanf:"color"`
}

// Config is the startup configuration.
type Config struct {
	Log        Log        `koanf:"log"`
	Metadata   Metadata   `koanf:"metadata"`
	Docs       Docs       `koanf:"docs"`
	Validation Validation `koanf:"validation"`
	Output     Output     `koanf:"output"`

	// ConfigFile is the file that was loaded, empty when none was.
	ConfigFile string `koanf:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:        Log{Level: "info", Format: "text"},
		Metadata:   Metadata{Retries: 3, RetryInitialInterval: 200 * time.Millisecond},
		Docs:       Docs{CacheBytes: 1 << 20},
		Validation: Validation{Workers: 4},
		Output:     Output{Color: "auto"},
	}
}

// Load merges defaults, the configuration file and the environment.
//
// path names the file explicitly; it must exist. With an empty path
// DefaultFile is used if present.
func Load(path string) (*Config, error) {
	return load(path, os.Environ)
}

func load(path string, environ func() []string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	loaded := ""
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	} else {
		loaded = path
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environ,
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.ConfigFile = loaded
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps PROPLS_SECTION_SOME_KEY to section.some_key. Variables
// without a section are dropped.
func envKey(k, v string) (string, any) {
	k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	section, key, ok := strings.Cut(k, "_")
	if !ok || key == "" {
		return "", nil
	}
	return section + "." + key, v
}

// Validate checks values that cannot be expressed by their types.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format: unknown format %q", c.Log.Format)
	}
	switch c.Output.Color {
	case "auto", "on", "off":
	default:
		return fmt.Errorf("config: output.color: unknown mode %q", c.Output.Color)
	}
	if c.Docs.CacheBytes <= 0 {
		return errors.New("config: docs.cache_bytes must be positive")
	}
	if c.Validation.Workers < 1 {
		return errors.New("config: validation.workers must be at least 1")
	}
	return nil
}

// Logger builds a logger writing to the configured level and format.
func (c *Config) Logger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return logger
}
