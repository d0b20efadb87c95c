// internal/config/config.go
//
// This package handles configuration and the lazycounter home directory.
// The home directory holds config.yaml and the logs/ folder.
//
// Precedence, lowest to highest: built-in defaults, config.yaml,
// LAZYCOUNTER_* environment variables, command line flags (applied by cmd).

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// AppName names the home directory and the log file.
	AppName = "lazycounter"

	// HomeEnv overrides the home directory location.
	HomeEnv = "LAZYCOUNTER_HOME"

	defaultLazyDelay = 5 * time.Second
	defaultTickRate  = 250 * time.Millisecond
	defaultHistory   = 5
	defaultLogLevel  = "info"
)

const defaultConfigYAML = `# lazycounter configuration
version: 1

# How long a lazy increment/decrement waits before it lands (simulated round trip).
lazy_delay: 5s

# How often the screen wakes up even without input.
tick_rate: 250ms

# Number of completed deferred actions shown on screen.
history: 5

# debug, info, warn or error. Logs go to logs/lazycounter.log.
log_level: info

# Key bindings use bubbletea key names (e.g. "q", "ctrl+c", "up").
keys:
  quit: [q, ctrl+c]
  increment: [j]
  lazy_increment: [J]
  decrement: [k]
  lazy_decrement: [K]
`

// Keys lists the key names bound to each intent.
type Keys struct {
	Quit          []string `yaml:"quit" env:"QUIT"`
	Increment     []string `yaml:"increment" env:"INCREMENT"`
	LazyIncrement []string `yaml:"lazy_increment" env:"LAZY_INCREMENT"`
	Decrement     []string `yaml:"decrement" env:"DECREMENT"`
	LazyDecrement []string `yaml:"lazy_decrement" env:"LAZY_DECREMENT"`
}

// Settings models config.yaml.
type Settings struct {
	Version   int           `yaml:"version"`
	LazyDelay time.Duration `yaml:"lazy_delay" env:"LAZY_DELAY"`
	TickRate  time.Duration `yaml:"tick_rate" env:"TICK_RATE"`
	History   int           `yaml:"history" env:"HISTORY"`
	LogLevel  string        `yaml:"log_level" env:"LOG_LEVEL"`
	Keys      Keys          `yaml:"keys" envPrefix:"KEYS_"`
}

// Config holds the runtime configuration.
type Config struct {
	// HomeDir holds config.yaml and logs/.
	HomeDir string

	Settings Settings
}

// DefaultHomeDir resolves the home directory from LAZYCOUNTER_HOME or the
// user's config directory.
func DefaultHomeDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(HomeEnv)); dir != "" {
		return filepath.Abs(dir)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate user config dir: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// InitHomeDir creates the home directory layout and writes a default
// config.yaml when none exists.
//
// Structure created:
// <home>/
// ├── config.yaml
// └── logs/
func InitHomeDir(homeDir string) error {
	if err := os.MkdirAll(filepath.Join(homeDir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: ensure home dir: %w", err)
	}
	return ensureConfigFile(filepath.Join(homeDir, "config.yaml"))
}

// Load reads config.yaml from homeDir (missing file means defaults) and then
// applies LAZYCOUNTER_* environment overrides.
func Load(homeDir string) (*Config, error) {
	cfg := &Config{
		HomeDir:  homeDir,
		Settings: DefaultSettings(),
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Settings.normalize()
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		Version:   1,
		LazyDelay: defaultLazyDelay,
		TickRate:  defaultTickRate,
		History:   defaultHistory,
		LogLevel:  defaultLogLevel,
		Keys:      DefaultKeys(),
	}
}

// DefaultKeys returns the stock bindings: q/ctrl+c quit, j/k step, J/K lazy step.
func DefaultKeys() Keys {
	return Keys{
		Quit:          []string{"q", "ctrl+c"},
		Increment:     []string{"j"},
		LazyIncrement: []string{"J"},
		Decrement:     []string{"k"},
		LazyDecrement: []string{"K"},
	}
}

// ConfigPath returns the on-disk location of config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.HomeDir, "config.yaml")
}

// LogsDir returns the directory log files are written to.
func (c *Config) LogsDir() string {
	return filepath.Join(c.HomeDir, "logs")
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	// Keys absent from the file keep their defaults; explicit values,
	// including empty ones, are left for Validate.
	parsed := DefaultSettings()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Settings = parsed
	return nil
}

func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(&c.Settings, env.Options{Prefix: "LAZYCOUNTER_"}); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

func (s *Settings) normalize() {
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	for _, list := range s.Keys.all() {
		for i := range *list.keys {
			(*list.keys)[i] = strings.TrimSpace((*list.keys)[i])
		}
	}
}

// Validate enforces ranges and rejects ambiguous key bindings.
func (s Settings) Validate() error {
	if s.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if s.LazyDelay < 0 {
		return fmt.Errorf("lazy_delay must not be negative")
	}
	if s.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive")
	}
	if s.History < 0 {
		return fmt.Errorf("history must not be negative")
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return s.Keys.validate()
}

type keyList struct {
	name string
	keys *[]string
}

// all lists the bindings in declaration order so errors are stable.
func (k *Keys) all() []keyList {
	return []keyList{
		{"quit", &k.Quit},
		{"increment", &k.Increment},
		{"lazy_increment", &k.LazyIncrement},
		{"decrement", &k.Decrement},
		{"lazy_decrement", &k.LazyDecrement},
	}
}

func (k Keys) validate() error {
	owner := map[string]string{}
	for _, list := range k.all() {
		if len(*list.keys) == 0 {
			return fmt.Errorf("keys.%s needs at least one key", list.name)
		}
		for _, key := range *list.keys {
			if key == "" {
				return fmt.Errorf("keys.%s contains an empty key", list.name)
			}
			if prev, ok := owner[key]; ok && prev != list.name {
				return fmt.Errorf("key %q bound to both %s and %s", key, prev, list.name)
			}
			owner[key] = list.name
		}
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
