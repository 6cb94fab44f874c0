package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wesm/projectsview/internal/parser"
)

// EnvPrefix prefixes every environment override, e.g.
// PROJECTSVIEW_PROJECTS_FILE.
const EnvPrefix = "PROJECTSVIEW"

// Config holds all application configuration.
type Config struct {
	ProjectsFile      string `mapstructure:"projects_file"`
	ConversationsFile string `mapstructure:"conversations_file"`
	BranchPolicy      string `mapstructure:"branch_policy"`
	LogLevel          string `mapstructure:"log_level"`
	LogFile           string `mapstructure:"log_file"`
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Pager             string `mapstructure:"pager"`
	Workers           int    `mapstructure:"workers"`
	Timezone          string `mapstructure:"timezone"`

	DataDir      string        `mapstructure:"-"`
	WriteTimeout time.Duration `mapstructure:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ProjectsFile:      "projects.json",
		ConversationsFile: "conversations.json",
		BranchPolicy:      string(parser.BranchAll),
		LogLevel:          "info",
		Host:              "127.0.0.1",
		Port:              8080,
		Workers:           runtime.GOMAXPROCS(0),
		DataDir:           dataDir,
		WriteTimeout:      30 * time.Second,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *pflag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file and
// env, without looking at CLI flags.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := readFile(v, cfg.ConfigPath()); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv overrides are
// picked up by Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("projects_file", cfg.ProjectsFile)
	v.SetDefault("conversations_file", cfg.ConversationsFile)
	v.SetDefault("branch_policy", cfg.BranchPolicy)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("pager", cfg.Pager)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("timezone", cfg.Timezone)
}

func readFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ConfigPath returns the location of the optional config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

// RegisterGlobalFlags registers the flags shared by every command.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	fs.String("projects-file", "projects.json",
		"Path to the projects document")
	fs.String("conversations-file", "conversations.json",
		"Path to the conversations document")
	fs.String("branch-policy", string(parser.BranchAll),
		"Branch walk for messages: all or latest")
	fs.String("log-level", "info",
		"Log level: debug, info, warn or error")
	fs.String("log-file", "",
		"Also write JSON logs to this file")
	fs.Int("workers", 0,
		"Parallel reconstruction workers (0 = number of CPUs)")
}

// RegisterServeFlags registers serve-command flags on fs.
func RegisterServeFlags(fs *pflag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8080, "Port to listen on")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "projects-file":
			cfg.ProjectsFile = f.Value.String()
		case "conversations-file":
			cfg.ConversationsFile = f.Value.String()
		case "branch-policy":
			cfg.BranchPolicy = f.Value.String()
		case "log-level":
			cfg.LogLevel = f.Value.String()
		case "log-file":
			cfg.LogFile = f.Value.String()
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// pflag already validated the int
			cfg.Port, _ = fs.GetInt("port")
		case "workers":
			cfg.Workers, _ = fs.GetInt("workers")
		}
	})
}

// ResolveDataDir returns the effective data directory by applying
// defaults and environment overrides, without reading any files.
func ResolveDataDir() (string, error) {
	if v := os.Getenv(EnvPrefix + "_DATA_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	return filepath.Join(home, ".projectsview"), nil
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the values that cannot be checked by decoding.
func (c *Config) Validate() error {
	if _, err := parser.ParseBranchPolicy(c.BranchPolicy); err != nil {
		return &ConfigError{Field: "branch_policy", Message: err.Error()}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return &ConfigError{Field: "log_level", Message: err.Error()}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{
			Field:   "port",
			Message: fmt.Sprintf("%d is out of range 1-65535", c.Port),
		}
	}
	if c.Workers < 0 {
		return &ConfigError{
			Field:   "workers",
			Message: fmt.Sprintf("%d must not be negative", c.Workers),
		}
	}
	if _, err := c.Location(); err != nil {
		return &ConfigError{Field: "timezone", Message: err.Error()}
	}
	if c.ProjectsFile == "" || c.ConversationsFile == "" {
		return &ConfigError{
			Field:   "projects_file",
			Message: "input file paths must not be empty",
		}
	}
	return nil
}

// Policy returns the configured branch policy. Call Validate
// first; an invalid value falls back to BranchAll.
func (c *Config) Policy() parser.BranchPolicy {
	p, err := parser.ParseBranchPolicy(c.BranchPolicy)
	if err != nil {
		return parser.BranchAll
	}
	return p
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// Location returns the display time zone. An empty timezone means
// the local zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
