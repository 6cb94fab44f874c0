package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/projectsview/internal/parser"
)

func writeConfig(t *testing.T, dir string, data any) {
	t.Helper()
	b, err := json.Marshal(data)
	require.NoError(t, err, "marshal config")
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.json"), b, 0o600,
	))
}

// setupConfigDir creates a temp data dir, sets the env var and
// returns it.
func setupConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PROJECTSVIEW_DATA_DIR", dir)
	return dir
}

func loadConfigFromFlags(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterGlobalFlags(fs)
	RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return Load(fs)
}

func TestDefaults(t *testing.T) {
	dir := setupConfigDir(t)
	cfg, err := loadConfigFromFlags(t)
	require.NoError(t, err)

	assert.Equal(t, "projects.json", cfg.ProjectsFile)
	assert.Equal(t, "conversations.json", cfg.ConversationsFile)
	assert.Equal(t, "all", cfg.BranchPolicy)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "config.json"), cfg.ConfigPath())
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLayering(t *testing.T) {
	tests := []struct {
		name  string
		file  map[string]any
		env   map[string]string
		args  []string
		check func(t *testing.T, cfg Config)
	}{
		{
			name: "FileOverridesDefaults",
			file: map[string]any{
				"projects_file": "/data/p.json",
				"port":          9000,
				"branch_policy": "latest",
			},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "/data/p.json", cfg.ProjectsFile)
				assert.Equal(t, 9000, cfg.Port)
				assert.Equal(t, parser.BranchLatest, cfg.Policy())
				assert.Equal(t, "conversations.json", cfg.ConversationsFile)
			},
		},
		{
			name: "EnvOverridesFile",
			file: map[string]any{"port": 9000, "pager": "more"},
			env: map[string]string{
				"PROJECTSVIEW_PORT":  "9100",
				"PROJECTSVIEW_PAGER": "less -FRX",
			},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 9100, cfg.Port)
				assert.Equal(t, "less -FRX", cfg.Pager)
			},
		},
		{
			name: "FlagsOverrideEnv",
			env:  map[string]string{"PROJECTSVIEW_PORT": "9100"},
			args: []string{"--port", "9200", "--workers", "3"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 9200, cfg.Port)
				assert.Equal(t, 3, cfg.Workers)
			},
		},
		{
			name: "UnsetFlagsDoNotOverride",
			file: map[string]any{
				"conversations_file": "/data/c.json",
				"log_level":          "debug",
			},
			args: []string{"--projects-file", "mine.json"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "mine.json", cfg.ProjectsFile)
				assert.Equal(t, "/data/c.json", cfg.ConversationsFile)
				assert.Equal(t, slog.LevelDebug, cfg.Level())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupConfigDir(t)
			if tt.file != nil {
				writeConfig(t, dir, tt.file)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := loadConfigFromFlags(t, tt.args...)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadInvalidConfigFile(t *testing.T) {
	dir := setupConfigDir(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "config.json"), []byte("{not json"), 0o600,
	))
	_, err := LoadMinimal()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config file")
}

func TestResolveDataDir(t *testing.T) {
	t.Setenv("PROJECTSVIEW_DATA_DIR", "/custom/dir")
	dir, err := ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/dir", dir)

	t.Setenv("PROJECTSVIEW_DATA_DIR", "")
	t.Setenv("HOME", "/home/someone")
	dir, err = ResolveDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/someone", ".projectsview"), dir)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ProjectsFile:      "p.json",
			ConversationsFile: "c.json",
			BranchPolicy:      "all",
			LogLevel:          "info",
			Port:              8080,
		}
	}
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{"Valid", func(c *Config) {}, ""},
		{"LatestPolicy", func(c *Config) { c.BranchPolicy = "LATEST" }, ""},
		{"UTC", func(c *Config) { c.Timezone = "UTC" }, ""},
		{"BadPolicy", func(c *Config) { c.BranchPolicy = "oldest" }, "branch_policy"},
		{"BadLevel", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"PortZero", func(c *Config) { c.Port = 0 }, "port"},
		{"PortHigh", func(c *Config) { c.Port = 70000 }, "port"},
		{"NegativeWorkers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"BadZone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"EmptyInput", func(c *Config) { c.ProjectsFile = "" }, "projects_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var ce *ConfigError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.wantField, ce.Field)
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := Config{}
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Timezone = "America/New_York"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("loaded", "conversations", 3)

	assert.Contains(t, stderr.String(), "msg=loaded")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "loaded", entry["msg"])
	assert.Equal(t, float64(3), entry["conversations"])
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	var stderr bytes.Buffer
	logger, cleanup := SetupLogger(&stderr, path, slog.LevelInfo)
	logger.Warn("careful")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"careful"`)
	assert.Contains(t, stderr.String(), "careful")
}

func TestSetupLoggerFallsBackToStderr(t *testing.T) {
	var stderr bytes.Buffer
	logger, cleanup := SetupLogger(
		&stderr, filepath.Join(t.TempDir(), "missing", "run.log"),
		slog.LevelInfo,
	)
	logger.Info("still works")
	require.NoError(t, cleanup())
	assert.Contains(t, stderr.String(), "failed to open log file")
	assert.Contains(t, stderr.String(), "still works")
}
