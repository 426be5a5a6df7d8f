// Package config loads callgraph settings from defaults, TOML files and
// CALLGRAPH_* environment variables using Viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"callgraph/internal/errors"
	"callgraph/internal/render"
)

// ProjectFileName is searched for upward from the working directory.
const ProjectFileName = "callgraph.toml"

// Config is the complete callgraph configuration.
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	LSP       LSPConfig       `mapstructure:"lsp"`
	Store     StoreConfig     `mapstructure:"store"`
	Output    OutputConfig    `mapstructure:"output"`
	Explorer  ExplorerConfig  `mapstructure:"explorer"`
}

// WorkspaceConfig locates the code being explored.
type WorkspaceConfig struct {
	Root       string `mapstructure:"root"`        // empty = git root of the working directory
	FilterPath string `mapstructure:"filter_path"` // edges outside this path are dropped
}

// OracleConfig tunes how the language server is queried.
type OracleConfig struct {
	MaxRetries            int     `mapstructure:"max_retries"` // total attempts per query
	RetryDelayMS          int     `mapstructure:"retry_delay_ms"`
	RequestsPerSecond     float64 `mapstructure:"requests_per_second"` // 0 = unlimited
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds"`
}

// LSPConfig selects the language server.
type LSPConfig struct {
	Command  string   `mapstructure:"command"` // empty = resolve from language
	Args     []string `mapstructure:"args"`
	Language string   `mapstructure:"language"` // empty = detect from workspace files
}

// StoreConfig locates the snapshot database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig controls how graphs are printed.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// ExplorerConfig tunes the explorers.
type ExplorerConfig struct {
	CallableOnly bool `mapstructure:"callable_only"`
	Snippets     bool `mapstructure:"snippets"`
	Workers      int  `mapstructure:"workers"` // concurrent jobs for folder draws
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workspace.root", "")
	v.SetDefault("workspace.filter_path", "")

	v.SetDefault("oracle.max_retries", 2)
	v.SetDefault("oracle.retry_delay_ms", 100)
	v.SetDefault("oracle.requests_per_second", 0.0)
	v.SetDefault("oracle.request_timeout_seconds", 30)

	v.SetDefault("lsp.command", "")
	v.SetDefault("lsp.args", []string{})
	v.SetDefault("lsp.language", "")

	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("output.format", string(render.FormatJSON))

	v.SetDefault("explorer.callable_only", false)
	v.SetDefault("explorer.snippets", true)
	v.SetDefault("explorer.workers", 4)
}

func defaultStorePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "callgraph", "snapshots.db")
}

// New returns a Viper instance with defaults and environment binding. When
// configPath is empty, the nearest callgraph.toml above the working
// directory is merged if one exists.
func New(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("CALLGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configPath == "" {
		configPath = findProjectConfig()
	}
	if configPath == "" {
		return v, nil
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return v, nil
}

// Load reads configuration from defaults, the project file and environment.
func Load(configPath string) (*Config, error) {
	v, err := New(configPath)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadFromFile reads configuration from a specific file without binding the
// environment.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates configuration from v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Oracle.MaxRetries < 1 {
		return errors.NewInvalidRequestError("oracle.max_retries must be at least 1, got %d", c.Oracle.MaxRetries)
	}
	if c.Oracle.RetryDelayMS < 0 {
		return errors.NewInvalidRequestError("oracle.retry_delay_ms cannot be negative")
	}
	if c.Oracle.RequestsPerSecond < 0 {
		return errors.NewInvalidRequestError("oracle.requests_per_second cannot be negative")
	}
	if c.Oracle.RequestTimeoutSeconds < 0 {
		return errors.NewInvalidRequestError("oracle.request_timeout_seconds cannot be negative")
	}
	if c.Explorer.Workers < 1 {
		return errors.NewInvalidRequestError("explorer.workers must be at least 1, got %d", c.Explorer.Workers)
	}
	if c.Store.Path == "" {
		return errors.NewInvalidRequestError("store.path cannot be empty")
	}
	if _, err := render.ParseFormat(c.Output.Format); err != nil {
		return err
	}
	return nil
}

// RetryDelay is the pause between oracle attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Oracle.RetryDelayMS) * time.Millisecond
}

// RequestTimeout bounds each language server request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Oracle.RequestTimeoutSeconds) * time.Second
}

// findProjectConfig walks up from the working directory looking for
// callgraph.toml. Returns "" when none is found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
