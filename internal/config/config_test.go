package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callgraph/internal/errors"
)

func TestLoadWithViper_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Oracle.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryDelay())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "json", cfg.Output.Format)
	assert.False(t, cfg.Explorer.CallableOnly)
	assert.True(t, cfg.Explorer.Snippets)
	assert.Equal(t, 4, cfg.Explorer.Workers)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[workspace]
root = "/src/project"
filter_path = "/src/project/pkg"

[oracle]
max_retries = 4
requests_per_second = 20.5

[lsp]
command = "gopls"
args = ["serve"]

[output]
format = "yaml"

[explorer]
callable_only = true
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/src/project", cfg.Workspace.Root)
	assert.Equal(t, "/src/project/pkg", cfg.Workspace.FilterPath)
	assert.Equal(t, 4, cfg.Oracle.MaxRetries)
	assert.Equal(t, 20.5, cfg.Oracle.RequestsPerSecond)
	assert.Equal(t, 100, cfg.Oracle.RetryDelayMS, "unset keys keep defaults")
	assert.Equal(t, "gopls", cfg.LSP.Command)
	assert.Equal(t, []string{"serve"}, cfg.LSP.Args)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.True(t, cfg.Explorer.CallableOnly)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectFileName)
	require.NoError(t, os.WriteFile(path, []byte("[oracle]\nmax_retries = 4\n"), 0644))
	t.Setenv("CALLGRAPH_ORACLE_MAX_RETRIES", "7")
	t.Setenv("CALLGRAPH_OUTPUT_FORMAT", "yml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Oracle.MaxRetries)
	assert.Equal(t, "yml", cfg.Output.Format)
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFileName), []byte("[lsp]\ncommand = \"pyright\"\n"), 0644))
	t.Chdir(nested)

	found := findProjectConfig()
	require.NotEmpty(t, found)
	assert.Equal(t, ProjectFileName, filepath.Base(found))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "pyright", cfg.LSP.Command)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Oracle:   OracleConfig{MaxRetries: 2, RetryDelayMS: 100},
			Store:    StoreConfig{Path: "snapshots.db"},
			Output:   OutputConfig{Format: "json"},
			Explorer: ExplorerConfig{Workers: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"zero retries", func(c *Config) { c.Oracle.MaxRetries = 0 }, false},
		{"negative delay", func(c *Config) { c.Oracle.RetryDelayMS = -1 }, false},
		{"negative rate", func(c *Config) { c.Oracle.RequestsPerSecond = -1 }, false},
		{"negative timeout", func(c *Config) { c.Oracle.RequestTimeoutSeconds = -1 }, false},
		{"zero workers", func(c *Config) { c.Explorer.Workers = 0 }, false},
		{"empty store", func(c *Config) { c.Store.Path = "" }, false},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsInvalidRequestError(err), "got %v", err)
		})
	}
}
