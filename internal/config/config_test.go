package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matrixci.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
matrix:
  os: [linux]
  channels: [stable]
steps:
  build: cargo build
  test: cargo test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.Dir)
	assert.Equal(t, 30*time.Minute, cfg.Steps.TimeoutDuration())
	assert.Equal(t, "linux", cfg.Libpath.OS)
	assert.Equal(t, "LD_LIBRARY_PATH", cfg.Libpath.Variable)
	assert.Equal(t, "master", cfg.Publish.Branch)
	assert.Equal(t, "gh-pages", cfg.Publish.PagesBranch)
	assert.Equal(t, "GH_TOKEN", cfg.Publish.TokenEnv)
	assert.Equal(t, 1, cfg.Run.Concurrency)
	assert.Equal(t, time.Hour, cfg.Daemon.IntervalDuration())
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("MATRIXCI_TEST_FEATURES", "unicode")
	path := writeConfig(t, `
matrix:
  os: [linux]
  channels: [stable]
  env:
    FEATURES: ${MATRIXCI_TEST_FEATURES}
steps:
  build: cargo build
  test: cargo test
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "unicode", cfg.Matrix.Env["FEATURES"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing os axis",
			mutate:  func(c *Config) { c.Matrix.OS = nil; c.Matrix.Include = nil },
			wantErr: "no operating systems",
		},
		{
			name:    "missing channels",
			mutate:  func(c *Config) { c.Matrix.Channels = nil },
			wantErr: "no channels",
		},
		{
			name:    "missing build command",
			mutate:  func(c *Config) { c.Steps.Build = "" },
			wantErr: "steps.build",
		},
		{
			name:    "incomplete include entry",
			mutate:  func(c *Config) { c.Matrix.Include = []IncludeEntry{{OS: "linux"}} },
			wantErr: "matrix.include[0]",
		},
		{
			name:    "publish enabled without remote",
			mutate:  func(c *Config) { c.Publish.Enabled = true; c.Publish.RemoteURL = "" },
			wantErr: "publish.remote_url",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Matrix: MatrixConfig{OS: []string{"linux"}, Channels: []string{"stable"}},
				Steps:  StepsConfig{Build: "make", Test: "make test"},
			}
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrixci.yaml")
	require.NoError(t, Init(path, false))

	// Example config must load and validate.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"linux", "osx"}, cfg.Matrix.OS)

	// Second init without force refuses to overwrite.
	err = Init(path, false)
	assert.Error(t, err)
	assert.NoError(t, Init(path, true))
}
