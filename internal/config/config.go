package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Matrix    MatrixConfig    `yaml:"matrix"`
	Steps     StepsConfig     `yaml:"steps"`
	Libpath   LibpathConfig   `yaml:"libpath"`
	Publish   PublishConfig   `yaml:"publish"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Run       RunConfig       `yaml:"run"`
	History   HistoryConfig   `yaml:"history"`
	Events    EventsConfig    `yaml:"events"`
	Daemon    DaemonConfig    `yaml:"daemon"`
}

// ProjectConfig identifies the project checkout the jobs operate on.
type ProjectConfig struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir"` // working directory for all job steps
}

// MatrixConfig declares the build matrix axes and its exceptions.
type MatrixConfig struct {
	OS            []string          `yaml:"os"`
	Channels      []string          `yaml:"channels"`
	Env           map[string]string `yaml:"env,omitempty"`      // base environment for every product entry
	Include       []IncludeEntry    `yaml:"include,omitempty"`  // extra fully-specified jobs, appended verbatim
	AllowFailures AllowFailures     `yaml:"allow_failures,omitempty"`
}

// IncludeEntry is one extra job appended after the cartesian product.
type IncludeEntry struct {
	OS      string            `yaml:"os"`
	Channel string            `yaml:"channel"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// AllowFailures lists channels whose job failures do not fail the run.
type AllowFailures struct {
	Channels []string `yaml:"channels,omitempty"`
}

// StepsConfig holds the per-job pipeline commands. Commands run through the
// platform shell with the job's environment applied.
type StepsConfig struct {
	Build   string `yaml:"build"`
	Test    string `yaml:"test"`
	Docs    string `yaml:"docs"`
	Timeout string `yaml:"timeout,omitempty"` // Go duration string, e.g. "30m"
}

// TimeoutDuration returns the parsed step timeout; zero means no timeout.
// Validate has already rejected unparseable values.
func (s StepsConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// LibpathConfig controls dynamic-library search path setup between the build
// and test steps.
type LibpathConfig struct {
	OS       string   `yaml:"os,omitempty"`       // only jobs on this OS get the augmentation
	Variable string   `yaml:"variable,omitempty"` // e.g. LD_LIBRARY_PATH
	Patterns []string `yaml:"patterns,omitempty"` // globs relative to the job's build-output dir
}

// PublishConfig gates and drives documentation publication.
type PublishConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Branch      string `yaml:"branch,omitempty"`       // source branch allowed to publish
	OS          string `yaml:"os,omitempty"`           // publishing job's OS
	Channel     string `yaml:"channel,omitempty"`      // publishing job's channel
	PagesBranch string `yaml:"pages_branch,omitempty"` // target branch, e.g. gh-pages
	RemoteURL   string `yaml:"remote_url"`             // repository to push the pages branch to
	TokenEnv    string `yaml:"token_env,omitempty"`    // env var holding the push credential
	DocsDir     string `yaml:"docs_dir,omitempty"`     // built docs tree, relative to the job's build-output dir
}

// WorkspaceConfig controls per-job workspace directories.
type WorkspaceConfig struct {
	Dir  string `yaml:"dir,omitempty"`  // base directory; empty = system temp
	Keep bool   `yaml:"keep,omitempty"` // keep job workspaces after the run
}

// RunConfig controls run-level orchestration.
type RunConfig struct {
	Concurrency int `yaml:"concurrency,omitempty"` // max jobs in flight
}

// HistoryConfig configures the sqlite run history store.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"` // empty disables history
}

// EventsConfig configures optional NATS lifecycle event publishing.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig configures daemon mode.
type DaemonConfig struct {
	Interval    string `yaml:"interval,omitempty"` // Go duration string, e.g. "1h"
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
	WatchConfig bool   `yaml:"watch_config"`
}

// IntervalDuration returns the parsed schedule interval.
func (d DaemonConfig) IntervalDuration() time.Duration {
	dur, err := time.ParseDuration(d.Interval)
	if err != nil {
		return time.Hour
	}
	return dur
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	loadEnvFile()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in configuration values. Step commands are
	// deliberately left alone: references like $FEATURES in them are resolved
	// by the shell at step execution time, against the job's environment.
	config.expandEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) expandEnv() {
	c.Project.Dir = os.ExpandEnv(c.Project.Dir)
	c.Publish.RemoteURL = os.ExpandEnv(c.Publish.RemoteURL)
	c.Workspace.Dir = os.ExpandEnv(c.Workspace.Dir)
	c.History.Path = os.ExpandEnv(c.History.Path)
	c.Events.NATSURL = os.ExpandEnv(c.Events.NATSURL)
	for k, v := range c.Matrix.Env {
		c.Matrix.Env[k] = os.ExpandEnv(v)
	}
	for i := range c.Matrix.Include {
		for k, v := range c.Matrix.Include[i].Env {
			c.Matrix.Include[i].Env[k] = os.ExpandEnv(v)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Project.Dir == "" {
		c.Project.Dir = "."
	}
	if c.Steps.Timeout == "" {
		c.Steps.Timeout = "30m"
	}
	if c.Libpath.OS == "" {
		c.Libpath.OS = "linux"
	}
	if c.Libpath.Variable == "" {
		c.Libpath.Variable = "LD_LIBRARY_PATH"
	}
	if c.Publish.Branch == "" {
		c.Publish.Branch = "master"
	}
	if c.Publish.OS == "" {
		c.Publish.OS = "linux"
	}
	if c.Publish.Channel == "" {
		c.Publish.Channel = "stable"
	}
	if c.Publish.PagesBranch == "" {
		c.Publish.PagesBranch = "gh-pages"
	}
	if c.Publish.TokenEnv == "" {
		c.Publish.TokenEnv = "GH_TOKEN"
	}
	if c.Publish.DocsDir == "" {
		c.Publish.DocsDir = "doc"
	}
	if c.Run.Concurrency <= 0 {
		c.Run.Concurrency = 1
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "matrixci.events"
	}
	if c.Daemon.Interval == "" {
		c.Daemon.Interval = "1h"
	}
	if c.Daemon.MetricsAddr == "" {
		c.Daemon.MetricsAddr = ":9090"
	}
}
