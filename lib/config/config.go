// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for depsync.
//
// Configuration is loaded from a single YAML file specified by:
//   - DEPSYNC_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when
// the environment matches.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for depsync.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Tracker configures the forge API client.
	Tracker TrackerConfig `yaml:"tracker"`

	// Repo identifies the repository whose items are reconciled.
	Repo RepoConfig `yaml:"repo"`

	// Reconcile tunes the scheduler.
	Reconcile ReconcileConfig `yaml:"reconcile"`

	// Artifacts configures the local artifact store.
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	Tracker   *TrackerConfig   `yaml:"tracker,omitempty"`
	Reconcile *ReconcileConfig `yaml:"reconcile,omitempty"`
	Artifacts *ArtifactsConfig `yaml:"artifacts,omitempty"`
}

// TrackerConfig configures the forge API client.
type TrackerConfig struct {
	// BaseURL is the API root. Default: https://api.github.com.
	// Must use HTTPS.
	BaseURL string `yaml:"base_url"`

	// TokenFile is the path to a file containing the access token.
	// The token never lives in the config file itself.
	TokenFile string `yaml:"token_file"`

	// RequestTimeout bounds each API call. Default: 30s.
	RequestTimeout string `yaml:"request_timeout"`

	// PerPage is the listing page size. Default: 100 (the API
	// maximum; the corpus scan wants few round trips).
	PerPage int `yaml:"per_page"`
}

// RepoConfig identifies the reconciled repository.
type RepoConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

// ReconcileConfig tunes the scheduler.
type ReconcileConfig struct {
	// SnapshotThreshold is the corpus size at which a full run
	// uploads a pre-pass snapshot. Default: 500.
	SnapshotThreshold int `yaml:"snapshot_threshold"`

	// CheckpointThreshold is the corpus size at which a full run
	// emits per-batch checkpoints. Default: 100.
	CheckpointThreshold int `yaml:"checkpoint_threshold"`

	// IncrementalBatchSize is the fixed batch size for incremental
	// and replay runs. Default: 10.
	IncrementalBatchSize int `yaml:"incremental_batch_size"`

	// Interval is the full re-scan period for watch mode.
	// Default: 15m.
	Interval string `yaml:"interval"`
}

// ArtifactsConfig configures the local artifact store.
type ArtifactsConfig struct {
	// Dir is the store root. Default: ${HOME}/.cache/depsync/artifacts.
	Dir string `yaml:"dir"`
}

// Default returns the default configuration. These defaults are a
// base for the loaded file, not a substitute for it: the config file
// is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Environment: Development,
		Tracker: TrackerConfig{
			BaseURL:        "https://api.github.com",
			RequestTimeout: "30s",
			PerPage:        100,
		},
		Reconcile: ReconcileConfig{
			SnapshotThreshold:    500,
			CheckpointThreshold:  100,
			IncrementalBatchSize: 10,
			Interval:             "15m",
		},
		Artifacts: ArtifactsConfig{
			Dir: filepath.Join(homeDir, ".cache", "depsync", "artifacts"),
		},
	}
}

// Load loads configuration from the DEPSYNC_CONFIG environment
// variable. There are no fallbacks: if DEPSYNC_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("DEPSYNC_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("DEPSYNC_CONFIG environment variable not set; " +
			"set it to the path of your depsync.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth; environment variables do not
// override values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration for the mistakes a
// mistyped file produces.
func (c *Config) Validate() error {
	if c.Repo.Owner == "" || c.Repo.Name == "" {
		return fmt.Errorf("repo.owner and repo.name are required")
	}
	if c.Tracker.TokenFile == "" {
		return fmt.Errorf("tracker.token_file is required")
	}
	if !strings.HasPrefix(c.Tracker.BaseURL, "https://") {
		return fmt.Errorf("tracker.base_url must use HTTPS (got %q)", c.Tracker.BaseURL)
	}
	if _, err := time.ParseDuration(c.Tracker.RequestTimeout); err != nil {
		return fmt.Errorf("tracker.request_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Reconcile.Interval); err != nil {
		return fmt.Errorf("reconcile.interval: %w", err)
	}
	if c.Reconcile.IncrementalBatchSize < 1 {
		return fmt.Errorf("reconcile.incremental_batch_size must be at least 1")
	}
	return nil
}

// Token reads the access token from the configured token file.
func (c *Config) Token() (string, error) {
	data, err := os.ReadFile(c.Tracker.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", c.Tracker.TokenFile)
	}
	return token, nil
}

// RequestTimeout returns the parsed per-call timeout. Call after
// Validate.
func (c *Config) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Tracker.RequestTimeout)
	return d
}

// Interval returns the parsed watch-mode period. Call after Validate.
func (c *Config) Interval() time.Duration {
	d, _ := time.ParseDuration(c.Reconcile.Interval)
	return d
}

// applyEnvironmentOverrides applies the section matching the
// configured environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Tracker != nil {
		if overrides.Tracker.BaseURL != "" {
			c.Tracker.BaseURL = overrides.Tracker.BaseURL
		}
		if overrides.Tracker.TokenFile != "" {
			c.Tracker.TokenFile = overrides.Tracker.TokenFile
		}
		if overrides.Tracker.RequestTimeout != "" {
			c.Tracker.RequestTimeout = overrides.Tracker.RequestTimeout
		}
		if overrides.Tracker.PerPage != 0 {
			c.Tracker.PerPage = overrides.Tracker.PerPage
		}
	}

	if overrides.Reconcile != nil {
		if overrides.Reconcile.SnapshotThreshold != 0 {
			c.Reconcile.SnapshotThreshold = overrides.Reconcile.SnapshotThreshold
		}
		if overrides.Reconcile.CheckpointThreshold != 0 {
			c.Reconcile.CheckpointThreshold = overrides.Reconcile.CheckpointThreshold
		}
		if overrides.Reconcile.IncrementalBatchSize != 0 {
			c.Reconcile.IncrementalBatchSize = overrides.Reconcile.IncrementalBatchSize
		}
		if overrides.Reconcile.Interval != "" {
			c.Reconcile.Interval = overrides.Reconcile.Interval
		}
	}

	if overrides.Artifacts != nil && overrides.Artifacts.Dir != "" {
		c.Artifacts.Dir = overrides.Artifacts.Dir
	}
}

// expandVariables expands ${HOME} and ${USER} in path fields.
func (c *Config) expandVariables() {
	expand := func(path string) string {
		return os.Expand(path, func(name string) string {
			switch name {
			case "HOME":
				home, _ := os.UserHomeDir()
				return home
			case "USER":
				return os.Getenv("USER")
			default:
				// Unknown variables are left as-is.
				return "${" + name + "}"
			}
		})
	}
	c.Artifacts.Dir = expand(c.Artifacts.Dir)
	c.Tracker.TokenFile = expand(c.Tracker.TokenFile)
}
