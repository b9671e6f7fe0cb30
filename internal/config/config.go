// Package config loads the releasetrack configuration.
//
// Settings come from an optional YAML file with environment variables layered
// on top. The Heroku dyno metadata values (release version, slug commit and
// description, created-at) are only ever set by the platform runtime, so they
// are read from the environment alone.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxBatchCount bounds batch operations so an accidental
	// full-table run cannot touch more records than this.
	DefaultMaxBatchCount = 100

	// DefaultDBPath is the sqlite database location when none is configured.
	DefaultDBPath = "./releases.db"
)

// HerokuConfig holds the platform API settings.
type HerokuConfig struct {
	APIToken string `yaml:"api_token"`
	AppName  string `yaml:"app_name"`
	AppID    string `yaml:"app_id"`
}

// Configured reports whether the values required for platform API calls
// are present.
func (c HerokuConfig) Configured() bool {
	return c.APIToken != "" && c.AppName != ""
}

// GitHubConfig holds the source-host API settings.
type GitHubConfig struct {
	APIToken string `yaml:"api_token"`
	UserName string `yaml:"user_name"`
	OrgName  string `yaml:"org_name"`
	RepoName string `yaml:"repo_name"`

	// SyncEnabled is a kill-switch for the push side. When false, push
	// operations fail fast without touching the GitHub API.
	SyncEnabled bool `yaml:"sync_enabled"`
}

// Configured reports whether all four values required for GitHub API calls
// are present.
func (c GitHubConfig) Configured() bool {
	return c.APIToken != "" && c.UserName != "" && c.OrgName != "" && c.RepoName != ""
}

// RuntimeMetadata holds the values the Heroku runtime injects into a dyno
// when the runtime-dyno-metadata labs feature is enabled. They describe the
// release currently running and drive self-registration at process start.
type RuntimeMetadata struct {
	ReleaseVersion   string // e.g. "v123"
	ReleaseCreatedAt string // RFC3339 timestamp
	SlugCommit       string // full commit hash
	SlugDescription  string // commit message / release description
}

// Complete reports whether every metadata value is present.
func (m RuntimeMetadata) Complete() bool {
	return m.ReleaseVersion != "" && m.ReleaseCreatedAt != "" &&
		m.SlugCommit != "" && m.SlugDescription != ""
}

// Config is the root configuration.
type Config struct {
	Heroku        HerokuConfig    `yaml:"heroku"`
	GitHub        GitHubConfig    `yaml:"github"`
	Runtime       RuntimeMetadata `yaml:"-"`
	DBPath        string          `yaml:"db_path"`
	MaxBatchCount int             `yaml:"max_batch_count"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		GitHub:        GitHubConfig{SyncEnabled: true},
		DBPath:        DefaultDBPath,
		MaxBatchCount: DefaultMaxBatchCount,
	}
}

// Load reads the YAML file at path (when path is non-empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the config. Environment
// values win over file values so deployed settings can be rotated without
// editing the file.
func (c *Config) ApplyEnv() {
	setIfPresent(&c.Heroku.APIToken, "HEROKU_API_TOKEN")
	setIfPresent(&c.Heroku.AppName, "HEROKU_APP_NAME")
	setIfPresent(&c.Heroku.AppID, "HEROKU_APP_ID")

	setIfPresent(&c.GitHub.APIToken, "GITHUB_API_TOKEN")
	setIfPresent(&c.GitHub.UserName, "GITHUB_USER_NAME")
	setIfPresent(&c.GitHub.OrgName, "GITHUB_ORG_NAME")
	setIfPresent(&c.GitHub.RepoName, "GITHUB_REPO_NAME")
	if v := os.Getenv("GITHUB_SYNC_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.GitHub.SyncEnabled = enabled
		}
	}

	setIfPresent(&c.Runtime.ReleaseVersion, "HEROKU_RELEASE_VERSION")
	setIfPresent(&c.Runtime.ReleaseCreatedAt, "HEROKU_RELEASE_CREATED_AT")
	setIfPresent(&c.Runtime.SlugCommit, "HEROKU_SLUG_COMMIT")
	setIfPresent(&c.Runtime.SlugDescription, "HEROKU_SLUG_DESCRIPTION")

	setIfPresent(&c.DBPath, "RELEASETRACK_DB_PATH")
}

// Validate checks structural settings. Credential presence is deliberately
// not validated here: the clients check their own credentials immediately
// before a network call, so read-only use (listing stored releases) works
// without any tokens configured.
func (c *Config) Validate() error {
	if c.MaxBatchCount <= 0 {
		return fmt.Errorf("max_batch_count must be a positive integer, got %d", c.MaxBatchCount)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	return nil
}

func setIfPresent(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
