package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks a missing or invalid setting. It is fatal at startup.
var ErrConfiguration = errors.New("configuration error")

// Config represents the mirror configuration.
type Config struct {
	Provider            string        `yaml:"provider"`
	Token               string        `yaml:"token"`
	Upstream            RepoConfig    `yaml:"upstream"`
	Downstream          RepoConfig    `yaml:"downstream"`
	TargetBranch        string        `yaml:"target_branch"`
	StartPRID           *uint64       `yaml:"start_pr_id"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	DataDir             string        `yaml:"data_dir"`
	API                 APIConfig     `yaml:"api"`
	Merge               MergeConfig   `yaml:"merge"`
	Logging             LoggingConfig `yaml:"logging"`
}

// RepoConfig identifies a repository on the provider.
type RepoConfig struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

// APIConfig holds provider API client settings.
type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	MaxRetries int    `yaml:"max_retries"`
}

// MergeConfig holds settings for the external merge script.
type MergeConfig struct {
	Script         string `yaml:"script"`
	Runner         string `yaml:"runner"` // exec or docker
	Image          string `yaml:"image"`  // docker runner only
	TimeoutMinutes int    `yaml:"timeout_minutes"`
	VerifyBranch   bool   `yaml:"verify_branch"`
	CloneIfMissing bool   `yaml:"clone_if_missing"`
}

// LoggingConfig holds logging settings. Dir holds the per-PR mirror logs;
// File is the optional rotated process log.
type LoggingConfig struct {
	Dir        string `yaml:"dir"`
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // auto, text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

const (
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"

	RunnerExec   = "exec"
	RunnerDocker = "docker"
)

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Provider:            ProviderGitHub,
		TargetBranch:        "master",
		PollIntervalSeconds: 60,
		DataDir:             "data",
		API: APIConfig{
			MaxRetries: 3,
		},
		Merge: MergeConfig{
			Script: "../../merge-upstream-pull-request.sh",
			Runner: RunnerExec,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Substitute environment variables
	data = envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the process environment.
// Empty variables leave the current value untouched.
func (c *Config) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("PRMIRROR_PROVIDER", &c.Provider)
	setString("BOT_TOKEN", &c.Token)
	setString("UPSTREAM_OWNER", &c.Upstream.Owner)
	setString("UPSTREAM_REPO", &c.Upstream.Repo)
	setString("DOWNSTREAM_OWNER", &c.Downstream.Owner)
	setString("DOWNSTREAM_REPO", &c.Downstream.Repo)
	setString("TARGET_BRANCH", &c.TargetBranch)
	setString("PRMIRROR_LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("START_PR_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: START_PR_ID %q is not a pull request number", ErrConfiguration, v)
		}
		c.StartPRID = &id
	}

	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: POLL_INTERVAL_SECONDS %q is not a number", ErrConfiguration, v)
		}
		c.PollIntervalSeconds = n
	}

	return nil
}

// Validate checks that every required setting is present.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("%w: token is required (BOT_TOKEN)", ErrConfiguration)
	}
	if c.Upstream.Owner == "" || c.Upstream.Repo == "" {
		return fmt.Errorf("%w: upstream owner and repo are required (UPSTREAM_OWNER, UPSTREAM_REPO)", ErrConfiguration)
	}
	if c.Downstream.Owner == "" || c.Downstream.Repo == "" {
		return fmt.Errorf("%w: downstream owner and repo are required (DOWNSTREAM_OWNER, DOWNSTREAM_REPO)", ErrConfiguration)
	}
	if c.TargetBranch == "" {
		return fmt.Errorf("%w: target_branch must not be empty", ErrConfiguration)
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: poll_interval_seconds must be positive, got %d", ErrConfiguration, c.PollIntervalSeconds)
	}

	switch c.Provider {
	case ProviderGitHub, ProviderGitLab:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrConfiguration, c.Provider)
	}

	switch c.Merge.Runner {
	case RunnerExec:
	case RunnerDocker:
		if c.Merge.Image == "" {
			return fmt.Errorf("%w: merge.image is required for the docker runner", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown merge runner %q", ErrConfiguration, c.Merge.Runner)
	}

	if c.Merge.Script == "" {
		return fmt.Errorf("%w: merge.script is required", ErrConfiguration)
	}

	switch c.Logging.Format {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("%w: unknown logging.format %q", ErrConfiguration, c.Logging.Format)
	}

	return nil
}

// PollInterval returns the delay between polling cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// MergeTimeout returns the per-attempt merge timeout, or 0 for none.
func (c *Config) MergeTimeout() time.Duration {
	return time.Duration(c.Merge.TimeoutMinutes) * time.Minute
}

// CursorPath is where the last mirrored pull request number is stored.
func (c *Config) CursorPath() string {
	return filepath.Join(c.DataDir, "last_pr_id")
}

// LogsDir is where mirror log artifacts are written.
func (c *Config) LogsDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return filepath.Join(c.DataDir, "logs")
}

// RepoDir is the local checkout the merge script runs in.
func (c *Config) RepoDir() string {
	return filepath.Join(c.DataDir, "repo")
}
