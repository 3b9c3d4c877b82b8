package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_ValidFile(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
provider: gitlab
token: "${PRMIRROR_TEST_TOKEN}"
upstream:
  owner: "upstream-org"
  repo: "project"
downstream:
  owner: "mirror-org"
  repo: "project-mirror"
target_branch: "main"
start_pr_id: 100
poll_interval_seconds: 30
data_dir: "/var/lib/prmirror"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	t.Setenv("PRMIRROR_TEST_TOKEN", "secret")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider != ProviderGitLab {
		t.Errorf("Provider = %q, want %q", cfg.Provider, ProviderGitLab)
	}
	if cfg.Token != "secret" {
		t.Errorf("Token = %q, want substituted env value", cfg.Token)
	}
	if cfg.Upstream.Owner != "upstream-org" || cfg.Upstream.Repo != "project" {
		t.Errorf("Upstream = %+v", cfg.Upstream)
	}
	if cfg.TargetBranch != "main" {
		t.Errorf("TargetBranch = %q, want %q", cfg.TargetBranch, "main")
	}
	if cfg.StartPRID == nil || *cfg.StartPRID != 100 {
		t.Errorf("StartPRID = %v, want 100", cfg.StartPRID)
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval() = %v, want 30s", cfg.PollInterval())
	}
	if cfg.CursorPath() != "/var/lib/prmirror/last_pr_id" {
		t.Errorf("CursorPath() = %q", cfg.CursorPath())
	}
	if cfg.LogsDir() != "/var/lib/prmirror/logs" {
		t.Errorf("LogsDir() = %q", cfg.LogsDir())
	}
	// Defaults survive a partial file
	if cfg.Merge.Runner != RunnerExec {
		t.Errorf("Merge.Runner = %q, want default %q", cfg.Merge.Runner, RunnerExec)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for nonexistent file, got nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TargetBranch != "master" {
		t.Errorf("TargetBranch = %q, want %q", cfg.TargetBranch, "master")
	}
	if cfg.PollInterval() != time.Minute {
		t.Errorf("PollInterval() = %v, want 1m", cfg.PollInterval())
	}
	if cfg.RepoDir() != filepath.Join("data", "repo") {
		t.Errorf("RepoDir() = %q", cfg.RepoDir())
	}
	if cfg.StartPRID != nil {
		t.Errorf("StartPRID = %v, want nil", *cfg.StartPRID)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("UPSTREAM_OWNER", "up")
	t.Setenv("UPSTREAM_REPO", "repo")
	t.Setenv("DOWNSTREAM_OWNER", "down")
	t.Setenv("DOWNSTREAM_REPO", "repo-mirror")
	t.Setenv("START_PR_ID", "42")
	t.Setenv("POLL_INTERVAL_SECONDS", "5")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Token != "env-token" {
		t.Errorf("Token = %q, want %q", cfg.Token, "env-token")
	}
	if cfg.Downstream.Repo != "repo-mirror" {
		t.Errorf("Downstream.Repo = %q, want %q", cfg.Downstream.Repo, "repo-mirror")
	}
	if cfg.StartPRID == nil || *cfg.StartPRID != 42 {
		t.Errorf("StartPRID = %v, want 42", cfg.StartPRID)
	}
	if cfg.PollIntervalSeconds != 5 {
		t.Errorf("PollIntervalSeconds = %d, want 5", cfg.PollIntervalSeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestApplyEnv_InvalidStartPRID(t *testing.T) {
	t.Setenv("START_PR_ID", "not-a-number")

	err := DefaultConfig().ApplyEnv()
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("ApplyEnv() error = %v, want ErrConfiguration", err)
	}
}

func TestValidate_MissingValues(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Token = "t"
		cfg.Upstream = RepoConfig{Owner: "a", Repo: "b"}
		cfg.Downstream = RepoConfig{Owner: "c", Repo: "d"}
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() on complete config error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Token = "" }},
		{"missing upstream repo", func(c *Config) { c.Upstream.Repo = "" }},
		{"missing downstream owner", func(c *Config) { c.Downstream.Owner = "" }},
		{"zero interval", func(c *Config) { c.PollIntervalSeconds = 0 }},
		{"unknown provider", func(c *Config) { c.Provider = "bitbucket" }},
		{"docker runner without image", func(c *Config) { c.Merge.Runner = RunnerDocker }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfiguration) {
				t.Errorf("Validate() error = %v, want ErrConfiguration", err)
			}
		})
	}
}
