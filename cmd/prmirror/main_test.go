package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/drewdunne/prmirror/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetAfter(t *testing.T, keys ...string) {
	t.Helper()
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})
}

func TestLoadConfig_EnvFileAndYAML(t *testing.T) {
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
upstream:
  owner: "upstream-org"
  repo: "project"
data_dir: "`+dir+`"
`), 0644))

	envFile := filepath.Join(dir, "prmirror.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"BOT_TOKEN=from-env-file\nDOWNSTREAM_OWNER=mirror-org\nDOWNSTREAM_REPO=project-mirror\nSTART_PR_ID=100\n"), 0644))
	unsetAfter(t, "BOT_TOKEN", "DOWNSTREAM_OWNER", "DOWNSTREAM_REPO", "START_PR_ID")

	cfg, err := loadConfig(configPath, envFile)
	require.NoError(t, err)

	assert.Equal(t, "from-env-file", cfg.Token)
	assert.Equal(t, config.RepoConfig{Owner: "upstream-org", Repo: "project"}, cfg.Upstream)
	assert.Equal(t, config.RepoConfig{Owner: "mirror-org", Repo: "project-mirror"}, cfg.Downstream)
	require.NotNil(t, cfg.StartPRID)
	assert.Equal(t, uint64(100), *cfg.StartPRID)
	assert.Equal(t, filepath.Join(dir, "last_pr_id"), cfg.CursorPath())
}

func TestLoadConfig_WithoutConfigFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("UPSTREAM_OWNER", "up")
	t.Setenv("UPSTREAM_REPO", "repo")
	t.Setenv("DOWNSTREAM_OWNER", "down")
	t.Setenv("DOWNSTREAM_REPO", "repo")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, "master", cfg.TargetBranch)
	assert.Equal(t, config.ProviderGitHub, cfg.Provider)
	assert.Nil(t, cfg.StartPRID)
}

func TestLoadConfig_MissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("UPSTREAM_OWNER", "up")
	t.Setenv("UPSTREAM_REPO", "repo")
	t.Setenv("DOWNSTREAM_OWNER", "down")
	t.Setenv("DOWNSTREAM_REPO", "repo")

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestLoadConfig_MissingEnvFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "/nonexistent/prmirror.env")
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("upstream: [unclosed"), 0644))

	_, err := loadConfig(configPath, "")
	assert.ErrorIs(t, err, config.ErrConfiguration)
}
