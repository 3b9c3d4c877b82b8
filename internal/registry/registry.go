package registry

import (
	"fmt"

	"github.com/drewdunne/prmirror/internal/config"
	"github.com/drewdunne/prmirror/internal/provider"
	"github.com/drewdunne/prmirror/internal/provider/github"
	"github.com/drewdunne/prmirror/internal/provider/gitlab"
)

// New returns the provider named in cfg, configured with its token, base URL
// and retry policy. Upstream and downstream share the returned client.
func New(cfg *config.Config) (provider.Provider, error) {
	retry := provider.DefaultRetryConfig()
	retry.MaxRetries = cfg.API.MaxRetries

	switch cfg.Provider {
	case config.ProviderGitHub:
		opts := []github.Option{github.WithRetry(retry)}
		if cfg.API.BaseURL != "" {
			opts = append(opts, github.WithBaseURL(cfg.API.BaseURL))
		}
		return github.New(cfg.Token, opts...), nil

	case config.ProviderGitLab:
		opts := []gitlab.Option{gitlab.WithRetry(retry)}
		if cfg.API.BaseURL != "" {
			opts = append(opts, gitlab.WithBaseURL(cfg.API.BaseURL))
		}
		return gitlab.New(cfg.Token, opts...), nil
	}

	return nil, fmt.Errorf("%w: unknown provider %q", config.ErrConfiguration, cfg.Provider)
}
