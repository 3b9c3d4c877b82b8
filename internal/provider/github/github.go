package github

import (
	"context"
	"fmt"
	"iter"

	"github.com/drewdunne/prmirror/internal/provider"
	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

const defaultPerPage = 100

// GitHubProvider implements provider.Provider for GitHub.
type GitHubProvider struct {
	client  *github.Client
	token   string
	retry   provider.RetryConfig
	perPage int
}

// Ensure GitHubProvider implements provider.Provider.
var _ provider.Provider = (*GitHubProvider)(nil)

// Option configures the GitHub provider.
type Option func(*GitHubProvider)

// WithBaseURL sets a custom base URL (GitHub Enterprise, or tests).
func WithBaseURL(url string) Option {
	return func(p *GitHubProvider) {
		p.client.BaseURL, _ = p.client.BaseURL.Parse(url + "/")
	}
}

// WithRetry sets the retry policy for list requests.
func WithRetry(cfg provider.RetryConfig) Option {
	return func(p *GitHubProvider) {
		p.retry = cfg
	}
}

// WithPerPage sets the page size for list requests.
func WithPerPage(n int) Option {
	return func(p *GitHubProvider) {
		p.perPage = n
	}
}

// New creates a new GitHub provider.
func New(token string, opts ...Option) *GitHubProvider {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(context.Background(), ts))

	p := &GitHubProvider{
		client:  client,
		token:   token,
		retry:   provider.DefaultRetryConfig(),
		perPage: defaultPerPage,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the provider name.
func (p *GitHubProvider) Name() string {
	return "github"
}

// GetRepository fetches repository metadata.
func (p *GitHubProvider) GetRepository(ctx context.Context, owner, repo string) (*provider.Repository, error) {
	r, _, err := p.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching repository: %w", provider.ErrAPI, err)
	}

	return &provider.Repository{
		ID:            int(r.GetID()),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		CloneURL:      r.GetCloneURL(),
		SSHURL:        r.GetSSHURL(),
		DefaultBranch: r.GetDefaultBranch(),
	}, nil
}

// ListClosedPullRequests lists closed pull requests against base, newest first.
func (p *GitHubProvider) ListClosedPullRequests(ctx context.Context, owner, repo, base string) iter.Seq2[provider.PullRequest, error] {
	return func(yield func(provider.PullRequest, error) bool) {
		opts := &github.PullRequestListOptions{
			State:       "closed",
			Base:        base,
			Sort:        "created",
			Direction:   "desc",
			ListOptions: github.ListOptions{PerPage: p.perPage},
		}

		for {
			var (
				prs  []*github.PullRequest
				resp *github.Response
			)
			err := provider.WithRetry(ctx, p.retry, func() error {
				var err error
				prs, resp, err = p.client.PullRequests.List(ctx, owner, repo, opts)
				return err
			})
			if err != nil {
				yield(provider.PullRequest{}, fmt.Errorf("%w: listing pull requests (page %d): %w", provider.ErrAPI, opts.Page, err))
				return
			}

			for _, pr := range prs {
				if !yield(toPullRequest(pr), nil) {
					return
				}
			}

			if resp.NextPage == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}

// CreatePullRequest opens a pull request. It is never retried.
func (p *GitHubProvider) CreatePullRequest(ctx context.Context, owner, repo string, req provider.NewPullRequest) (*provider.PullRequest, error) {
	created, _, err := p.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.Head),
		Base:  github.String(req.Base),
		Body:  github.String(req.Body),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating pull request: %w", provider.ErrAPI, err)
	}

	pr := toPullRequest(created)
	return &pr, nil
}

// CloneCredentials returns HTTPS git credentials for the token.
// GitHub accepts any token as the password for the x-access-token user.
func (p *GitHubProvider) CloneCredentials() (string, string) {
	return "x-access-token", p.token
}

func toPullRequest(pr *github.PullRequest) provider.PullRequest {
	result := provider.PullRequest{
		Number:    uint64(pr.GetNumber()),
		Title:     provider.UnknownTitle,
		Body:      pr.GetBody(),
		URL:       pr.GetHTMLURL(),
		CreatedAt: pr.GetCreatedAt().Time,
	}
	if pr.Title != nil {
		result.Title = *pr.Title
	}
	if pr.MergedAt != nil {
		mergedAt := pr.MergedAt.Time
		result.MergedAt = &mergedAt
	}
	return result
}
