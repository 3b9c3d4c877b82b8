package gitlab

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/drewdunne/prmirror/internal/provider"
	"github.com/xanzy/go-gitlab"
)

const defaultPerPage = 100

// GitLabProvider implements provider.Provider for GitLab.
type GitLabProvider struct {
	client  *gitlab.Client
	token   string
	retry   provider.RetryConfig
	perPage int
}

// Ensure GitLabProvider implements provider.Provider.
var _ provider.Provider = (*GitLabProvider)(nil)

// Option configures the GitLab provider.
type Option func(*GitLabProvider)

// WithBaseURL sets a custom base URL (self-hosted instances, or tests).
func WithBaseURL(baseURL string) Option {
	return func(p *GitLabProvider) {
		p.client, _ = gitlab.NewClient(p.token, gitlab.WithBaseURL(baseURL+"/api/v4"))
	}
}

// WithRetry sets the retry policy for list requests.
func WithRetry(cfg provider.RetryConfig) Option {
	return func(p *GitLabProvider) {
		p.retry = cfg
	}
}

// WithPerPage sets the page size for list requests.
func WithPerPage(n int) Option {
	return func(p *GitLabProvider) {
		p.perPage = n
	}
}

// New creates a new GitLab provider.
func New(token string, opts ...Option) *GitLabProvider {
	client, _ := gitlab.NewClient(token)
	p := &GitLabProvider{
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
func (p *GitLabProvider) Name() string {
	return "gitlab"
}

// projectPath identifies owner/repo for the GitLab API. The client escapes it.
func projectPath(owner, repo string) string {
	return owner + "/" + repo
}

// GetRepository fetches repository metadata.
func (p *GitLabProvider) GetRepository(ctx context.Context, owner, repo string) (*provider.Repository, error) {
	project, _, err := p.client.Projects.GetProject(projectPath(owner, repo), nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: fetching project: %w", provider.ErrAPI, err)
	}

	return &provider.Repository{
		ID:            project.ID,
		Name:          project.Name,
		FullName:      project.PathWithNamespace,
		CloneURL:      project.HTTPURLToRepo,
		SSHURL:        project.SSHURLToRepo,
		DefaultBranch: project.DefaultBranch,
	}, nil
}

// ListClosedPullRequests lists merged and closed merge requests against base,
// newest first. Open and locked merge requests are not closed and are dropped.
func (p *GitLabProvider) ListClosedPullRequests(ctx context.Context, owner, repo, base string) iter.Seq2[provider.PullRequest, error] {
	return func(yield func(provider.PullRequest, error) bool) {
		opts := &gitlab.ListProjectMergeRequestsOptions{
			ListOptions:  gitlab.ListOptions{PerPage: p.perPage},
			State:        gitlab.Ptr("all"),
			OrderBy:      gitlab.Ptr("created_at"),
			Sort:         gitlab.Ptr("desc"),
			TargetBranch: gitlab.Ptr(base),
		}

		for {
			var (
				items []provider.PullRequest
				resp  *gitlab.Response
			)
			err := provider.WithRetry(ctx, p.retry, func() error {
				mrs, r, err := p.client.MergeRequests.ListProjectMergeRequests(projectPath(owner, repo), opts, gitlab.WithContext(ctx))
				if err != nil {
					return err
				}
				items = items[:0]
				for _, mr := range mrs {
					if mr.State != "merged" && mr.State != "closed" {
						continue
					}
					mergedAt := mr.MergedAt
					if mergedAt == nil && mr.State == "merged" {
						mergedAt = mr.UpdatedAt
					}
					items = append(items, toPullRequest(mr.IID, mr.Title, mr.Description, mr.WebURL, mergedAt, mr.CreatedAt))
				}
				resp = r
				return nil
			})
			if err != nil {
				yield(provider.PullRequest{}, fmt.Errorf("%w: listing merge requests (page %d): %w", provider.ErrAPI, opts.Page, err))
				return
			}

			for _, pr := range items {
				if !yield(pr, nil) {
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

// CreatePullRequest opens a merge request. It is never retried.
func (p *GitLabProvider) CreatePullRequest(ctx context.Context, owner, repo string, req provider.NewPullRequest) (*provider.PullRequest, error) {
	mr, _, err := p.client.MergeRequests.CreateMergeRequest(projectPath(owner, repo), &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(req.Title),
		Description:  gitlab.Ptr(req.Body),
		SourceBranch: gitlab.Ptr(req.Head),
		TargetBranch: gitlab.Ptr(req.Base),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: creating merge request: %w", provider.ErrAPI, err)
	}

	pr := toPullRequest(mr.IID, mr.Title, mr.Description, mr.WebURL, mr.MergedAt, mr.CreatedAt)
	return &pr, nil
}

// CloneCredentials returns HTTPS git credentials for the token.
func (p *GitLabProvider) CloneCredentials() (string, string) {
	return "oauth2", p.token
}

func toPullRequest(iid int, title, description, webURL string, mergedAt, createdAt *time.Time) provider.PullRequest {
	result := provider.PullRequest{
		Number:   uint64(iid),
		Title:    title,
		Body:     description,
		URL:      webURL,
		MergedAt: mergedAt,
	}
	if result.Title == "" {
		result.Title = provider.UnknownTitle
	}
	if createdAt != nil {
		result.CreatedAt = *createdAt
	}
	return result
}
