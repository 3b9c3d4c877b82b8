// Package publisher opens the downstream pull request for a mirrored branch.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/drewdunne/prmirror/internal/provider"
)

// ErrDownstream wraps any failure to create the downstream pull request.
var ErrDownstream = errors.New("downstream publish failed")

const (
	titlePrefix   = "[MIRROR] "
	bodySeparator = "\n--------------------\n"
)

// Title returns the downstream title for an upstream pull request.
func Title(pr provider.PullRequest) string {
	return titlePrefix + pr.Title
}

// Body returns the downstream body: the original link, a separator, then
// the original body.
func Body(pr provider.PullRequest) string {
	return "Original PR: " + pr.URL + bodySeparator + pr.Body
}

// Publisher creates pull requests in the downstream repository.
type Publisher struct {
	creator provider.Creator
	owner   string
	repo    string
	base    string
}

// New creates a publisher targeting owner/repo's base branch.
func New(creator provider.Creator, owner, repo, base string) *Publisher {
	return &Publisher{creator: creator, owner: owner, repo: repo, base: base}
}

// Publish opens a pull request from branch onto the target branch and returns
// the downstream pull request number. No check is made for an existing
// downstream pull request for the same upstream one.
func (p *Publisher) Publish(ctx context.Context, pr provider.PullRequest, branch string) (uint64, error) {
	created, err := p.creator.CreatePullRequest(ctx, p.owner, p.repo, provider.NewPullRequest{
		Title: Title(pr),
		Head:  branch,
		Base:  p.base,
		Body:  Body(pr),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s/%s %s: %w", ErrDownstream, p.owner, p.repo, branch, err)
	}
	return created.Number, nil
}
