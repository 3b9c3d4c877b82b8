package provider

import (
	"context"
	"errors"
	"iter"
)

// ErrAPI wraps transport, authentication and rate-limit failures from the provider API.
var ErrAPI = errors.New("provider api error")

// Lister enumerates closed pull requests.
type Lister interface {
	// ListClosedPullRequests returns closed pull requests targeting base,
	// newest first. Pages are fetched lazily as the sequence is consumed and
	// every call starts again from the first page. A failure is yielded once
	// as a non-nil error wrapping ErrAPI, after which the sequence ends.
	ListClosedPullRequests(ctx context.Context, owner, repo, base string) iter.Seq2[PullRequest, error]
}

// Creator opens pull requests.
type Creator interface {
	// CreatePullRequest opens a pull request and returns it.
	CreatePullRequest(ctx context.Context, owner, repo string, req NewPullRequest) (*PullRequest, error)
}

// Provider defines the interface for git provider operations.
type Provider interface {
	Lister
	Creator

	// Name returns the provider name (github, gitlab).
	Name() string

	// GetRepository fetches repository metadata.
	GetRepository(ctx context.Context, owner, repo string) (*Repository, error)

	// CloneCredentials returns the username and password for HTTPS git access.
	CloneCredentials() (username, password string)
}
