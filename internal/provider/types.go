package provider

import "time"

// UnknownTitle is used when the API returns a pull request without a title.
const UnknownTitle = "Unknown"

// PullRequest represents a pull request/merge request.
type PullRequest struct {
	Number    uint64 // PR number (GitHub) or MR IID (GitLab)
	Title     string
	Body      string
	URL       string
	MergedAt  *time.Time // nil when closed without merging
	CreatedAt time.Time
}

// Merged reports whether the pull request was merged.
func (pr PullRequest) Merged() bool {
	return pr.MergedAt != nil
}

// NewPullRequest holds the fields needed to open a pull request.
type NewPullRequest struct {
	Title string
	Head  string // source branch
	Base  string // target branch
	Body  string
}

// Repository represents a git repository.
type Repository struct {
	ID            int
	Name          string
	FullName      string // owner/repo
	CloneURL      string
	SSHURL        string
	DefaultBranch string
}
