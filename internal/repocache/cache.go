// Package repocache manages the local checkout the merge script runs in.
package repocache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Checkout is a non-bare clone of the downstream repository.
type Checkout struct {
	dir      string
	username string
	password string
}

// New returns a checkout rooted at dir. Credentials are used for cloning over HTTPS.
func New(dir, username, password string) *Checkout {
	return &Checkout{dir: dir, username: username, password: password}
}

// Dir returns the checkout path.
func (c *Checkout) Dir() string {
	return c.dir
}

// Exists reports whether dir already holds a git repository.
func (c *Checkout) Exists() bool {
	_, err := git.PlainOpen(c.dir)
	return err == nil
}

// Ensure clones cloneURL into dir unless a repository is already there.
func (c *Checkout) Ensure(ctx context.Context, cloneURL string) error {
	if c.Exists() {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.dir), 0755); err != nil {
		return fmt.Errorf("creating checkout directory: %w", err)
	}

	opts := &git.CloneOptions{URL: cloneURL}
	if c.password != "" {
		opts.Auth = &githttp.BasicAuth{Username: c.username, Password: c.password}
	}

	if _, err := git.PlainCloneContext(ctx, c.dir, false, opts); err != nil {
		return fmt.Errorf("cloning repo: %w", err)
	}
	return nil
}

// HasBranch reports whether a local branch exists in the checkout.
func (c *Checkout) HasBranch(name string) (bool, error) {
	repo, err := git.PlainOpen(c.dir)
	if err != nil {
		return false, fmt.Errorf("opening checkout: %w", err)
	}

	_, err = repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolving branch %s: %w", name, err)
	}
	return true, nil
}
