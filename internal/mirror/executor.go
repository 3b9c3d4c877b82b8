// Package mirror replays one upstream pull request into the local checkout
// by running the external merge script.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/drewdunne/prmirror/internal/provider"
)

// BranchPrefix is the merge script's naming convention for mirror branches.
const BranchPrefix = "upstream-merge-"

// BranchName returns the branch the merge script creates for a pull request.
func BranchName(number uint64) string {
	return BranchPrefix + strconv.FormatUint(number, 10)
}

// BranchChecker reports whether a local branch exists.
type BranchChecker interface {
	HasBranch(name string) (bool, error)
}

// Result is the outcome of one mirror attempt.
type Result struct {
	Number    uint64
	Title     string
	Branch    string
	Stdout    string
	Stderr    string
	ExitCode  int
	Success   bool
	StartedAt time.Time
	Duration  time.Duration
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Script  string        // merge script path
	RepoDir string        // working directory for the script
	Timeout time.Duration // 0 means no timeout
}

// Executor runs the merge script for one pull request at a time.
type Executor struct {
	cfg      ExecutorConfig
	runner   Runner
	branches BranchChecker
}

// Option configures the Executor.
type Option func(*Executor)

// WithBranchChecker makes a zero exit status count only when the mirror
// branch exists afterwards.
func WithBranchChecker(bc BranchChecker) Option {
	return func(e *Executor) {
		e.branches = bc
	}
}

// NewExecutor creates an executor using runner.
func NewExecutor(cfg ExecutorConfig, runner Runner, opts ...Option) *Executor {
	e := &Executor{cfg: cfg, runner: runner}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mirror runs the merge script with the pull request number and title.
// A failed merge is reported through Result.Success. The returned error is
// non-nil only when the script could not be run at all; Result is still
// filled in so the attempt can be logged.
func (e *Executor) Mirror(ctx context.Context, pr provider.PullRequest) (Result, error) {
	result := Result{
		Number:    pr.Number,
		Title:     pr.Title,
		Branch:    BranchName(pr.Number),
		StartedAt: time.Now(),
	}

	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	out, err := e.runner.Run(runCtx, Command{
		Path: e.cfg.Script,
		Args: []string{strconv.FormatUint(pr.Number, 10), pr.Title},
		Dir:  e.cfg.RepoDir,
	})
	result.Duration = time.Since(result.StartedAt)
	result.Stdout = string(out.Stdout)
	result.Stderr = string(out.Stderr)
	result.ExitCode = out.ExitCode

	if err != nil {
		result.ExitCode = -1
		result.Stderr = appendLine(result.Stderr, err.Error())
		return result, err
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.Stderr = appendLine(result.Stderr, fmt.Sprintf("merge script timed out after %s", e.cfg.Timeout))
		if result.ExitCode == 0 {
			result.ExitCode = -1
		}
		return result, nil
	}

	result.Success = result.ExitCode == 0

	if result.Success && e.branches != nil {
		ok, err := e.branches.HasBranch(result.Branch)
		switch {
		case err != nil:
			result.Success = false
			result.Stderr = appendLine(result.Stderr, fmt.Sprintf("checking branch %s: %v", result.Branch, err))
		case !ok:
			result.Success = false
			result.Stderr = appendLine(result.Stderr, fmt.Sprintf("merge script exited 0 but branch %s does not exist", result.Branch))
		}
	}

	return result, nil
}

func appendLine(s, line string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + line + "\n"
}
