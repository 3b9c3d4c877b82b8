// Package syncer runs the polling loop that mirrors merged upstream pull
// requests downstream, oldest first, advancing the cursor after each one.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/drewdunne/prmirror/internal/config"
	"github.com/drewdunne/prmirror/internal/cursor"
	"github.com/drewdunne/prmirror/internal/logging"
	"github.com/drewdunne/prmirror/internal/metrics"
	"github.com/drewdunne/prmirror/internal/mirror"
	"github.com/drewdunne/prmirror/internal/provider"
)

// ErrMergeFailed is returned when the merge script fails for a pull request.
var ErrMergeFailed = errors.New("merge failed")

// CursorStore loads and durably advances the cursor.
type CursorStore interface {
	Load() (uint64, error)
	Advance(v uint64) error
}

// Mirrorer replays one pull request into the local checkout.
type Mirrorer interface {
	Mirror(ctx context.Context, pr provider.PullRequest) (mirror.Result, error)
}

// Publisher opens the downstream pull request for a mirrored branch.
type Publisher interface {
	Publish(ctx context.Context, pr provider.PullRequest, branch string) (uint64, error)
}

// LogWriter stores the output of a mirror attempt.
type LogWriter interface {
	Write(a logging.Artifact) (string, error)
}

// Config holds what the loop needs to know about the upstream repository.
type Config struct {
	Owner        string
	Repo         string
	TargetBranch string
	Interval     time.Duration
}

// CycleResult summarises one polling cycle.
type CycleResult struct {
	StartCursor uint64
	Cursor      uint64   // cursor at the end of the cycle
	Pending     int      // pull requests newer than the start cursor
	Skipped     []uint64 // closed without merging
	Mirrored    []uint64 // mirrored, published and recorded
	Halted      uint64   // pull request that stopped the cycle, 0 if none
}

// Syncer mirrors merged pull requests one at a time.
type Syncer struct {
	cfg       Config
	cursor    CursorStore
	lister    provider.Lister
	mirror    Mirrorer
	publisher Publisher
	logs      LogWriter
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures the Syncer.
type Option func(*Syncer)

// WithLogger sets the logger for progress output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = l
	}
}

// New creates a Syncer.
func New(cfg Config, store CursorStore, lister provider.Lister, m Mirrorer, p Publisher, logs LogWriter, opts ...Option) *Syncer {
	s := &Syncer{
		cfg:       cfg,
		cursor:    store,
		lister:    lister,
		mirror:    m,
		publisher: p,
		logs:      logs,
		logger:    slog.Default(),
		sleep:     sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsFatal reports whether err must stop the process rather than the cycle.
// Missing configuration and cursor storage failures are fatal; continuing
// after a failed cursor write would publish the same pull request again.
func IsFatal(err error) bool {
	return errors.Is(err, config.ErrConfiguration) || errors.Is(err, cursor.ErrStorage)
}

// Run repeats RunCycle, sleeping the configured interval between cycles,
// until ctx is cancelled or a fatal error occurs. Cancellation returns nil.
func (s *Syncer) Run(ctx context.Context) error {
	for {
		res, err := s.RunCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if IsFatal(err) {
			return err
		}
		if err != nil {
			s.logger.Warn("cycle ended early, retrying next cycle",
				"error", err, "cursor", res.Cursor, "halted_pr", res.Halted)
		}

		s.logger.Info("sleep", "interval", s.cfg.Interval)
		if err := s.sleep(ctx, s.cfg.Interval); err != nil {
			return nil
		}
	}
}

// RunCycle performs exactly one polling cycle: load the cursor, collect
// pull requests newer than it, and mirror the merged ones oldest first.
// The first failure ends the cycle. The cursor only moves after a pull
// request has been mirrored, published and the new value persisted.
func (s *Syncer) RunCycle(ctx context.Context) (CycleResult, error) {
	metrics.CycleRun()
	res, err := s.runCycle(ctx)
	if err != nil {
		metrics.CycleFailed()
	}
	return res, err
}

func (s *Syncer) runCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	s.logger.Info("start check")

	cur, err := s.cursor.Load()
	if err != nil {
		return res, fmt.Errorf("loading cursor: %w", err)
	}
	res.StartCursor, res.Cursor = cur, cur
	s.logger.Debug("last mirrored PR", "cursor", cur)

	pending, err := s.discover(ctx, cur)
	if err != nil {
		return res, err
	}
	res.Pending = len(pending)
	s.logger.Debug("found PRs pending mirror", "count", len(pending))

	// Oldest first
	slices.Reverse(pending)

	for _, pr := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		log := s.logger.With("pr", pr.Number)
		log.Debug("check PR", "url", pr.URL)

		if !pr.Merged() {
			log.Debug("PR not merged, skip")
			res.Skipped = append(res.Skipped, pr.Number)
			metrics.PRSkipped()
			continue
		}

		log.Info("mirroring PR", "title", pr.Title)

		result, runErr := s.mirror.Mirror(ctx, pr)
		s.writeLog(log, pr.Number, result)

		if runErr != nil || !result.Success {
			res.Halted = pr.Number
			metrics.MergeFailed()
			if runErr != nil {
				return res, fmt.Errorf("%w: PR #%d: %w", ErrMergeFailed, pr.Number, runErr)
			}
			return res, fmt.Errorf("%w: PR #%d: merge script exited with status %d", ErrMergeFailed, pr.Number, result.ExitCode)
		}

		log.Debug("create downstream PR", "branch", result.Branch)
		downstream, err := s.publisher.Publish(ctx, pr, result.Branch)
		if err != nil {
			res.Halted = pr.Number
			metrics.PublishFailed()
			return res, err
		}

		next := max(cur, pr.Number)
		if next != pr.Number {
			log.Warn("PR is older than the cursor, upstream listing out of order", "cursor", cur)
		}
		if err := s.cursor.Advance(next); err != nil {
			res.Halted = pr.Number
			return res, fmt.Errorf("recording PR #%d as mirrored (downstream PR #%d): %w", pr.Number, downstream, err)
		}
		cur = next
		res.Cursor = cur
		res.Mirrored = append(res.Mirrored, pr.Number)
		metrics.PRMirrored()

		log.Info("mirrored PR", "downstream_pr", downstream, "cursor", cur)
	}

	return res, nil
}

// discover collects pull requests newer than cur, newest first. Listing is
// sorted by creation time and numbers grow with creation time, so the first
// number at or below cur ends the scan.
func (s *Syncer) discover(ctx context.Context, cur uint64) ([]provider.PullRequest, error) {
	s.logger.Debug("collect PRs to process")

	var pending []provider.PullRequest
	for pr, err := range s.lister.ListClosedPullRequests(ctx, s.cfg.Owner, s.cfg.Repo, s.cfg.TargetBranch) {
		if err != nil {
			return nil, fmt.Errorf("listing upstream pull requests: %w", err)
		}
		if pr.Number <= cur {
			break
		}
		pending = append(pending, pr)
	}

	if len(pending) == 0 {
		s.logger.Debug("no PRs to mirror")
	}
	return pending, nil
}

func (s *Syncer) writeLog(log *slog.Logger, number uint64, result mirror.Result) {
	ts := result.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	path, err := s.logs.Write(logging.Artifact{
		Number:    number,
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
		Timestamp: ts,
	})
	if err != nil {
		log.Error("writing mirror log", "error", err)
		return
	}
	log.Debug("wrote mirror log", "path", path, "exit_code", result.ExitCode, "duration", result.Duration)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
