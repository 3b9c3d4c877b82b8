package docker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/drewdunne/prmirror/internal/mirror"
)

const (
	workspaceDir = "/workspace"
	scriptTarget = "/usr/local/bin/merge-upstream-pull-request"
)

// containerAPI is the part of Client the runner needs.
type containerAPI interface {
	PullImage(ctx context.Context, imageName string) error
	CreateContainer(ctx context.Context, cfg ContainerConfig) (string, error)
	StartContainer(ctx context.Context, id string) error
	WaitContainer(ctx context.Context, id string) (int, error)
	ContainerOutput(ctx context.Context, id string) ([]byte, []byte, error)
	RemoveContainer(ctx context.Context, id string, force bool) error
}

// Runner runs the merge script inside a throwaway container. The checkout is
// bind-mounted at /workspace and the script at a fixed path.
type Runner struct {
	api   containerAPI
	image string
	env   []string
}

// Ensure Runner implements mirror.Runner.
var _ mirror.Runner = (*Runner)(nil)

// NewRunner creates a container runner using image.
func NewRunner(client *Client, image string, env []string) *Runner {
	return &Runner{api: client, image: image, env: env}
}

// Run executes cmd in a new container and removes it afterwards.
func (r *Runner) Run(ctx context.Context, cmd mirror.Command) (mirror.Output, error) {
	repoDir, err := filepath.Abs(cmd.Dir)
	if err != nil {
		return mirror.Output{}, fmt.Errorf("resolving checkout path: %w", err)
	}
	script := cmd.Path
	if !filepath.IsAbs(script) {
		script = filepath.Join(repoDir, script)
	}

	if err := r.api.PullImage(ctx, r.image); err != nil {
		return mirror.Output{}, fmt.Errorf("pulling %s: %w", r.image, err)
	}

	id, err := r.api.CreateContainer(ctx, ContainerConfig{
		Name:    fmt.Sprintf("prmirror-merge-%d", time.Now().UnixNano()),
		Image:   r.image,
		WorkDir: workspaceDir,
		Mounts: []Mount{
			{Source: repoDir, Target: workspaceDir},
			{Source: script, Target: scriptTarget, ReadOnly: true},
		},
		Env:    r.env,
		Labels: map[string]string{"prmirror.role": "merge"},
		Cmd:    append([]string{scriptTarget}, cmd.Args...),
	})
	if err != nil {
		return mirror.Output{}, err
	}
	defer func() {
		// The attempt context may already be cancelled.
		if err := r.api.RemoveContainer(context.Background(), id, true); err != nil {
			slog.Warn("removing merge container", "container", id, "error", err)
		}
	}()

	if err := r.api.StartContainer(ctx, id); err != nil {
		return mirror.Output{}, fmt.Errorf("starting container: %w", err)
	}

	code, err := r.api.WaitContainer(ctx, id)
	if err != nil {
		return mirror.Output{ExitCode: -1}, err
	}

	stdout, stderr, err := r.api.ContainerOutput(context.Background(), id)
	if err != nil {
		return mirror.Output{Stdout: stdout, Stderr: stderr, ExitCode: code}, err
	}

	return mirror.Output{Stdout: stdout, Stderr: stderr, ExitCode: code}, nil
}
