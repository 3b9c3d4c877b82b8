package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Command describes one invocation of the merge script.
type Command struct {
	Path string   // executable; relative paths resolve against Dir
	Args []string // pull request number, title
	Dir  string   // local checkout
}

// Output is what a finished command produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner runs a command to completion. A non-zero exit status is reported in
// Output.ExitCode, not as an error. An error means the command could not run.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands as local processes.
type ExecRunner struct{}

// Run starts cmd and waits for it to exit.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("running %s: %w", cmd.Path, err)
	}
	return out, nil
}
