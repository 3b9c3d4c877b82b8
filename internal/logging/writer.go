package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Artifact is the captured output of one mirror attempt.
type Artifact struct {
	Number    uint64
	Stdout    string
	Stderr    string
	Timestamp time.Time
}

// Writer stores one log file per mirror attempt.
type Writer struct {
	baseDir string
}

// NewWriter creates a new Writer with the specified base directory.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Write creates the log file for an attempt and returns its path. The first
// attempt for a pull request is written to upstream-merge-<number>.log, later
// attempts get the attempt time appended. Existing files are never rewritten.
func (w *Writer) Write(a Artifact) (string, error) {
	if err := os.MkdirAll(w.baseDir, 0755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}

	content := fmt.Sprintf("stdout:\n%s\n\nstderr:\n%s", a.Stdout, a.Stderr)

	name := "upstream-merge-" + strconv.FormatUint(a.Number, 10)
	path := filepath.Join(w.baseDir, name+".log")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		path = filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.log", name, a.Timestamp.UTC().Format("2006-01-02T15-04-05.000000000")))
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	}
	if err != nil {
		return "", fmt.Errorf("creating log file: %w", err)
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return path, fmt.Errorf("writing log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("closing log file: %w", err)
	}

	return path, nil
}
