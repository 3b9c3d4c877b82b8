package logging

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cleaner removes mirror logs older than a retention period. It only runs
// when an operator asks for it; nothing deletes logs automatically.
type Cleaner struct {
	baseDir       string
	retentionDays int
}

// NewCleaner creates a new Cleaner with the specified base directory and retention period.
func NewCleaner(baseDir string, retentionDays int) *Cleaner {
	return &Cleaner{baseDir: baseDir, retentionDays: retentionDays}
}

// Cleanup removes upstream-merge-*.log files older than the retention period.
// Other files are left alone. Returns the number of files deleted.
func (c *Cleaner) Cleanup() (int, error) {
	threshold := time.Now().AddDate(0, 0, -c.retentionDays)
	var deleted int

	err := filepath.WalkDir(c.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if d.IsDir() || !isMirrorLog(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if err := os.Remove(path); err == nil {
				deleted++
			}
		}
		return nil
	})

	return deleted, err
}

func isMirrorLog(name string) bool {
	return strings.HasPrefix(name, "upstream-merge-") && strings.HasSuffix(name, ".log")
}
