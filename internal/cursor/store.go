// Package cursor persists the number of the last mirrored upstream pull request.
package cursor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drewdunne/prmirror/internal/config"
	"github.com/natefinch/atomic"
)

var (
	// ErrNoSeed is returned by Load when nothing is persisted and no seed was supplied.
	ErrNoSeed = fmt.Errorf("%w: no saved cursor and no start pull request id (START_PR_ID)", config.ErrConfiguration)

	// ErrStorage wraps any failure to read or write the cursor file.
	ErrStorage = errors.New("cursor storage error")
)

// Store keeps the cursor in a single file holding a decimal number.
type Store struct {
	path string
	seed *uint64
}

// New creates a store backed by path. seed is used on first run only and may be nil.
func New(path string, seed *uint64) *Store {
	return &Store{path: path, seed: seed}
}

// Path returns the cursor file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted cursor. When none exists yet, the seed is
// persisted and returned.
func (s *Store) Load() (uint64, error) {
	data, err := os.ReadFile(s.path)
	if err == nil {
		v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: parsing %s: %v", ErrStorage, s.path, err)
		}
		return v, nil
	}
	if !os.IsNotExist(err) {
		return 0, fmt.Errorf("%w: reading %s: %v", ErrStorage, s.path, err)
	}

	if s.seed == nil {
		return 0, ErrNoSeed
	}

	if err := s.Advance(*s.seed); err != nil {
		return 0, err
	}
	return *s.seed, nil
}

// Advance durably replaces the stored cursor. The write goes to a temporary
// file that is renamed over the old one, so readers see either value in full.
func (s *Store) Advance(v uint64) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrStorage, filepath.Dir(s.path), err)
	}

	if err := atomic.WriteFile(s.path, strings.NewReader(strconv.FormatUint(v, 10))); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrStorage, s.path, err)
	}
	return nil
}
