// Package tempdir tracks scratch directories created during one
// pipeline invocation. Each run owns its own Set, and the run's
// deferred cleanup removes every registered directory. There is no
// process-wide registry, so concurrent runs cannot interfere with each
// other's staging areas.
package tempdir

import (
	"fmt"
	"os"
	"sync"

	"github.com/custodia-labs/ragdex/internal/logger"
)

// Set is a collection of scratch directories owned by one pipeline
// invocation. Safe for concurrent use by the loaders of that
// invocation.
type Set struct {
	mu   sync.Mutex
	dirs []string
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// New creates a fresh temporary directory, registers it, and returns
// its path.
func (s *Set) New(pattern string) (string, error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	s.mu.Lock()
	s.dirs = append(s.dirs, dir)
	s.mu.Unlock()

	return dir, nil
}

// Dirs returns the registered directories.
func (s *Set) Dirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dirs...)
}

// RemoveAll deletes every registered directory. Failures are logged
// and do not stop removal of the remaining directories.
func (s *Set) RemoveAll() {
	s.mu.Lock()
	dirs := s.dirs
	s.dirs = nil
	s.mu.Unlock()

	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("Failed to remove temp dir %s: %v", dir, err)
		}
	}
}
