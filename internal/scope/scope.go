package scope

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Prefix marks directories created by New so CleanupStale only touches ours.
const Prefix = "pdftoolbox-"

// Scope owns the temporary resources of a single operation. Everything it
// hands out is released by Close, which is safe to call more than once.
type Scope struct {
	op  string
	dir string

	mu      sync.Mutex
	closers []func() error
	closed  bool
}

// New creates a scope with its own temp directory under base (os.TempDir when empty).
func New(base, op string) (*Scope, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create temp base: %w", err)
	}
	dir, err := os.MkdirTemp(base, Prefix+op+"-*")
	if err != nil {
		return nil, fmt.Errorf("create scope dir: %w", err)
	}
	return &Scope{op: op, dir: dir}, nil
}

// Dir returns the scope's private directory.
func (s *Scope) Dir() string { return s.dir }

// WriteFile stores data under the scope directory and returns its path.
func (s *Scope) WriteFile(name string, data []byte) (string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", fmt.Errorf("scope %s already closed", s.op)
	}
	p := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("write scoped file: %w", err)
	}
	return p, nil
}

// Defer registers fn to run on Close, in reverse registration order.
func (s *Scope) Defer(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Close runs registered closers and removes the directory.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := os.RemoveAll(s.dir); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		log.Warn().Err(firstErr).Str("op", s.op).Str("dir", s.dir).Msg("scope cleanup incomplete")
	}
	return firstErr
}

// CleanupStale removes scope directories under base older than maxAge. They
// only survive when a process dies mid-operation.
func CleanupStale(base string, maxAge time.Duration) int {
	if base == "" {
		base = os.TempDir()
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(base, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", base).Msg("removed stale scope directories")
	}
	return removed
}
