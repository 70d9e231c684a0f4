package scope

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestScopeCloseRemovesEverything(t *testing.T) {
	base := t.TempDir()
	s, err := New(base, "split")
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.WriteFile("../escape.pdf", []byte("data"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(p) != s.Dir() {
		t.Fatalf("file %s written outside scope %s", p, s.Dir())
	}

	var order []int
	s.Defer(func() error { order = append(order, 1); return nil })
	s.Defer(func() error { order = append(order, 2); return nil })

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(s.Dir()); !os.IsNotExist(err) {
		t.Fatalf("scope dir still present: %v", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("closers ran in order %v, want [2 1]", order)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := s.WriteFile("late.txt", nil); err == nil {
		t.Fatal("expected write after close to fail")
	}
}

func TestScopeCloseReportsCloserError(t *testing.T) {
	s, err := New(t.TempDir(), "merge")
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	s.Defer(func() error { return boom })
	if err := s.Close(); !errors.Is(err, boom) {
		t.Fatalf("close error = %v, want boom", err)
	}
	if _, err := os.Stat(s.Dir()); !os.IsNotExist(err) {
		t.Fatal("dir must be removed even when a closer fails")
	}
}

func TestCleanupStale(t *testing.T) {
	base := t.TempDir()
	old := filepath.Join(base, Prefix+"text-old")
	fresh := filepath.Join(base, Prefix+"text-fresh")
	foreign := filepath.Join(base, "other-old")
	for _, d := range []string{old, fresh, foreign} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	for _, d := range []string{old, foreign} {
		if err := os.Chtimes(d, past, past); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	if n := CleanupStale(base, time.Hour); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if c := strings.Count(buf.String(), "removed stale scope directories"); c != 1 {
		t.Fatalf("cleanup logged %d times: %s", c, buf.String())
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("stale scope dir not removed")
	}
	for _, d := range []string{fresh, foreign} {
		if _, err := os.Stat(d); err != nil {
			t.Fatalf("%s should survive: %v", d, err)
		}
	}
}
