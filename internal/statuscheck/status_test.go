package statuscheck

import (
	"os"
	"path/filepath"
	"testing"
)

type fakeSlots struct{ used, cap int }

func (f fakeSlots) InUse() int    { return f.used }
func (f fakeSlots) Capacity() int { return f.cap }

func TestSummaryHealthy(t *testing.T) {
	dir := t.TempDir()
	s := New(Options{TempDir: dir, Slots: fakeSlots{1, 4}}).Summary()
	if !s.Healthy() {
		t.Fatalf("summary = %+v", s)
	}
	if s.PDF.Message != "Available" || s.Text.Message != "Available" {
		t.Fatalf("engines = %+v / %+v", s.PDF, s.Text)
	}
	if s.Slots.Message != "1/4 in use" {
		t.Fatalf("slots = %q", s.Slots.Message)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("probe file left behind: %v", entries)
	}
}

func TestSummaryMissingTempDir(t *testing.T) {
	s := New(Options{TempDir: filepath.Join(t.TempDir(), "gone"), Slots: fakeSlots{0, 1}}).Summary()
	if s.TempDir.OK || s.Healthy() {
		t.Fatalf("summary = %+v", s)
	}
	if New(Options{}).Summary().Slots.OK {
		t.Fatal("nil limiter reported OK")
	}
}

func TestSummaryBrokenEngines(t *testing.T) {
	c := New(Options{TempDir: t.TempDir(), Slots: fakeSlots{0, 1}})
	c.sample = []byte("%PDF-1.4\nnot really a document")
	s := c.Summary()
	if s.PDF.OK || s.Text.OK {
		t.Fatalf("engines reported OK on a corrupt sample: %+v / %+v", s.PDF, s.Text)
	}
	if s.Healthy() {
		t.Fatal("summary healthy with broken engines")
	}
	if !s.TempDir.OK || !s.Slots.OK {
		t.Fatalf("unrelated checks failed: %+v", s)
	}
}
