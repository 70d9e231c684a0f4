package statuscheck

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// SlotReporter models the limiter occupancy we report.
type SlotReporter interface {
	InUse() int
	Capacity() int
}

// Checker aggregates readiness checks shown on /status.
type Checker struct {
	tempDir string
	slots   SlotReporter
	started time.Time
	sample  []byte
}

// Options configures the Checker.
type Options struct {
	TempDir string
	Slots   SlotReporter
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	PDF     Status `json:"pdf_engine"`
	Text    Status `json:"text_engine"`
	TempDir Status `json:"temp_dir"`
	Slots   Status `json:"slots"`
	Uptime  string `json:"uptime"`
}

// Healthy reports whether every subsystem is OK.
func (s Summary) Healthy() bool {
	return s.PDF.OK && s.Text.OK && s.TempDir.OK && s.Slots.OK
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	dir := opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	return &Checker{tempDir: dir, slots: opts.Slots, started: time.Now(), sample: samplePDF}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary() Summary {
	return Summary{
		PDF:     c.checkPDF(),
		Text:    c.checkText(),
		TempDir: c.checkTempDir(),
		Slots:   c.checkSlots(),
		Uptime:  time.Since(c.started).Round(time.Second).String(),
	}
}

func (c *Checker) checkTempDir() Status {
	f, err := os.CreateTemp(c.tempDir, ".statuscheck-*")
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return Status{OK: true, Message: "Writable"}
}

// checkSlots is informational; a full limiter is busy, not broken.
func (c *Checker) checkSlots() Status {
	if c.slots == nil {
		return Status{OK: false, Message: "limiter unavailable"}
	}
	return Status{OK: true, Message: fmt.Sprintf("%d/%d in use", c.slots.InUse(), c.slots.Capacity())}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Op + ": " + pathErr.Err.Error()
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
