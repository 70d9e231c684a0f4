package pdfops

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu otherwise creates ~/.config/pdfcpu on first use.
	api.DisableConfigDir()
}

// newConfig returns a fresh pdfcpu configuration per call; model.Configuration
// is mutated by the api functions and must not be shared between goroutines.
func newConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// SourceDocument is a read-only handle over one uploaded PDF. It is owned by
// the operation that opened it and must be closed when that operation ends.
type SourceDocument struct {
	mu     sync.Mutex
	data   []byte
	pages  int
	closed bool
}

// OpenDocument validates data as a PDF and reads its page count.
func OpenDocument(data []byte) (*SourceDocument, error) {
	if len(data) == 0 {
		return nil, &InputError{Reason: "empty document"}
	}
	n, err := api.PageCount(bytes.NewReader(data), newConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}
	return &SourceDocument{data: data, pages: n}, nil
}

func (d *SourceDocument) PageCount() int { return d.pages }

// reader returns an independent seeker over the document bytes.
func (d *SourceDocument) reader() (*bytes.Reader, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("document already closed")
	}
	return bytes.NewReader(d.data), nil
}

// Close drops the reference to the document bytes. Safe to call twice.
func (d *SourceDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.data = nil
	return nil
}
