package pdfops

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Assemble builds a new document holding one copy of each indexed page, in the
// order given. Duplicates and reordering are preserved.
func Assemble(doc *SourceDocument, indices []int) ([]byte, error) {
	if len(indices) == 0 {
		return nil, &AssemblyError{Index: -1, Err: fmt.Errorf("no pages selected")}
	}

	selected := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= doc.PageCount() {
			return nil, &AssemblyError{Index: idx, Pages: doc.PageCount()}
		}
		selected[i] = strconv.Itoa(idx + 1)
	}

	rs, err := doc.reader()
	if err != nil {
		return nil, &AssemblyError{Index: -1, Err: err}
	}

	var out bytes.Buffer
	if err := api.Collect(rs, &out, selected, newConfig()); err != nil {
		return nil, &AssemblyError{Index: -1, Err: err}
	}
	return out.Bytes(), nil
}

// mergeDocuments concatenates every page of docs in order.
func mergeDocuments(docs []*SourceDocument) ([]byte, error) {
	readers := make([]io.ReadSeeker, 0, len(docs))
	for _, d := range docs {
		rs, err := d.reader()
		if err != nil {
			return nil, &AssemblyError{Index: -1, Err: err}
		}
		readers = append(readers, rs)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, newConfig()); err != nil {
		return nil, &AssemblyError{Index: -1, Err: err}
	}
	return out.Bytes(), nil
}
