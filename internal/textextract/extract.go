package textextract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Doc abstracts a PDF document for text extraction.
type Doc interface {
	NumPage() int
	Page(i int) (Page, error)
	Close() error
}

// Page abstracts a single PDF page for text extraction.
type Page interface {
	Text() (string, error)
	Close()
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// Table is a detected table as rows of cell text.
type Table [][]string

// TableFinder returns the tables found on each page, keyed by 0-based page index.
type TableFinder interface {
	FindTables(path string) (map[int][]Table, error)
}

// Options controls the text layout.
type Options struct {
	PageNumbers bool // prefix each page with "--- Page n ---"
	SkipTables  bool
}

// Stats summarises one extraction.
type Stats struct {
	TotalPages   int   `json:"total_pages"`
	TextPages    int   `json:"text_pages"`
	Tables       int   `json:"tables"`
	FailedPages  []int `json:"failed_pages,omitempty"`
	TablesFailed bool  `json:"tables_failed,omitempty"`
	DurationMs   int64 `json:"duration_ms"`
}

// Extractor turns a PDF on disk into plain text with tables appended per page.
type Extractor struct {
	opener Opener
	tables TableFinder
}

// New returns an Extractor backed by go-fitz for text and tabula for tables.
func New() *Extractor {
	return &Extractor{opener: fitzOpener{}, tables: tabulaFinder{}}
}

// NewWithBackends allows swapping the text and table backends.
func NewWithBackends(o Opener, t TableFinder) *Extractor {
	return &Extractor{opener: o, tables: t}
}

// Extract reads every page of the PDF at path.
func (e *Extractor) Extract(path string, opts Options) (string, *Stats, error) {
	if e.opener == nil {
		return "", nil, errors.New("no PDF opener configured")
	}

	start := time.Now()
	d, err := e.opener.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer d.Close()

	stats := &Stats{TotalPages: d.NumPage()}

	var tables map[int][]Table
	if !opts.SkipTables && e.tables != nil {
		tables, err = e.tables.FindTables(path)
		if err != nil {
			// text is still useful without tables
			log.Warn().Err(err).Str("pdf", path).Msg("table detection failed")
			stats.TablesFailed = true
			tables = nil
		}
	}

	var out strings.Builder
	for i := 0; i < stats.TotalPages; i++ {
		pageNum := i + 1

		text, err := pageText(d, i)
		if err != nil {
			log.Warn().Err(err).Int("page", pageNum).Msg("Failed to extract text from page")
			stats.FailedPages = append(stats.FailedPages, pageNum)
		}
		if strings.TrimSpace(text) != "" {
			if opts.PageNumbers {
				out.WriteString("--- Page " + strconv.Itoa(pageNum) + " ---\n")
			}
			out.WriteString(strings.TrimRight(text, " \t\r\n"))
			out.WriteString("\n\n")
			stats.TextPages++
		}

		for _, t := range tables[i] {
			writeTable(&out, pageNum, t)
			stats.Tables++
		}
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	log.Debug().
		Str("pdf", path).
		Int("pages", stats.TotalPages).
		Int("text_pages", stats.TextPages).
		Int("tables", stats.Tables).
		Int("chars", out.Len()).
		Msg("Extracted text from PDF")

	return out.String(), stats, nil
}

func pageText(d Doc, i int) (string, error) {
	p, err := d.Page(i)
	if err != nil {
		return "", err
	}
	defer p.Close()
	return p.Text()
}

func writeTable(b *strings.Builder, pageNum int, t Table) {
	b.WriteString("--- Table on Page " + strconv.Itoa(pageNum) + " ---\n")
	for _, row := range t {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// TextFileName swaps the extension of an uploaded file name for .txt.
func TextFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "document.txt"
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "document"
	}
	return stem + ".txt"
}
