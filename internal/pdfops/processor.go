package pdfops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/pdftoolbox/internal/filetype"
	"github.com/local/pdftoolbox/internal/imagerender"
	"github.com/local/pdftoolbox/internal/metrics"
	"github.com/local/pdftoolbox/internal/pagerange"
	"github.com/local/pdftoolbox/internal/scope"
	"github.com/local/pdftoolbox/internal/textextract"
)

// Output file names handed back to clients.
const (
	SplitArchiveName = "split_pdfs.zip"
	ExtractedName    = "extracted_pages.pdf"
	MergedName       = "merged.pdf"
	ImageArchiveName = "extracted_images.zip"
	defaultThumbnail = 200
)

// SplitMode selects which pages Split emits.
type SplitMode string

const (
	SplitSingle SplitMode = "single"
	SplitOdd    SplitMode = "odd"
	SplitEven   SplitMode = "even"
)

// ParseSplitMode maps form values onto a SplitMode; empty means single.
func ParseSplitMode(s string) (SplitMode, error) {
	switch SplitMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SplitSingle:
		return SplitSingle, nil
	case SplitOdd:
		return SplitOdd, nil
	case SplitEven:
		return SplitEven, nil
	}
	return "", &InputError{Reason: fmt.Sprintf("unknown split mode %q", s)}
}

// includes reports whether the 1-based page belongs to this mode.
func (m SplitMode) includes(page int) bool {
	switch m {
	case SplitOdd:
		return page%2 == 1
	case SplitEven:
		return page%2 == 0
	}
	return true
}

func (m SplitMode) entryName(page int) string {
	if m == SplitSingle {
		return fmt.Sprintf("page_%d.pdf", page)
	}
	return fmt.Sprintf("page_%d_%s.pdf", page, m)
}

// NamedDocument is one uploaded file.
type NamedDocument struct {
	Name string
	Data []byte
}

// Output is a single produced document.
type Output struct {
	Name     string
	Data     []byte
	Pages    int
	Selected []int    // zero-based source indices, extract only
	Skipped  []string // merge only, one message per skipped document
}

// ImageResult carries the collected images and, when a selection was given,
// the archive of re-encoded images.
type ImageResult struct {
	Images  []ExtractedImage
	Archive *Archive
	Failed  []int // selected indices whose re-encode failed
}

// ImagePreview describes one collected image for a selection UI.
type ImagePreview struct {
	Index     int    `json:"index"`
	Page      int    `json:"page"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Size      int    `json:"size"`
	Thumbnail string `json:"thumbnail,omitempty"` // base64 PNG
}

// TextResult is the text rendering of one document.
type TextResult struct {
	Name  string
	Text  string
	Stats *textextract.Stats
}

// Config tunes a Processor.
type Config struct {
	TempDir       string
	JPEGQuality   int
	ThumbnailSize int
	// Text overrides the text backend; nil uses go-fitz and tabula.
	Text *textextract.Extractor
}

// Processor runs the PDF use cases. It holds no per-request state and is
// safe for concurrent use.
type Processor struct {
	tempDir   string
	thumbSize int
	detector  *filetype.Detector
	encoder   *imagerender.Encoder
	text      *textextract.Extractor
}

func NewProcessor(cfg Config) *Processor {
	p := &Processor{
		tempDir:   cfg.TempDir,
		thumbSize: cfg.ThumbnailSize,
		detector:  filetype.New(),
		encoder:   imagerender.NewEncoder(cfg.JPEGQuality),
		text:      cfg.Text,
	}
	if p.thumbSize <= 0 {
		p.thumbSize = defaultThumbnail
	}
	if p.text == nil {
		p.text = textextract.New()
	}
	return p
}

// Split emits one single-page document per selected page and zips them.
// A page that cannot be assembled is skipped.
func (p *Processor) Split(ctx context.Context, pdf []byte, mode SplitMode) (_ *Archive, err error) {
	l, done := p.track(ctx, "split", len(pdf))
	defer func() { done(err) }()

	sc, err := scope.New(p.tempDir, "split")
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	doc, err := p.openSource(sc, "", pdf)
	if err != nil {
		return nil, err
	}

	entries := make([]ArchiveEntry, 0, doc.PageCount())
	for idx := 0; idx < doc.PageCount(); idx++ {
		page := idx + 1
		if !mode.includes(page) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := Assemble(doc, []int{idx})
		if err != nil {
			l.Warn().Err(err).Int("page", page).Msg("skipping page that could not be split")
			metrics.IncSkipped("split", "assembly")
			continue
		}
		entries = append(entries, ArchiveEntry{Name: mode.entryName(page), Data: out})
	}

	data, names, err := BuildArchive(entries)
	if err != nil {
		return nil, err
	}
	metrics.AddPages("split", len(names))
	metrics.AddArchiveEntries("split", len(names))
	l.Info().Str("mode", string(mode)).Int("pages", doc.PageCount()).Int("entries", len(names)).Msg("split complete")

	return &Archive{Name: SplitArchiveName, Data: data, Entries: names}, nil
}

// ExtractPages builds one document from the pages named by expr.
func (p *Processor) ExtractPages(ctx context.Context, pdf []byte, expr string) (_ *Output, err error) {
	l, done := p.track(ctx, "extract_pages", len(pdf))
	defer func() { done(err) }()

	sc, err := scope.New(p.tempDir, "extract")
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	doc, err := p.openSource(sc, "", pdf)
	if err != nil {
		return nil, err
	}

	indices, err := pagerange.Parse(expr, doc.PageCount())
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, &InputError{Reason: fmt.Sprintf("no valid pages in %q (document has %d pages)", expr, doc.PageCount())}
	}

	data, err := Assemble(doc, indices)
	if err != nil {
		return nil, err
	}
	metrics.AddPages("extract_pages", len(indices))
	l.Info().Str("pages", pagerange.Format(indices)).Int("source_pages", doc.PageCount()).Msg("pages extracted")

	return &Output{Name: ExtractedName, Data: data, Pages: len(indices), Selected: indices}, nil
}

// Merge concatenates docs in order. Empty or unreadable documents are
// skipped and reported; at least one must survive.
func (p *Processor) Merge(ctx context.Context, docs []NamedDocument) (_ *Output, err error) {
	total := 0
	for _, d := range docs {
		total += len(d.Data)
	}
	l, done := p.track(ctx, "merge", total)
	defer func() { done(err) }()

	if len(docs) == 0 {
		return nil, &InputError{Reason: "no documents to merge"}
	}

	sc, err := scope.New(p.tempDir, "merge")
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	var (
		kept    []*SourceDocument
		skipped []string
		pages   int
	)
	for i, d := range docs {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("document %d", i+1)
		}
		doc, err := p.openSource(sc, name, d.Data)
		if err == nil && doc.PageCount() == 0 {
			err = &InputError{Name: name, Reason: "document has no pages"}
		}
		if err != nil {
			l.Warn().Err(err).Str("file", name).Msg("skipping document")
			metrics.IncSkipped("merge", "unreadable")
			skipped = append(skipped, err.Error())
			continue
		}
		kept = append(kept, doc)
		pages += doc.PageCount()
	}
	if len(kept) == 0 {
		return nil, &InputError{Reason: "none of the uploaded documents could be read"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	if len(kept) == 1 {
		all := make([]int, kept[0].PageCount())
		for i := range all {
			all[i] = i
		}
		data, err = Assemble(kept[0], all)
	} else {
		data, err = mergeDocuments(kept)
	}
	if err != nil {
		return nil, err
	}

	metrics.AddPages("merge", pages)
	l.Info().Int("documents", len(kept)).Int("skipped", len(skipped)).Int("pages", pages).Msg("merge complete")

	return &Output{Name: MergedName, Data: data, Pages: pages, Skipped: skipped}, nil
}

// ExtractImages collects every embedded image. When selected is non-empty
// those images are re-encoded to format and archived; indices past the end
// are ignored and images that fail to encode are listed in Failed.
func (p *Processor) ExtractImages(ctx context.Context, pdf []byte, selected []int, format imagerender.Format) (_ *ImageResult, err error) {
	l, done := p.track(ctx, "extract_images", len(pdf))
	defer func() { done(err) }()

	sc, err := scope.New(p.tempDir, "images")
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	doc, err := p.openSource(sc, "", pdf)
	if err != nil {
		return nil, err
	}
	images, err := CollectImages(doc)
	if err != nil {
		return nil, err
	}
	res := &ImageResult{Images: images}
	if len(selected) == 0 {
		l.Info().Int("images", len(images)).Msg("images collected")
		return res, nil
	}

	seen := make(map[int]struct{}, len(selected))
	entries := make([]ArchiveEntry, 0, len(selected))
	for _, idx := range selected {
		if idx < 0 || idx >= len(images) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := p.encoder.Encode(images[idx].Data, format)
		if err != nil {
			encErr := &EncodingError{Index: idx, Format: string(format), Err: err}
			l.Warn().Err(encErr).Msg("skipping image")
			metrics.IncSkipped("extract_images", "encoding")
			res.Failed = append(res.Failed, idx)
			continue
		}
		entries = append(entries, ArchiveEntry{
			Name: fmt.Sprintf("image_%d.%s", idx+1, format.Ext()),
			Data: data,
		})
	}
	if len(seen) == 0 {
		return nil, &InputError{Reason: fmt.Sprintf("none of the selected images exist (document has %d)", len(images))}
	}

	data, names, err := BuildArchive(entries)
	if err != nil {
		return nil, err
	}
	metrics.AddArchiveEntries("extract_images", len(names))
	l.Info().Int("images", len(images)).Int("archived", len(names)).Int("failed", len(res.Failed)).Str("format", string(format)).Msg("images archived")

	res.Archive = &Archive{Name: ImageArchiveName, Data: data, Entries: names}
	return res, nil
}

// PreviewImages collects images and renders a thumbnail for each. A failed
// thumbnail leaves the preview without one.
func (p *Processor) PreviewImages(ctx context.Context, pdf []byte) ([]ImagePreview, error) {
	res, err := p.ExtractImages(ctx, pdf, nil, imagerender.FormatPNG)
	if err != nil {
		return nil, err
	}
	previews := make([]ImagePreview, 0, len(res.Images))
	for _, img := range res.Images {
		pv := ImagePreview{
			Index:  img.Index,
			Page:   img.Page,
			Format: img.Format,
			Width:  img.Width,
			Height: img.Height,
			Size:   len(img.Data),
		}
		fillDimensions(&pv, img.Data)
		if thumb, err := imagerender.Thumbnail(img.Data, p.thumbSize); err == nil {
			pv.Thumbnail = imagerender.EncodeToBase64(thumb)
		} else {
			log.Debug().Err(err).Int("index", img.Index).Msg("no thumbnail for image")
		}
		previews = append(previews, pv)
	}
	return previews, nil
}

// fillDimensions decodes the image header when the PDF dictionary left the
// size out.
func fillDimensions(pv *ImagePreview, data []byte) {
	if pv.Width > 0 && pv.Height > 0 {
		return
	}
	w, h, err := imagerender.GetImageDimensions(data)
	if err != nil {
		log.Debug().Err(err).Int("index", pv.Index).Msg("image size unknown")
		return
	}
	pv.Width, pv.Height = w, h
}

// ExtractText renders every page as text with detected tables appended.
func (p *Processor) ExtractText(ctx context.Context, pdf []byte, name string, opts textextract.Options) (_ *TextResult, err error) {
	l, done := p.track(ctx, "extract_text", len(pdf))
	defer func() { done(err) }()

	if err := p.checkInput(name, pdf); err != nil {
		return nil, err
	}
	sc, err := scope.New(p.tempDir, "text")
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	path, err := sc.WriteFile("input.pdf", pdf)
	if err != nil {
		return nil, err
	}
	text, stats, err := p.text.Extract(path, opts)
	if err != nil {
		return nil, &InputError{Name: name, Reason: "unreadable PDF", Err: err}
	}

	l.Info().Int("pages", stats.TotalPages).Int("tables", stats.Tables).Int("chars", len(text)).Msg("text extracted")
	return &TextResult{Name: textextract.TextFileName(name), Text: text, Stats: stats}, nil
}

func (p *Processor) checkInput(name string, data []byte) error {
	if len(data) == 0 {
		return &InputError{Name: name, Reason: "empty document"}
	}
	if info := p.detector.Detect(data); !info.IsPDF {
		return &InputError{Name: name, Reason: fmt.Sprintf("not a PDF (detected %s)", info.MIMEType)}
	}
	return nil
}

// openSource validates data and opens it, tying the handle's lifetime to sc.
func (p *Processor) openSource(sc *scope.Scope, name string, data []byte) (*SourceDocument, error) {
	if err := p.checkInput(name, data); err != nil {
		return nil, err
	}
	doc, err := OpenDocument(data)
	if err != nil {
		return nil, &InputError{Name: name, Reason: "unreadable PDF", Err: err}
	}
	sc.Defer(doc.Close)
	return doc, nil
}

// track returns the request logger tagged with op and a func recording the
// outcome once the operation returns.
func (p *Processor) track(ctx context.Context, op string, size int) (zerolog.Logger, func(error)) {
	l := *zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = log.Logger
	}
	l = l.With().Str("op", op).Logger()
	l.Debug().Int("bytes", size).Msg("operation started")

	start := time.Now()
	return l, func(err error) {
		dur := time.Since(start)
		metrics.ObserveOperation(op, err, dur)
		if err != nil {
			l.Warn().Err(err).Dur("took", dur).Msg("operation failed")
			return
		}
		l.Debug().Dur("took", dur).Msg("operation finished")
	}
}
