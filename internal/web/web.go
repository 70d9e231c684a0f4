package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/local/pdftoolbox/internal/imagerender"
	"github.com/local/pdftoolbox/internal/limiter"
	"github.com/local/pdftoolbox/internal/metrics"
	"github.com/local/pdftoolbox/internal/pagerange"
	"github.com/local/pdftoolbox/internal/pdfops"
	"github.com/local/pdftoolbox/internal/statuscheck"
	"github.com/local/pdftoolbox/internal/textextract"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxImageSelection bounds how many image numbers one archive request may name.
const maxImageSelection = 10000

// Operations is the subset of pdfops.Processor the handlers call.
type Operations interface {
	Split(ctx context.Context, pdf []byte, mode pdfops.SplitMode) (*pdfops.Archive, error)
	ExtractPages(ctx context.Context, pdf []byte, expr string) (*pdfops.Output, error)
	Merge(ctx context.Context, docs []pdfops.NamedDocument) (*pdfops.Output, error)
	ExtractImages(ctx context.Context, pdf []byte, selected []int, format imagerender.Format) (*pdfops.ImageResult, error)
	PreviewImages(ctx context.Context, pdf []byte) ([]pdfops.ImagePreview, error)
	ExtractText(ctx context.Context, pdf []byte, name string, opts textextract.Options) (*pdfops.TextResult, error)
}

// Options configures the Web handlers.
type Options struct {
	Ops            Operations
	Slots          *limiter.Slots
	Status         *statuscheck.Checker
	MaxUploadBytes int64
	MaxMergeFiles  int
	// FailFast rejects work with 503 when every slot is taken instead of
	// queueing the request until one frees up.
	FailFast bool
	// Username and Password enable basic auth on every route except
	// /health and /metrics when both are set.
	Username string
	Password string
}

type Web struct {
	tpl       *template.Template
	ops       Operations
	slots     *limiter.Slots
	status    *statuscheck.Checker
	maxUpload int64
	maxMerge  int
	failFast  bool
	username  string
	password  string
}

func New(opts Options) *Web {
	tpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	w := &Web{
		tpl:       tpl,
		ops:       opts.Ops,
		slots:     opts.Slots,
		status:    opts.Status,
		maxUpload: opts.MaxUploadBytes,
		maxMerge:  opts.MaxMergeFiles,
		failFast:  opts.FailFast,
		username:  opts.Username,
		password:  opts.Password,
	}
	if w.slots == nil {
		w.slots = limiter.New(0)
	}
	if w.maxUpload <= 0 {
		w.maxUpload = 200 << 20
	}
	if w.maxMerge <= 0 {
		w.maxMerge = 50
	}
	return w
}

// Handler builds the router.
func (w *Web) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(requestID)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("took", d).
			Msg("request")
	}))

	r.Get("/health", func(wr http.ResponseWriter, _ *http.Request) {
		writeJSON(wr, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if w.username != "" && w.password != "" {
			r.Use(middleware.BasicAuth("pdftoolbox", map[string]string{w.username: w.password}))
		}
		r.Get("/", w.handleIndex)
		r.Get("/status", w.handleStatus)

		r.Route("/api", func(r chi.Router) {
			r.Use(w.limitBody)
			r.Post("/split", w.handleSplit)
			r.Post("/extract-pages", w.handleExtractPages)
			r.Post("/merge", w.handleMerge)
			r.Post("/images", w.handleImages)
			r.Post("/images/archive", w.handleImageArchive)
			r.Post("/text", w.handleText)
		})
	})
	return r
}

func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := w.tpl.ExecuteTemplate(wr, "index.html", map[string]any{
		"Title":         "PDF Toolbox",
		"MaxUploadMB":   w.maxUpload >> 20,
		"MaxMergeFiles": w.maxMerge,
		"SplitModes":    []pdfops.SplitMode{pdfops.SplitSingle, pdfops.SplitOdd, pdfops.SplitEven},
		"ImageFormats":  []imagerender.Format{imagerender.FormatPNG, imagerender.FormatJPEG, imagerender.FormatTIFF, imagerender.FormatBMP},
	})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render index")
	}
}

func (w *Web) handleStatus(wr http.ResponseWriter, _ *http.Request) {
	if w.status == nil {
		writeJSON(wr, http.StatusServiceUnavailable, map[string]any{"success": false, "message": "status checker not configured"})
		return
	}
	s := w.status.Summary()
	code := http.StatusOK
	if !s.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(wr, code, s)
}

func (w *Web) handleSplit(wr http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(r, "file")
	if err != nil {
		writeError(wr, r, err)
		return
	}
	mode, err := pdfops.ParseSplitMode(r.FormValue("mode"))
	if err != nil {
		writeError(wr, r, err)
		return
	}
	release, err := w.acquire(r.Context())
	if err != nil {
		writeError(wr, r, err)
		return
	}
	defer release()

	arc, err := w.ops.Split(r.Context(), data, mode)
	if err != nil {
		writeError(wr, r, err)
		return
	}
	wr.Header().Set("X-Archive-Entries", strconv.Itoa(len(arc.Entries)))
	sendFile(wr, arc.Name, "application/zip", arc.Data)
}

func (w *Web) handleExtractPages(wr http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(r, "file")
	if err != nil {
		writeError(wr, r, err)
		return
	}
	expr := strings.TrimSpace(r.FormValue("pages"))
	if expr == "" {
		writeError(wr, r, &pdfops.InputError{Reason: "no page range given"})
		return
	}
	release, err := w.acquire(r.Context())
	if err != nil {
		writeError(wr, r, err)
		return
	}
	defer release()

	out, err := w.ops.ExtractPages(r.Context(), data, expr)
	if err != nil {
		writeError(wr, r, err)
		return
	}
	wr.Header().Set("X-Selected-Pages", pagerange.Format(out.Selected))
	sendFile(wr, out.Name, "application/pdf", out.Data)
}

func (w *Web) handleMerge(wr http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(wr, r, uploadError(err))
		return
	}
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["files"]
	}
	if len(headers) == 0 {
		writeError(wr, r, &pdfops.InputError{Reason: "no files uploaded"})
		return
	}
	if len(headers) > w.maxMerge {
		writeError(wr, r, &pdfops.InputError{Reason: fmt.Sprintf("too many files: %d (limit %d)", len(headers), w.maxMerge)})
		return
	}

	docs := make([]pdfops.NamedDocument, 0, len(headers))
	for _, h := range headers {
		data, err := readFileHeader(h)
		if err != nil {
			writeError(wr, r, err)
			return
		}
		docs = append(docs, pdfops.NamedDocument{Name: h.Filename, Data: data})
	}

	release, err := w.acquire(r.Context())
	if err != nil {
		writeError(wr, r, err)
		return
	}
	defer release()

	out, err := w.ops.Merge(r.Context(), docs)
	if err != nil {
		writeError(wr, r, err)
		return
	}
	wr.Header().Set("X-Skipped-Documents", strconv.Itoa(len(out.Skipped)))
	sendFile(wr, out.Name, "application/pdf", out.Data)
}

func (w *Web) handleImages(wr http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(r, "file")
	if err != nil {
		writeError(wr, r, err)
		return
	}
	release, err := w.acquire(r.Context())
	if err != nil {
		writeError(wr, r, err)
		return
	}
	defer release()

	previews, err := w.ops.PreviewImages(r.Context(), data)
	if err != nil {
		writeError(wr, r, err)
		return
	}
	writeJSON(wr, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(previews),
		"images":  previews,
	})
}

func (w *Web) handleImageArchive(wr http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(r, "file")
	if err != nil {
		writeError(wr, r, err)
		return
	}
	format, err := imagerender.ParseFormat(r.FormValue("format"))
	if err != nil {
		writeError(wr, r, &pdfops.InputError{Reason: err.Error()})
		return
	}
	// image numbers are 1-based in the UI, like page numbers
	selected, err := pagerange.Parse(r.FormValue("indices"), maxImageSelection)
	if err != nil {
		writeError(wr, r, err)
		return
	}
	if len(selected) == 0 {
		writeError(wr, r, &pdfops.InputError{Reason: "no images selected"})
		return
	}

	release, err := w.acquire(r.Context())
	if err != nil {
		writeError(wr, r, err)
		return
	}
	defer release()

	res, err := w.ops.ExtractImages(r.Context(), data, selected, format)
	if err != nil {
		writeError(wr, r, err)
		return
	}
	if len(res.Failed) > 0 {
		failed := make([]string, len(res.Failed))
		for i, idx := range res.Failed {
			failed[i] = strconv.Itoa(idx + 1)
		}
		wr.Header().Set("X-Failed-Images", strings.Join(failed, ","))
	}
	sendFile(wr, res.Archive.Name, "application/zip", res.Archive.Data)
}

func (w *Web) handleText(wr http.ResponseWriter, r *http.Request) {
	data, name, err := readUpload(r, "file")
	if err != nil {
		writeError(wr, r, err)
		return
	}
	opts := textextract.Options{
		PageNumbers: formBool(r.FormValue("page_numbers")),
		SkipTables:  r.FormValue("tables") != "" && !formBool(r.FormValue("tables")),
	}

	release, err := w.acquire(r.Context())
	if err != nil {
		writeError(wr, r, err)
		return
	}
	defer release()

	res, err := w.ops.ExtractText(r.Context(), data, name, opts)
	if err != nil {
		writeError(wr, r, err)
		return
	}
	sendFile(wr, res.Name, "text/plain; charset=utf-8", []byte(res.Text))
}

// acquire reserves a processing slot, waiting for one unless failFast is set.
func (w *Web) acquire(ctx context.Context) (func(), error) {
	if w.failFast {
		return w.slots.TryAcquire()
	}
	return w.slots.Acquire(ctx)
}

// limitBody caps request bodies for upload routes.
func (w *Web) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(wr, r.Body, w.maxUpload)
		next.ServeHTTP(wr, r)
	})
}

// requestID tags the request logger with an id, reusing X-Request-ID when the
// client sent one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(wr http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		wr.Header().Set("X-Request-ID", id)
		l := zerolog.Ctx(r.Context()).With().Str("request_id", id).Logger()
		next.ServeHTTP(wr, r.WithContext(l.WithContext(r.Context())))
	})
}

func readUpload(r *http.Request, field string) ([]byte, string, error) {
	f, h, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", &pdfops.InputError{Reason: "no file uploaded"}
		}
		return nil, "", uploadError(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", uploadError(err)
	}
	return data, h.Filename, nil
}

func readFileHeader(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, uploadError(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, uploadError(err)
	}
	return data, nil
}

// tooLargeError marks an upload that exceeded the body limit.
type tooLargeError struct{ limit int64 }

func (e *tooLargeError) Error() string {
	return fmt.Sprintf("upload exceeds %d MB", e.limit>>20)
}

func uploadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return &tooLargeError{limit: mbe.Limit}
	}
	return &pdfops.InputError{Reason: "invalid upload", Err: err}
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		inputErr    *pdfops.InputError
		parseErr    *pagerange.ParseError
		archiveErr  *pdfops.ArchiveError
		assemblyErr *pdfops.AssemblyError
		collectErr  *pdfops.CollectionError
		tooLarge    *tooLargeError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &inputErr), errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &archiveErr), errors.As(err, &assemblyErr), errors.As(err, &collectErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, limiter.ErrBusy), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(wr http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	ev := hlog.FromRequest(r).Warn()
	if code >= 500 {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Int("status", code).Msg("request failed")

	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(wr, code, map[string]any{"success": false, "message": msg})
}

func writeJSON(wr http.ResponseWriter, code int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(code)
	_ = json.NewEncoder(wr).Encode(v)
}

func sendFile(wr http.ResponseWriter, name, contentType string, data []byte) {
	wr.Header().Set("Content-Type", contentType)
	wr.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	wr.Header().Set("Content-Length", strconv.Itoa(len(data)))
	wr.WriteHeader(http.StatusOK)
	_, _ = wr.Write(data)
}
