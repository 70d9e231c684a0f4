package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "pdftoolbox"

const (
	shipBuffer    = 1000
	shipBatch     = 200
	shipTimeout   = 15 * time.Second
	defaultFlush  = 10 * time.Second
	minShipLevel  = zerolog.InfoLevel
	fallbackLevel = zerolog.InfoLevel
)

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration

	// Console overrides stdout; used by tests.
	Console io.Writer
}

var (
	global  zerolog.Logger
	shipper *axiomShipper
)

// Init installs the process logger. Events go to stdout, to a rotated file
// when File is set, and to Axiom when SendToAxiom has a key.
func Init(opts Options) error {
	writers, err := localWriters(opts)
	if err != nil {
		return err
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		s, err := newAxiomShipper(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
		if err != nil {
			// local logging still works; say so once on stderr
			fmt.Fprintf(os.Stderr, "axiom shipping disabled: %v\n", err)
		} else {
			shipper = s
			writers = append(writers, &levelFilter{min: minShipLevel, sink: s})
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	global = zerolog.New(io.MultiWriter(writers...)).
		Level(parseLevel(opts.Level)).
		With().Timestamp().Str("service", serviceName).
		Logger()
	log.Logger = global
	// zerolog.Ctx falls back to this when a context carries no logger
	zerolog.DefaultContextLogger = &global
	return nil
}

func localWriters(opts Options) ([]io.Writer, error) {
	var writers []io.Writer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	if opts.Pretty {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}
	return append(writers, console), nil
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return fallbackLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return fallbackLevel
	}
	return lvl
}

// Close drains the Axiom shipper, if any.
func Close() {
	if shipper == nil {
		return
	}
	shipper.Close()
	if n := shipper.Dropped(); n > 0 {
		fmt.Fprintf(os.Stderr, "axiom shipping dropped %d events\n", n)
	}
	shipper = nil
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

type eventSink interface {
	Send(axiom.Event)
}

// levelFilter decodes zerolog JSON lines and forwards those at or above min.
type levelFilter struct {
	min  zerolog.Level
	sink eventSink
}

func (f *levelFilter) Write(p []byte) (int, error) {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{zerolog.MessageFieldName: string(p), zerolog.LevelFieldName: zerolog.InfoLevel.String()}
	}
	if s, ok := ev[zerolog.LevelFieldName].(string); ok {
		if lvl, err := zerolog.ParseLevel(s); err == nil && lvl < f.min {
			return len(p), nil
		}
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	f.sink.Send(axiom.Event(ev))
	return len(p), nil
}

// axiomShipper batches events and ingests them from one goroutine so a slow
// Axiom never blocks a request.
type axiomShipper struct {
	client  *axiom.Client
	dataset string
	events  chan axiom.Event
	dropped atomic.Int64
	done    chan struct{}
	wg      sync.WaitGroup
}

func newAxiomShipper(token, orgID, dataset string, every time.Duration) (*axiomShipper, error) {
	if dataset == "" {
		dataset = "dev_" + serviceName
	}
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	if every <= 0 {
		every = defaultFlush
	}
	s := &axiomShipper{
		client:  c,
		dataset: dataset,
		events:  make(chan axiom.Event, shipBuffer),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run(every)
	return s, nil
}

// Send queues ev, dropping it when the buffer is full.
func (s *axiomShipper) Send(ev axiom.Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *axiomShipper) Dropped() int64 { return s.dropped.Load() }

func (s *axiomShipper) run(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, shipBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
		if _, err := s.client.IngestEvents(ctx, s.dataset, batch); err != nil {
			s.dropped.Add(int64(len(batch)))
		}
		cancel()
		batch = batch[:0]
	}
	for {
		select {
		case <-s.done:
			// pick up whatever was queued before Close
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) >= shipBatch {
				flush()
			}
		}
	}
}

func (s *axiomShipper) Close() {
	close(s.done)
	s.wg.Wait()
}
