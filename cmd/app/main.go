package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pdftoolbox/internal/config"
	"github.com/local/pdftoolbox/internal/limiter"
	logpkg "github.com/local/pdftoolbox/internal/logger"
	"github.com/local/pdftoolbox/internal/metrics"
	"github.com/local/pdftoolbox/internal/pdfops"
	"github.com/local/pdftoolbox/internal/scope"
	"github.com/local/pdftoolbox/internal/statuscheck"
	web "github.com/local/pdftoolbox/internal/web"
)

func main() {
	if err := cfgpkg.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintf(os.Stderr, "ignoring env file: %v\n", err)
	}
	cfg := cfgpkg.FromEnv()

	// Init logging
	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	defer logpkg.Close()

	metrics.Init()

	// Scopes left behind by a crashed process
	scope.CleanupStale(cfg.Processing.TempDir, cfg.Processing.TempMaxAge)

	slots := limiter.New(cfg.Processing.MaxConcurrent)
	proc := pdfops.NewProcessor(pdfops.Config{
		TempDir:       cfg.Processing.TempDir,
		JPEGQuality:   cfg.Processing.JPEGQuality,
		ThumbnailSize: cfg.Processing.ThumbnailSize,
	})
	status := statuscheck.New(statuscheck.Options{TempDir: cfg.Processing.TempDir, Slots: slots})

	w := web.New(web.Options{
		Ops:            proc,
		Slots:          slots,
		Status:         status,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		MaxMergeFiles:  cfg.Server.MaxMergeFiles,
		FailFast:       cfg.Server.FailFast,
		Username:       cfg.Server.Username,
		Password:       cfg.Server.Password,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      w.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Int("max_concurrent", slots.Capacity()).
			Int("max_upload_mb", cfg.Server.MaxUploadMB).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
	log.Info().Msg("shutdown complete")
}
