package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig holds HTTP listener settings and upload limits.
type ServerConfig struct {
	Port            string
	MaxUploadMB     int
	MaxMergeFiles   int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// FailFast answers 503 when all processing slots are busy instead of
	// queueing the request.
	FailFast bool
	// Username and Password enable basic auth on the UI and API when both are set.
	Username string
	Password string
}

// ProcessingConfig tunes the PDF operations.
type ProcessingConfig struct {
	MaxConcurrent int
	JPEGQuality   int
	ThumbnailSize int
	TempDir       string
	TempMaxAge    time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging    LoggingConfig
	Axiom      AxiomConfig
	Server     ServerConfig
	Processing ProcessingConfig
}

// LoadDotEnv reads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdftoolbox.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdftoolbox",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		MaxUploadMB:     parseInt(getEnv("MAX_UPLOAD_MB", "200"), 200),
		MaxMergeFiles:   parseInt(getEnv("MAX_MERGE_FILES", "50"), 50),
		ReadTimeout:     parseDuration(getEnv("READ_TIMEOUT", "2m"), 2*time.Minute),
		WriteTimeout:    parseDuration(getEnv("WRITE_TIMEOUT", "5m"), 5*time.Minute),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		FailFast:        parseBool(getEnv("FAIL_FAST_WHEN_BUSY", "0")),
		Username:        getEnv("WEB_USERNAME", ""),
		Password:        getEnv("WEB_PASSWORD", ""),
	}

	cfg.Processing = ProcessingConfig{
		MaxConcurrent: parseInt(getEnv("MAX_CONCURRENT_OPS", "4"), 4),
		JPEGQuality:   parseInt(getEnv("JPEG_QUALITY", "90"), 90),
		ThumbnailSize: parseInt(getEnv("THUMBNAIL_SIZE", "200"), 200),
		TempDir:       getEnv("TEMP_DIR", os.TempDir()),
		TempMaxAge:    parseDuration(getEnv("TEMP_MAX_AGE", "1h"), time.Hour),
	}
	if cfg.Processing.JPEGQuality < 1 || cfg.Processing.JPEGQuality > 100 {
		cfg.Processing.JPEGQuality = 90
	}

	return cfg
}

// MaxUploadBytes is the request body cap derived from MaxUploadMB.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
