package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "MAX_UPLOAD_MB", "JPEG_QUALITY", "TEMP_MAX_AGE", "AXIOM_DATASET", "FAIL_FAST_WHEN_BUSY"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes() != 200<<20 {
		t.Errorf("max upload = %d", cfg.Server.MaxUploadBytes())
	}
	if cfg.Processing.JPEGQuality != 90 || cfg.Processing.TempMaxAge != time.Hour {
		t.Errorf("processing = %+v", cfg.Processing)
	}
	if cfg.Server.FailFast {
		t.Error("fail fast on by default")
	}
	if cfg.Axiom.Dataset != "dev_pdftoolbox" {
		t.Errorf("dataset = %q", cfg.Axiom.Dataset)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_CONCURRENT_OPS", "7")
	t.Setenv("JPEG_QUALITY", "250")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("MAX_MERGE_FILES", "not-a-number")
	t.Setenv("FAIL_FAST_WHEN_BUSY", "true")

	cfg := FromEnv()
	if cfg.Server.Port != "9000" || cfg.Processing.MaxConcurrent != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Processing.JPEGQuality != 90 {
		t.Errorf("out of range quality kept: %d", cfg.Processing.JPEGQuality)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("shutdown = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxMergeFiles != 50 {
		t.Errorf("bad int not defaulted: %d", cfg.Server.MaxMergeFiles)
	}
	if !cfg.Server.FailFast {
		t.Error("fail fast not enabled")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PDFTOOLBOX_TEST_KEY=from-file\nPORT=1111\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "2222")
	t.Setenv("PDFTOOLBOX_TEST_KEY", "")
	os.Unsetenv("PDFTOOLBOX_TEST_KEY")

	if err := LoadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("PDFTOOLBOX_TEST_KEY"); got != "from-file" {
		t.Errorf("key = %q", got)
	}
	if got := os.Getenv("PORT"); got != "2222" {
		t.Errorf("existing PORT overridden: %q", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file: %v", err)
	}
}
