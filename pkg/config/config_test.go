package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
database:
  host: "localhost"
  port: 5432
  user: "postgres"
  password: "secret"
  database: "costume_portal"

rabbitmq:
  host: "localhost"
  port: 5672
  user: "guest"
  password: "guest"

delivery:
  max_attempts: 6
  base_backoff: 500ms
  provider_timeout: 10s

export:
  async_threshold: 100
  max_records: 1000
`

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	FilePath(path)
}

func TestParseYAMLAppliesDefaults(t *testing.T) {
	writeConfig(t, validYAML)

	cfg, err := ParseYAML()
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}

	if cfg.Delivery.MaxAttempts != 6 {
		t.Errorf("max_attempts = %d, want 6", cfg.Delivery.MaxAttempts)
	}
	if cfg.Delivery.BaseBackoff.Std() != 500*time.Millisecond {
		t.Errorf("base_backoff = %s, want 500ms", cfg.Delivery.BaseBackoff.Std())
	}
	if cfg.Delivery.MaxBackoff.Std() != 5*time.Minute {
		t.Errorf("default max_backoff = %s, want 5m", cfg.Delivery.MaxBackoff.Std())
	}
	if cfg.Delivery.Concurrency != 8 {
		t.Errorf("default concurrency = %d, want 8", cfg.Delivery.Concurrency)
	}
	if cfg.Export.ArtifactDir != "./exports" {
		t.Errorf("default artifact_dir = %q", cfg.Export.ArtifactDir)
	}
	if cfg.Export.ArtifactTTL.Std() != 72*time.Hour {
		t.Errorf("default artifact_ttl = %s, want 72h", cfg.Export.ArtifactTTL.Std())
	}
	if cfg.Database.SSLMode != "disable" {
		t.Errorf("default sslmode = %q", cfg.Database.SSLMode)
	}
}

func TestParseYAMLRejectsBadDuration(t *testing.T) {
	writeConfig(t, strings.Replace(validYAML, "500ms", "five seconds", 1))

	if _, err := ParseYAML(); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestParseYAMLRequiresDatabase(t *testing.T) {
	writeConfig(t, `
rabbitmq:
  host: "localhost"
  port: 5672
  user: "guest"
  password: "guest"
`)

	if _, err := ParseYAML(); err == nil {
		t.Fatal("expected error for missing database section")
	}
}

func TestParseYAMLRejectsThresholdAboveCap(t *testing.T) {
	writeConfig(t, strings.Replace(validYAML, "async_threshold: 100", "async_threshold: 5000", 1))

	if _, err := ParseYAML(); err == nil {
		t.Fatal("expected error when async_threshold exceeds max_records")
	}
}

func TestParseYAMLMissingFile(t *testing.T) {
	FilePath(filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := ParseYAML(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
