package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"CONFIG_FILE", "SERVICE_NAME", "HTTP_PORT", "DATABASE_DRIVER", "POSTGRES_DSN", "SQLITE_PATH",
		"AUTO_MIGRATE", "ENABLE_CATALOG_CONSUMER", "EMBED_WORKER", "BROADCAST_BUFFER",
		"OUTBOX_BATCH_SIZE", "CAST_RETRY_LIMIT", "MANUAL_BALLOT_LIMIT", "OUTBOX_POLL_INTERVAL", "EVENT_DEDUP_TTL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DatabaseDriver != DriverPostgres || cfg.HTTPPort != "8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.CastRetryLimit != 3 || cfg.OutboxPollInterval != time.Second || !cfg.EmbedWorker {
		t.Fatalf("unexpected engine defaults %+v", cfg)
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quorum.yaml")
	contents := []byte(`service_name: quorum-test
http_port: "9090"
database:
  driver: sqlite
  sqlite_path: /tmp/quorum-test.db
  auto_migrate: false
outbox:
  poll_interval: 250ms
  batch_size: 25
engine:
  cast_retry_limit: 5
  manual_ballot_limit: 500
  event_dedup_ttl: 1h
  embed_worker: false
`)
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatalf("write config file failed: %v", err)
	}
	clearConfigEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ServiceName != "quorum-test" || cfg.DatabaseDriver != DriverSQLite || cfg.SQLitePath != "/tmp/quorum-test.db" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.HTTPPort != "7070" {
		t.Fatalf("expected environment to override file port, got %s", cfg.HTTPPort)
	}
	if cfg.AutoMigrate || cfg.EmbedWorker {
		t.Fatalf("expected file booleans to apply, got migrate=%v embed=%v", cfg.AutoMigrate, cfg.EmbedWorker)
	}
	if cfg.OutboxPollInterval != 250*time.Millisecond || cfg.OutboxBatchSize != 25 {
		t.Fatalf("unexpected outbox settings %+v", cfg)
	}
	if cfg.CastRetryLimit != 5 || cfg.ManualBallotLimit != 500 || cfg.EventDedupTTL != time.Hour {
		t.Fatalf("unexpected engine settings %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DATABASE_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unsupported driver error")
	}

	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("CAST_RETRY_LIMIT", "zero")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid retry limit error")
	}

	t.Setenv("CAST_RETRY_LIMIT", "")
	t.Setenv("OUTBOX_POLL_INTERVAL", "-1s")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid poll interval error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing config file error")
	}
}
