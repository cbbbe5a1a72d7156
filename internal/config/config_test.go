package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 80 {
		t.Fatalf("unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Stats.Schedule != "@every 1m" {
		t.Fatalf("unexpected stats schedule: %s", cfg.Stats.Schedule)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "spatial")
	t.Setenv("DB_USER", "svc")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port override ignored: %d", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Name != "spatial" {
		t.Fatalf("database overrides ignored: %+v", cfg.Database)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level override ignored: %s", cfg.Logging.Level)
	}

	dsn := cfg.Database.DSN()
	want := "host=db.internal port=5432 dbname=spatial user=svc password=secret sslmode=disable"
	if dsn != want {
		t.Fatalf("unexpected DSN:\n got %s\nwant %s", dsn, want)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}

func TestLoadFromFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  host: 127.0.0.1
  port: 9090
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s
  shutdown_period: 5s
stats:
  schedule: "@every 5m"
  enabled: false
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load from file: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("server overrides not applied: %+v", cfg.Server)
	}
	if cfg.Stats.Enabled || cfg.Stats.Schedule != "@every 5m" {
		t.Fatalf("stats overrides not applied: %+v", cfg.Stats)
	}
	// Sections absent from the file keep their environment defaults.
	if cfg.Database.Port != 5432 {
		t.Fatalf("database defaults lost: %+v", cfg.Database)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
