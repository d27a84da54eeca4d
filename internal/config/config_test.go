package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pickup-games/internal/storage/sqlstore"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "test.db"))
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.LockBackend != LockMemory || cfg.ReservePolicy != "full_only" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LockTTL != 10*time.Second || cfg.NotifyQueueSize != 256 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StoreDriver != sqlstore.DriverSQLite || cfg.OTELSampleRatio != 1 || cfg.ServiceVersion != "dev" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadNormalisesDriverName(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORE_DRIVER", " SQLite ")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreDriver != sqlstore.DriverSQLite {
		t.Fatalf("driver = %q, want %q", cfg.StoreDriver, sqlstore.DriverSQLite)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9000")
	file := filepath.Join(t.TempDir(), ".env")
	content := "PORT=7000\nADMIN_EMAIL=boss@example.com\nCORS_ORIGINS=http://a.test,http://b.test\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("ADMIN_EMAIL")
		os.Unsetenv("CORS_ORIGINS")
	})

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Fatalf("process env should win, got port %q", cfg.Port)
	}
	if cfg.AdminEmail != "boss@example.com" {
		t.Fatalf("admin email = %q", cfg.AdminEmail)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("cors origins = %v", cfg.CORSOrigins)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"driver", "STORE_DRIVER", "mysql", "STORE_DRIVER"},
		{"postgres url", "STORE_DRIVER", "postgres", "DATABASE_URL"},
		{"lock backend", "LOCK_BACKEND", "etcd", "LOCK_BACKEND"},
		{"redis url", "LOCK_BACKEND", "redis", "REDIS_URL"},
		{"policy", "RESERVE_POLICY", "sometimes", "reserve policy"},
		{"queue", "NOTIFY_QUEUE_SIZE", "0", "NOTIFY_QUEUE_SIZE"},
		{"sample ratio", "OTEL_SAMPLE_RATIO", "1.5", "OTEL_SAMPLE_RATIO"},
		{"ttl", "LOCK_TTL", "soon", "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("DATABASE_URL", "")
			t.Setenv("REDIS_URL", "")
			t.Setenv(tt.key, tt.val)

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}
