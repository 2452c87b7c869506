package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadAPIDefaults(t *testing.T) {
	cfg, err := LoadAPIWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL":    "postgres://larder@localhost/larder",
		"JWT_SIGNING_KEY": "secret",
	}))
	if err != nil {
		t.Fatalf("LoadAPIWith() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.PhotoURLTTL != 15*time.Minute {
		t.Fatalf("PhotoURLTTL = %v", cfg.PhotoURLTTL)
	}
	if !cfg.AutoMigrate {
		t.Fatal("expected AutoMigrate to default to true")
	}
	if cfg.S3.Enabled() {
		t.Fatal("expected S3 to be disabled without an endpoint")
	}
	if cfg.S3.Region != "us-east-1" || !cfg.S3.ForcePathStyle {
		t.Fatalf("unexpected S3 defaults %+v", cfg.S3)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadAPIRequiresSigningKey(t *testing.T) {
	_, err := LoadAPIWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL": "postgres://larder@localhost/larder",
	}))
	if err == nil {
		t.Fatal("expected missing JWT_SIGNING_KEY to fail")
	}
}

func TestLoadAPIOverrides(t *testing.T) {
	cfg, err := LoadAPIWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL":          "postgres://larder@localhost/larder",
		"JWT_SIGNING_KEY":       "secret",
		"CORS_ALLOWED_ORIGINS":  "https://a.example,https://b.example",
		"RATE_LIMIT_PER_MINUTE": "30",
		"S3_ENDPOINT":           "minio:9000",
		"PHOTO_BUCKET":          "photos",
		"LOG_FORMAT":            "console",
	}))
	if err != nil {
		t.Fatalf("LoadAPIWith() error = %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.RateLimit != 30 {
		t.Fatalf("RateLimit = %d", cfg.RateLimit)
	}
	if !cfg.S3.Enabled() || cfg.PhotoBucket != "photos" {
		t.Fatalf("unexpected photo config %+v %q", cfg.S3, cfg.PhotoBucket)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("Logging.Format = %q", cfg.Logging.Format)
	}
}

func TestLoadAuditorDefaults(t *testing.T) {
	cfg, err := LoadAuditorWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"DATABASE_URL": "postgres://larder@localhost/larder",
	}))
	if err != nil {
		t.Fatalf("LoadAuditorWith() error = %v", err)
	}
	if cfg.NATSURL != "nats://127.0.0.1:4222" || cfg.Durable != "larder-auditor" {
		t.Fatalf("unexpected auditor config %+v", cfg)
	}
}

func TestLoadCLIAllowsEmptyEnvironment(t *testing.T) {
	cfg, err := LoadCLIWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"BACKUP_BUCKET": "larder-backups",
		"S3_ENDPOINT":   "http://127.0.0.1:9000",
	}))
	if err != nil {
		t.Fatalf("LoadCLIWith() error = %v", err)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.BackupBucket != "larder-backups" || !cfg.S3.Enabled() {
		t.Fatalf("unexpected backup settings %+v", cfg)
	}
}
