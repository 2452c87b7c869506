// Package config loads runtime configuration for the larder binaries from the environment.
package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Logging controls the zerolog output of a binary.
type Logging struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// S3 configures the object store used for ingredient photos and backups.
type S3 struct {
	Endpoint       string `env:"S3_ENDPOINT"`
	AccessKey      string `env:"S3_ACCESS_KEY"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Region         string `env:"S3_REGION,default=us-east-1"`
	DisableTLS     bool   `env:"S3_DISABLE_TLS,default=false"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE,default=true"`
}

// Enabled reports whether an endpoint has been configured.
func (s S3) Enabled() bool { return s.Endpoint != "" }

// API holds runtime configuration for the pantry HTTP service.
type API struct {
	Addr              string        `env:"ADDR,default=:8080"`
	DatabaseURL       string        `env:"DATABASE_URL,required"`
	NATSURL           string        `env:"NATS_URL"`
	JWTSigningKey     string        `env:"JWT_SIGNING_KEY,required"`
	JWTIssuer         string        `env:"JWT_ISSUER"`
	OTLPEndpoint      string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	RateLimit         int           `env:"RATE_LIMIT_PER_MINUTE,default=120"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
	AutoMigrate       bool          `env:"AUTO_MIGRATE,default=true"`
	ReferenceSeedFile string        `env:"REFERENCE_SEED_FILE"`
	PhotoBucket       string        `env:"PHOTO_BUCKET"`
	PhotoURLTTL       time.Duration `env:"PHOTO_URL_TTL,default=15m"`

	S3      S3
	Logging Logging
}

// Auditor holds runtime configuration for the lifecycle event auditor.
type Auditor struct {
	DatabaseURL  string `env:"DATABASE_URL,required"`
	NATSURL      string `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	Durable      string `env:"AUDITOR_DURABLE,default=larder-auditor"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Logging Logging
}

// CLI holds the settings larderctl reads from the environment. Nothing is required up front;
// each subcommand checks what it needs.
type CLI struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"JWT_ISSUER"`
	BackupBucket  string `env:"BACKUP_BUCKET"`

	S3 S3
}

// LoadAPI returns an API config populated from environment variables.
func LoadAPI(ctx context.Context) (API, error) {
	return LoadAPIWith(ctx, envconfig.OsLookuper())
}

// LoadAPIWith populates an API config from the provided lookuper.
func LoadAPIWith(ctx context.Context, l envconfig.Lookuper) (API, error) {
	var cfg API
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return API{}, err
	}
	return cfg, nil
}

// LoadAuditor returns an Auditor config populated from environment variables.
func LoadAuditor(ctx context.Context) (Auditor, error) {
	return LoadAuditorWith(ctx, envconfig.OsLookuper())
}

// LoadAuditorWith populates an Auditor config from the provided lookuper.
func LoadAuditorWith(ctx context.Context, l envconfig.Lookuper) (Auditor, error) {
	var cfg Auditor
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Auditor{}, err
	}
	return cfg, nil
}

// LoadCLI returns a CLI config populated from environment variables.
func LoadCLI(ctx context.Context) (CLI, error) {
	return LoadCLIWith(ctx, envconfig.OsLookuper())
}

// LoadCLIWith populates a CLI config from the provided lookuper.
func LoadCLIWith(ctx context.Context, l envconfig.Lookuper) (CLI, error) {
	var cfg CLI
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return CLI{}, err
	}
	return cfg, nil
}
