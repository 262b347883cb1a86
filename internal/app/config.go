package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rivergarden/training-portal/internal/clients/redis"
	"github.com/rivergarden/training-portal/internal/data/db"
	"github.com/rivergarden/training-portal/internal/observability"
	"github.com/rivergarden/training-portal/internal/platform/envutil"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

type OfflineStoreKind string

const (
	OfflineStoreSQLite   OfflineStoreKind = "sqlite"
	OfflineStorePostgres OfflineStoreKind = "postgres"
	OfflineStoreRedis    OfflineStoreKind = "redis"
	OfflineStoreMemory   OfflineStoreKind = "memory"
)

type Config struct {
	Port    string
	LogMode string

	PortalBaseURL string
	PortalTimeout time.Duration
	PortalRetries int
	// JWTSecret enables HS256 verification of caller tokens. Empty trusts the portal's signature.
	JWTSecret   string
	CORSOrigins []string

	OfflineStore OfflineStoreKind
	SQLitePath   string
	Postgres     db.PostgresOptions
	Redis        redis.Options

	ProbeTTL               time.Duration
	LiveRequiresAttendance bool
	AutoEnroll             bool
	SeekTolerancePercent   float64
	SeekAllowRewind        bool
	SessionIdleTTL         time.Duration
	SaveTimeout            time.Duration

	MetricsEnabled bool
	MetricsAddr    string

	Otel observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Could not read .env file", "error", err)
		}
	} else {
		log.Info("Loaded .env file")
	}

	return Config{
		Port:    envutil.String("PORT", "8080"),
		LogMode: envutil.String("LOG_MODE", "development"),

		PortalBaseURL: envutil.String("PORTAL_API_BASE_URL", "http://localhost:8000"),
		PortalTimeout: envutil.Duration("PORTAL_API_TIMEOUT", 15*time.Second),
		PortalRetries: envutil.Int("PORTAL_API_RETRIES", 2),
		JWTSecret:     envutil.String("PORTAL_JWT_SECRET", ""),
		CORSOrigins:   splitList(envutil.String("CORS_ORIGINS", "")),

		OfflineStore: OfflineStoreKind(strings.ToLower(envutil.String("OFFLINE_STORE", string(OfflineStoreSQLite)))),
		SQLitePath:   envutil.String("OFFLINE_SQLITE_PATH", "data/offline.db"),
		Postgres: db.PostgresOptions{
			Host:     envutil.String("POSTGRES_HOST", "localhost"),
			Port:     envutil.String("POSTGRES_PORT", "5432"),
			User:     envutil.String("POSTGRES_USER", "postgres"),
			Password: envutil.String("POSTGRES_PASSWORD", ""),
			Name:     envutil.String("POSTGRES_NAME", "training_portal"),
			SSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
		},
		Redis: redis.Options{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
			Prefix:   envutil.String("REDIS_PREFIX", "training-portal"),
		},

		ProbeTTL:               envutil.Duration("CONNECTIVITY_PROBE_TTL", 10*time.Second),
		LiveRequiresAttendance: envutil.Bool("LIVE_SESSION_REQUIRES_ATTENDANCE", true),
		AutoEnroll:             envutil.Bool("AUTO_ENROLL", true),
		SeekTolerancePercent:   envutil.Float("SEEK_TOLERANCE_PERCENT", 1),
		SeekAllowRewind:        envutil.Bool("SEEK_ALLOW_REWIND", false),
		SessionIdleTTL:         envutil.Duration("SESSION_IDLE_TTL", 30*time.Minute),
		SaveTimeout:            envutil.Duration("OFFLINE_SAVE_TIMEOUT", 20*time.Second),

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", false),
		MetricsAddr:    envutil.String("METRICS_ADDR", ":9090"),

		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "training-portal"),
			Environment: envutil.String("OTEL_ENVIRONMENT", envutil.String("LOG_MODE", "development")),
			Version:     envutil.String("OTEL_SERVICE_VERSION", ""),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 1),
		},
	}
}

// Validate fills defaults a zero Config would leave empty and rejects settings the app cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		c.Port = "8080"
	}
	if strings.TrimSpace(c.PortalBaseURL) == "" {
		return fmt.Errorf("PORTAL_API_BASE_URL is required")
	}
	if c.PortalRetries < 0 {
		c.PortalRetries = 0
	}
	if c.OfflineStore == "" {
		c.OfflineStore = OfflineStoreSQLite
	}
	switch c.OfflineStore {
	case OfflineStoreSQLite, OfflineStorePostgres, OfflineStoreMemory:
	case OfflineStoreRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("OFFLINE_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown OFFLINE_STORE %q", c.OfflineStore)
	}
	if c.SeekTolerancePercent < 0 || c.SeekTolerancePercent > 100 {
		return fmt.Errorf("SEEK_TOLERANCE_PERCENT must be within [0,100], got %v", c.SeekTolerancePercent)
	}
	if c.SessionIdleTTL < 0 {
		c.SessionIdleTTL = 0
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
