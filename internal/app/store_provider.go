package app

import (
	"errors"
	"fmt"

	"github.com/rivergarden/training-portal/internal/clients/redis"
	"github.com/rivergarden/training-portal/internal/data/db"
	"github.com/rivergarden/training-portal/internal/data/repos/offline"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

var (
	openDatabase    = db.Open
	newRedisOffline = redis.NewOfflineStore
)

type OfflineStoreBootstrapErrorCode string

const (
	OfflineStoreBootstrapErrorInvalidKind      OfflineStoreBootstrapErrorCode = "invalid_kind"
	OfflineStoreBootstrapErrorMissingRedisAddr OfflineStoreBootstrapErrorCode = "missing_redis_addr"
	OfflineStoreBootstrapErrorConnectFailed    OfflineStoreBootstrapErrorCode = "connect_failed"
)

type OfflineStoreBootstrapError struct {
	Code  OfflineStoreBootstrapErrorCode
	Kind  OfflineStoreKind
	Cause error
}

func (e *OfflineStoreBootstrapError) Error() string {
	if e == nil {
		return "offline store bootstrap failed"
	}
	return fmt.Sprintf("offline store bootstrap failed (code=%s kind=%q): %v", e.Code, e.Kind, e.Cause)
}

func (e *OfflineStoreBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveOfflineStore opens the backend that holds progress buffered while the portal is
// unreachable.
func resolveOfflineStore(log *logger.Logger, cfg Config) (offline.Store, error) {
	log.Info("Selecting offline store", "kind", cfg.OfflineStore)

	switch cfg.OfflineStore {
	case OfflineStoreMemory:
		log.Warn("Offline store is in-memory; buffered progress is lost on restart")
		return offline.NewMemoryStore(), nil
	case OfflineStoreSQLite, OfflineStorePostgres:
		opts := db.Options{Driver: db.DriverSQLite, SQLitePath: cfg.SQLitePath}
		if cfg.OfflineStore == OfflineStorePostgres {
			opts = db.Options{Driver: db.DriverPostgres, Postgres: cfg.Postgres}
		}
		svc, err := openDatabase(log, opts)
		if err != nil {
			return nil, bootstrapFailure(log, cfg.OfflineStore, OfflineStoreBootstrapErrorConnectFailed, err)
		}
		return offline.NewGormStore(offline.NewOfflineEntryRepo(svc.DB(), log), svc.Close), nil
	case OfflineStoreRedis:
		if cfg.Redis.Addr == "" {
			return nil, bootstrapFailure(log, cfg.OfflineStore, OfflineStoreBootstrapErrorMissingRedisAddr, errors.New("REDIS_ADDR is empty"))
		}
		store, err := newRedisOffline(log, cfg.Redis)
		if err != nil {
			return nil, bootstrapFailure(log, cfg.OfflineStore, OfflineStoreBootstrapErrorConnectFailed, err)
		}
		return store, nil
	default:
		return nil, bootstrapFailure(log, cfg.OfflineStore, OfflineStoreBootstrapErrorInvalidKind,
			fmt.Errorf("unsupported offline store %q", cfg.OfflineStore))
	}
}

func bootstrapFailure(log *logger.Logger, kind OfflineStoreKind, code OfflineStoreBootstrapErrorCode, cause error) error {
	err := &OfflineStoreBootstrapError{Code: code, Kind: kind, Cause: cause}
	log.Error("Offline store bootstrap failed", "kind", kind, "error_code", code, "error", cause)
	return err
}
