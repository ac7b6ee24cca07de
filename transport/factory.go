package transport

import (
	"fmt"

	"meteostations.app/config"
	"meteostations.app/pkg/errors"
	"meteostations.app/pkg/logger"
)

// NewStoreFromConfig builds the cache store selected by configuration
func NewStoreFromConfig(cfg *config.CacheConfig, log *logger.Logger) (Store, error) {
	if cfg == nil {
		return nil, errors.NewConfigurationError("cache config cannot be nil", nil)
	}

	switch cfg.Backend {
	case config.CacheBackendMemory:
		return NewMemoryStore(), nil
	case config.CacheBackendRedis:
		return NewRedisStore(&cfg.Redis, log)
	case config.CacheBackendSQLite:
		db, err := OpenSQLite(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db, log)
	case config.CacheBackendPostgres:
		db, err := OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db, log)
	default:
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("unsupported cache backend: %s", cfg.Backend), nil)
	}
}
