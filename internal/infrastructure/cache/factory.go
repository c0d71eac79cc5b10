package cache

import (
	"go.uber.org/zap"

	"github.com/commercesync/backend/internal/domain/shared"
	"github.com/commercesync/backend/internal/infrastructure/config"
)

// NewIdempotencyStore returns a Redis-backed store when Redis is reachable,
// falling back to the in-memory store otherwise. The fallback keeps webhook
// handling alive in development setups without Redis, at the cost of dedup
// state being local to one process.
func NewIdempotencyStore(cfg config.RedisConfig, logger *zap.Logger) shared.IdempotencyStore {
	store, err := NewRedisIdempotencyStore(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, using in-memory idempotency store",
			zap.String("addr", cfg.Addr()),
			zap.Error(err))
		return NewInMemoryIdempotencyStore()
	}
	logger.Info("Using Redis idempotency store", zap.String("addr", cfg.Addr()))
	return store
}
