package cache

import (
	"context"
	"time"

	"dpehub_backend/platform/config"
	"dpehub_backend/platform/logger"
)

const pingTimeout = 3 * time.Second

// Open returns the Redis store when REDIS_URL is set and reachable, and an
// in-memory store otherwise. The returned close function is never nil.
func Open(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) (Store, func() error) {
	memory := func() (Store, func() error) {
		log.Info("using in-memory response cache", "size", cfg.GetCacheSize(), "ttl", cfg.GetCacheTTL())
		return NewMemory(cfg.GetCacheSize(), cfg.GetCacheTTL()), func() error { return nil }
	}

	if !cfg.IsRedisEnabled() {
		return memory()
	}

	store, err := NewRedis(cfg.GetRedisURL(), cfg.GetCacheTTL())
	if err != nil {
		log.CacheError("open_redis", err)
		return memory()
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		log.CacheError("ping_redis", err)
		_ = store.Close()
		return memory()
	}

	log.Info("using redis response cache", "ttl", cfg.GetCacheTTL())
	return store, store.Close
}
