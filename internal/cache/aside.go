package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/PratikDhanave/identity-sync-service/internal/metrics"
)

// Aside applies the cache-aside rules on top of a Cache: the authoritative
// source is always consulted on a miss, and every cache failure is logged
// and otherwise ignored. A cache outage therefore costs freshness only.
type Aside struct {
	cache   Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewAside wraps c with cache-aside semantics. m may be nil.
func NewAside(c Cache, logger *slog.Logger, m *metrics.Metrics) *Aside {
	return &Aside{cache: c, logger: logger, metrics: m}
}

// Lookup decodes the JSON value at key into dst. Backend and decode
// failures are reported as a miss.
func (a *Aside) Lookup(ctx context.Context, family, key string, dst any) bool {
	res, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.WarnContext(ctx, "cache get failed", slog.String("key", key), slog.String("error", err.Error()))
		a.metrics.CacheLookup(family, false)
		return false
	}
	if !res.Hit {
		a.metrics.CacheLookup(family, false)
		return false
	}
	if err := json.Unmarshal(res.Value, dst); err != nil {
		a.logger.WarnContext(ctx, "cache entry undecodable", slog.String("key", key), slog.String("error", err.Error()))
		a.Invalidate(ctx, key)
		a.metrics.CacheLookup(family, false)
		return false
	}
	a.metrics.CacheLookup(family, true)
	return true
}

// Store encodes v as JSON and writes it with ttl.
func (a *Aside) Store(ctx context.Context, key string, v any, ttl time.Duration) {
	payload, err := json.Marshal(v)
	if err != nil {
		a.logger.WarnContext(ctx, "cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := a.cache.Set(ctx, key, payload, ttl); err != nil {
		a.logger.WarnContext(ctx, "cache set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Invalidate deletes keys, logging failures.
func (a *Aside) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := a.cache.Delete(ctx, key); err != nil {
			a.logger.WarnContext(ctx, "cache delete failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

// Ping reports whether the underlying cache answers.
func (a *Aside) Ping(ctx context.Context) error {
	return a.cache.Ping(ctx)
}

// Fetch returns the cached value for key, or calls load and caches its
// result. Errors from load are returned as-is and never cached.
func Fetch[T any](ctx context.Context, a *Aside, family, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if a.Lookup(ctx, family, key, &cached) {
		return cached, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	a.Store(ctx, key, v, ttl)
	return v, nil
}
