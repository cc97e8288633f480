package cache

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of a lookup. A hit may carry an empty value;
// only Hit distinguishes "stored empty" from "not stored".
type Result struct {
	Value []byte
	Hit   bool
}

// Hit builds a found Result.
func Hit(value []byte) Result { return Result{Value: value, Hit: true} }

// Miss builds a not-found Result.
func Miss() Result { return Result{} }

// Cache is a key/value store with per-key TTL.
type Cache interface {
	Get(ctx context.Context, key string) (Result, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// CacheError reports a backend failure. Misses are never errors.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
