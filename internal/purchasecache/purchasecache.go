// Package purchasecache provides PurchaseCache implementations for the ledger processor.
package purchasecache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKeyPrefix namespaces purchase markers in a shared Redis.
	DefaultKeyPrefix   = "creatorledger:purchase:"
	purchasedMarker    = "1"
	errorOperation     = "purchase_cache"
	errorSubjectRedis  = "redis"
	errorCodeExists    = "exists"
	errorCodeSet       = "set"
	errorCodeNilClient = "nil_client"
)

// ErrNilRedisClient is returned when a Redis cache is built without a client.
var ErrNilRedisClient = errors.New("purchasecache: nil redis client")

// Memory is a process-local cache. Entries never expire.
type Memory struct {
	entries sync.Map
}

// NewMemory returns an empty process-local cache.
func NewMemory() *Memory {
	return &Memory{}
}

func (cache *Memory) Has(_ context.Context, key ledger.PurchaseKey) (bool, error) {
	_, ok := cache.entries.Load(key)
	return ok, nil
}

func (cache *Memory) MarkPurchased(_ context.Context, key ledger.PurchaseKey) error {
	cache.entries.Store(key, struct{}{})
	return nil
}

// RedisClient is the subset of go-redis used by the shared cache.
type RedisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Redis shares purchase markers between ledger processes.
type Redis struct {
	client    RedisClient
	keyPrefix string
}

// NewRedis wraps client; an empty prefix selects DefaultKeyPrefix.
func NewRedis(client RedisClient, keyPrefix string) (*Redis, error) {
	if client == nil {
		return nil, ledger.WrapError(errorOperation, errorSubjectRedis, errorCodeNilClient, ErrNilRedisClient)
	}
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, keyPrefix: prefix}, nil
}

func (cache *Redis) Has(ctx context.Context, key ledger.PurchaseKey) (bool, error) {
	count, err := cache.client.Exists(ctx, cache.redisKey(key)).Result()
	if err != nil {
		return false, ledger.WrapError(errorOperation, errorSubjectRedis, errorCodeExists, err)
	}
	return count > 0, nil
}

// MarkPurchased stores the marker without expiry.
func (cache *Redis) MarkPurchased(ctx context.Context, key ledger.PurchaseKey) error {
	if err := cache.client.Set(ctx, cache.redisKey(key), purchasedMarker, 0).Err(); err != nil {
		return ledger.WrapError(errorOperation, errorSubjectRedis, errorCodeSet, err)
	}
	return nil
}

func (cache *Redis) redisKey(key ledger.PurchaseKey) string {
	return fmt.Sprintf("%s%s", cache.keyPrefix, key.String())
}

// Layered consults a local cache before a shared one and back-fills the local cache on shared hits.
type Layered struct {
	local  ledger.PurchaseCache
	shared ledger.PurchaseCache
}

// NewLayered combines local and shared caches; a nil layer is skipped.
func NewLayered(local ledger.PurchaseCache, shared ledger.PurchaseCache) *Layered {
	if local == nil {
		local = ledger.NoopPurchaseCache{}
	}
	if shared == nil {
		shared = ledger.NoopPurchaseCache{}
	}
	return &Layered{local: local, shared: shared}
}

func (cache *Layered) Has(ctx context.Context, key ledger.PurchaseKey) (bool, error) {
	if found, err := cache.local.Has(ctx, key); err == nil && found {
		return true, nil
	}
	found, err := cache.shared.Has(ctx, key)
	if err != nil || !found {
		return false, err
	}
	_ = cache.local.MarkPurchased(ctx, key)
	return true, nil
}

func (cache *Layered) MarkPurchased(ctx context.Context, key ledger.PurchaseKey) error {
	localErr := cache.local.MarkPurchased(ctx, key)
	sharedErr := cache.shared.MarkPurchased(ctx, key)
	return errors.Join(localErr, sharedErr)
}
