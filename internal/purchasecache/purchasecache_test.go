package purchasecache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mutex     sync.Mutex
	values    map[string]string
	ttls      map[string]time.Duration
	existsErr error
	setErr    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (client *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	if client.existsErr != nil {
		return redis.NewIntResult(0, client.existsErr)
	}
	var count int64
	for _, key := range keys {
		if _, ok := client.values[key]; ok {
			count++
		}
	}
	return redis.NewIntResult(count, nil)
}

func (client *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	if client.setErr != nil {
		return redis.NewStatusResult("", client.setErr)
	}
	client.values[key] = value.(string)
	client.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func purchaseKey(t *testing.T) ledger.PurchaseKey {
	t.Helper()
	contentID, err := ledger.NewContentID("C1")
	require.NoError(t, err)
	buyerID, err := ledger.NewUserID("U1")
	require.NoError(t, err)
	return ledger.NewPurchaseKey(contentID, buyerID)
}

func TestMemoryRemembersPurchases(t *testing.T) {
	cache := NewMemory()
	key := purchaseKey(t)
	ctx := context.Background()

	found, err := cache.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.MarkPurchased(ctx, key))
	found, err = cache.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRedisStoresMarkerWithoutExpiry(t *testing.T) {
	client := newFakeRedis()
	cache, err := NewRedis(client, "")
	require.NoError(t, err)
	key := purchaseKey(t)
	ctx := context.Background()

	found, err := cache.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.MarkPurchased(ctx, key))
	redisKey := DefaultKeyPrefix + key.String()
	assert.Equal(t, purchasedMarker, client.values[redisKey])
	assert.Equal(t, time.Duration(0), client.ttls[redisKey])

	found, err = cache.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRedisWrapsClientErrors(t *testing.T) {
	client := newFakeRedis()
	boom := errors.New("connection refused")
	client.existsErr = boom
	client.setErr = boom
	cache, err := NewRedis(client, "custom:")
	require.NoError(t, err)

	_, err = cache.Has(context.Background(), purchaseKey(t))
	assert.ErrorIs(t, err, boom)
	var operationErr ledger.OperationError
	require.ErrorAs(t, err, &operationErr)
	assert.Equal(t, errorCodeExists, operationErr.Code())

	assert.ErrorIs(t, cache.MarkPurchased(context.Background(), purchaseKey(t)), boom)
}

func TestNewRedisRejectsNilClient(t *testing.T) {
	_, err := NewRedis(nil, "")
	assert.ErrorIs(t, err, ErrNilRedisClient)
}

func TestLayeredBackfillsLocalFromShared(t *testing.T) {
	local := NewMemory()
	client := newFakeRedis()
	shared, err := NewRedis(client, "")
	require.NoError(t, err)
	key := purchaseKey(t)
	ctx := context.Background()
	require.NoError(t, shared.MarkPurchased(ctx, key))

	cache := NewLayered(local, shared)
	found, err := cache.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)

	client.existsErr = errors.New("down")
	found, err = cache.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, found, "local layer should answer once back-filled")
}

func TestLayeredMarkReportsSharedFailure(t *testing.T) {
	local := NewMemory()
	client := newFakeRedis()
	client.setErr = errors.New("readonly replica")
	shared, err := NewRedis(client, "")
	require.NoError(t, err)
	cache := NewLayered(local, shared)
	key := purchaseKey(t)

	err = cache.MarkPurchased(context.Background(), key)
	assert.ErrorIs(t, err, client.setErr)
	found, _ := local.Has(context.Background(), key)
	assert.True(t, found)
}

func TestLayeredToleratesNilLayers(t *testing.T) {
	cache := NewLayered(nil, nil)
	key := purchaseKey(t)
	require.NoError(t, cache.MarkPurchased(context.Background(), key))
	found, err := cache.Has(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, found)
}
