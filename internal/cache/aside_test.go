package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/identity-sync-service/internal/logging"
	"github.com/PratikDhanave/identity-sync-service/internal/metrics"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) (Result, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(Result), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockCache) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type payload struct {
	Name string `json:"name"`
}

func TestFetch_MissLoadsAndStores(t *testing.T) {
	ctx := context.Background()
	a := NewAside(NewMemoryCache(), logging.Discard(), metrics.New("test"))

	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Name: "alice"}, nil
	}

	v, err := Fetch(ctx, a, FamilyUser, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "alice", v.Name)

	v, err = Fetch(ctx, a, FamilyUser, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "alice", v.Name)
	assert.Equal(t, 1, calls)
}

func TestFetch_LoadErrorNotCached(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	a := NewAside(mc, logging.Discard(), nil)

	_, err := Fetch(ctx, a, FamilyUser, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{}, errors.New("store down")
	})
	require.Error(t, err)

	res, _ := mc.Get(ctx, "k")
	assert.False(t, res.Hit)
}

func TestFetch_CacheOutageFallsThrough(t *testing.T) {
	ctx := context.Background()
	mc := new(mockCache)
	mc.On("Get", ctx, "k").Return(Miss(), errors.New("connection refused"))
	mc.On("Set", ctx, "k", mock.Anything, time.Minute).Return(errors.New("connection refused"))

	a := NewAside(mc, logging.Discard(), nil)
	v, err := Fetch(ctx, a, FamilyScan, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{Name: "from-store"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-store", v.Name)
	mc.AssertExpectations(t)
}

func TestLookup_UndecodableEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	require.NoError(t, mc.Set(ctx, "k", []byte("{not json"), time.Minute))

	a := NewAside(mc, logging.Discard(), nil)
	var dst payload
	assert.False(t, a.Lookup(ctx, FamilyUser, "k", &dst))

	res, _ := mc.Get(ctx, "k")
	assert.False(t, res.Hit)
}

func TestInvalidate_LogsFailures(t *testing.T) {
	ctx := context.Background()
	mc := new(mockCache)
	mc.On("Delete", ctx, ScanKey).Return(errors.New("down"))
	mc.On("Delete", ctx, UserKey("a@x.com")).Return(nil)

	a := NewAside(mc, logging.Discard(), nil)
	a.Invalidate(ctx, ScanKey, UserKey("a@x.com"))
	mc.AssertExpectations(t)
}
