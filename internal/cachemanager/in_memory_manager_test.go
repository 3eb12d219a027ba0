package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

type reviewerSnapshot struct {
	ID       string
	Presence string
}

func TestNewInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, reviewerSnapshot]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)
	snapshot := reviewerSnapshot{
		ID:       "rev-1",
		Presence: "available",
	}
	cache.Set(context.Background(), "reviewer:rev-1", snapshot, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "reviewer:rev-1")
	require.True(t, ok)
	require.Equal(t, snapshot, got)
}

func TestNewInMemoryCacheManager_GetExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "reviewer:rev-1", "available", DefaultExpiration)

	got, ok := cache.Get(context.Background(), "reviewer:rev-1")
	require.True(t, ok)
	require.Equal(t, "available", got)
}

func TestNewInMemoryCacheManager_GetWithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "reviewer:rev-1")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestNewInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("reviewer:rev-1", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "reviewer:rev-1")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestNewInMemoryCacheManager_GetMultipleWithNoKeysDoesNothing(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.GetMultiple(context.Background(), []string{})
	require.False(t, ok)
	require.Nil(t, got)
}

func TestNewInMemoryCacheManager_GetMultipleCacheHit(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("reviewer:rev-1", "available", DefaultExpiration)
	cache.cache.Set("reviewer:rev-2", "busy", DefaultExpiration)

	got, ok := cache.GetMultiple(context.Background(), []string{"reviewer:rev-1", "reviewer:rev-2", "reviewer:missing"})
	require.True(t, ok)
	require.Equal(t, map[string]string{"reviewer:rev-1": "available", "reviewer:rev-2": "busy"}, got)
}

func TestNewInMemoryCacheManager_GetMultipleCacheMiss(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.GetMultiple(context.Background(), []string{"reviewer:rev-1", "reviewer:rev-2"})
	require.False(t, ok)
	require.Nil(t, got)
}

func TestNewInMemoryCacheManager_GetMultipleWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("reviewer:rev-1", "available", DefaultExpiration)
	cache.cache.Set("reviewer:rev-2", 123, DefaultExpiration)

	got, ok := cache.GetMultiple(context.Background(), []string{"reviewer:rev-1", "reviewer:rev-2"})
	require.True(t, ok)
	require.Equal(t, map[string]string{"reviewer:rev-1": "available"}, got)
}

func TestNewInMemoryCacheManager_GetWithRefresh_WithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.GetWithRefresh(context.Background(), "reviewer:rev-1", time.Minute*60)
	require.False(t, ok)
	require.Equal(t, "", got)
}

func TestNewInMemoryCacheManager_GetWithRefresh_WithExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "reviewer:rev-1", "available", DefaultExpiration)

	got, ok := cache.GetWithRefresh(context.Background(), "reviewer:rev-1", time.Minute*60)
	require.True(t, ok)
	require.Equal(t, "available", got)
}

func TestNewInMemoryCacheManager_AddFirstWins(t *testing.T) {
	cache := NewInMemoryCacheManager[string, bool]("warn-marks", DefaultExpiration, DefaultCleanupInterval)

	stored := cache.Add(context.Background(), "warn:task-1:5", true, time.Minute)
	require.True(t, stored, "first add should store")

	stored = cache.Add(context.Background(), "warn:task-1:5", true, time.Minute)
	require.False(t, stored, "second add for the same key should not")

	// A different window for the same task is its own key.
	stored = cache.Add(context.Background(), "warn:task-1:2", true, time.Minute)
	require.True(t, stored)
}

func TestNewInMemoryCacheManager_AddAfterExpiry(t *testing.T) {
	cache := NewInMemoryCacheManager[string, bool]("warn-marks", DefaultExpiration, DefaultCleanupInterval)

	stored := cache.Add(context.Background(), "warn:task-1:5", true, time.Millisecond)
	require.True(t, stored)

	time.Sleep(5 * time.Millisecond)

	stored = cache.Add(context.Background(), "warn:task-1:5", true, time.Minute)
	require.True(t, stored, "an expired mark can be re-added")
}

func TestNewInMemoryCacheManager_DeleteWithNoKeysDoesNothing(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)

	err := cache.Delete(context.Background())
	require.NoError(t, err)
}

func TestNewInMemoryCacheManager_DeleteExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "reviewer:rev-1", "available", DefaultExpiration)

	got, ok := cache.Get(context.Background(), "reviewer:rev-1")
	require.True(t, ok)
	require.Equal(t, "available", got)

	err := cache.Delete(context.Background(), "reviewer:rev-1")
	require.NoError(t, err)

	got, ok = cache.Get(context.Background(), "reviewer:rev-1")
	require.False(t, ok)
	require.Equal(t, "", got)
}

func TestNewInMemoryCacheManager_Flush(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("reviewer-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "reviewer:rev-1", "available", DefaultExpiration)

	got, ok := cache.Get(context.Background(), "reviewer:rev-1")
	require.True(t, ok)
	require.Equal(t, "available", got)

	err := cache.Flush(context.Background())
	require.NoError(t, err)

	got, ok = cache.Get(context.Background(), "reviewer:rev-1")
	require.False(t, ok)
	require.Equal(t, "", got)
}
