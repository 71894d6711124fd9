package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHelper(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCacheHelper(client, "test:"), mr
}

func TestCacheHelper_SetAndGet(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	original := payload{Name: "calculus-1", Count: 3}
	if err := helper.Set(ctx, "cycle:1", original, FastCacheConfig.TTL); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got payload
	if err := helper.Get(ctx, "cycle:1", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != original {
		t.Errorf("expected %+v, got %+v", original, got)
	}
}

func TestCacheHelper_GetMissing(t *testing.T) {
	helper, _ := newTestHelper(t)

	var dest string
	err := helper.Get(context.Background(), "absent", &dest)
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestCacheHelper_NilClientDegradesGracefully(t *testing.T) {
	helper := NewCacheHelper(nil, "test:")
	ctx := context.Background()

	if err := helper.Set(ctx, "key", "value", FastCacheConfig.TTL); err != nil {
		t.Errorf("Set with nil client should be a no-op, got %v", err)
	}

	var dest string
	if err := helper.Get(ctx, "key", &dest); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("expected ErrCacheNotAvailable, got %v", err)
	}
}

func TestCacheHelper_Delete(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	if err := helper.SetString(ctx, "a", "1", FastCacheConfig.TTL); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if err := helper.SetString(ctx, "b", "2", FastCacheConfig.TTL); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}

	if err := helper.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := helper.GetString(ctx, "a"); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("expected key a deleted, got %v", err)
	}
}

func TestCacheHelper_InvalidatePattern(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	keys := []string{"cycle:id:1", "cycle:id:2", "stats:cycle:1"}
	for _, key := range keys {
		if err := helper.SetString(ctx, key, "x", FastCacheConfig.TTL); err != nil {
			t.Fatalf("SetString failed: %v", err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "cycle:id:*"); err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}

	if _, err := helper.GetString(ctx, "cycle:id:1"); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("expected cycle:id:1 invalidated, got %v", err)
	}
	if _, err := helper.GetString(ctx, "stats:cycle:1"); err != nil {
		t.Errorf("expected stats:cycle:1 untouched, got %v", err)
	}
}

func TestCacheManager_HealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	manager := NewCacheManager(client)
	if err := manager.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}

	nilManager := NewCacheManager(nil)
	if err := nilManager.HealthCheck(context.Background()); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("expected ErrCacheNotAvailable, got %v", err)
	}
}
