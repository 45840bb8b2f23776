package statuscache_test

import (
	"context"
	"testing"

	"lectern/internal/config"
	"lectern/internal/record"
	"lectern/internal/statuscache"
)

func TestSnapshotKey(t *testing.T) {
	key := statuscache.SnapshotKey(42, 1007)
	if key != "lectern:segment:42:1007:status" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestNilCacheIsInert(t *testing.T) {
	var cache *statuscache.Cache
	ctx := context.Background()

	if err := cache.Ping(ctx); err != nil {
		t.Fatalf("nil cache ping: %v", err)
	}
	cache.SetSnapshot(ctx, &record.Record{CourseID: 1, SegmentID: 2})
	if _, ok := cache.GetSnapshot(ctx, 1, 2); ok {
		t.Fatal("nil cache must always miss")
	}
	cache.Invalidate(ctx, 1, 2)
	if err := cache.Close(); err != nil {
		t.Fatalf("nil cache close: %v", err)
	}
}

func TestDisabledConfigReturnsNil(t *testing.T) {
	cache, err := statuscache.New(config.StatusCache{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if cache != nil {
		t.Fatal("disabled cache must be nil")
	}
}

func TestBadURLRejected(t *testing.T) {
	if _, err := statuscache.New(config.StatusCache{Enabled: true, RedisURL: "://nope"}, nil); err == nil {
		t.Fatal("expected parse error for malformed redis url")
	}
}
