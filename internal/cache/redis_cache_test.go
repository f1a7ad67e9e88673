package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisCache(rdb), mr
}

type payload struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := AnalysisKey("database", 7)

	var miss payload
	hit, err := c.GetJSON(ctx, key, &miss)
	if err != nil || hit {
		t.Fatalf("GetJSON() on empty cache = %v, %v", hit, err)
	}

	if err := c.SetJSON(ctx, key, payload{ID: 7, Type: "installation"}, time.Minute); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}

	var got payload
	hit, err = c.GetJSON(ctx, key, &got)
	if err != nil || !hit {
		t.Fatalf("GetJSON() = %v, %v", hit, err)
	}
	if got.ID != 7 || got.Type != "installation" {
		t.Errorf("GetJSON() = %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	hit, _ = c.GetJSON(ctx, key, &got)
	if hit {
		t.Error("entry survived its TTL")
	}
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	key := AnalysisKey("memory", 1)
	if err := mr.Set(key, "{not json"); err != nil {
		t.Fatalf("miniredis Set: %v", err)
	}

	var got payload
	hit, err := c.GetJSON(context.Background(), key, &got)
	if err != nil || hit {
		t.Fatalf("GetJSON() = %v, %v; want miss", hit, err)
	}
	if mr.Exists(key) {
		t.Error("corrupt entry not removed")
	}
}

func TestRedisCache_DelPrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	// More keys than one SCAN page and one delete batch.
	for i := int64(1); i <= 3*scanBatch+7; i++ {
		_ = c.SetJSON(ctx, AnalysisKey("memory", i), payload{ID: i}, time.Minute)
	}
	_ = c.SetJSON(ctx, AnalysisKey("database", 1), payload{ID: 1}, time.Minute)

	if err := c.DelPrefix(ctx, AnalysisPrefix("memory")); err != nil {
		t.Fatalf("DelPrefix() error = %v", err)
	}
	if n := len(mr.Keys()); n != 1 {
		t.Errorf("keys left = %d, want 1", n)
	}
	if !mr.Exists(AnalysisKey("database", 1)) {
		t.Error("other backend's key removed")
	}
}
