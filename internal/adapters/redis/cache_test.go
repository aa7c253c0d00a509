package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "venue_atlas/internal/adapters/redis"
	"venue_atlas/internal/domain"
)

func newTestCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	in := domain.Venue{ID: 7, Name: "Плов Центр", Source: "google", SourceID: "g1"}
	if err := c.Set(ctx, "venue:7", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out domain.Venue
	ok, err := c.Get(ctx, "venue:7", &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.ID != 7 || out.Name != "Плов Центр" {
		t.Fatalf("roundtrip: %+v", out)
	}
}

func TestCache_MissAndDel(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var out domain.Venue
	ok, err := c.Get(ctx, "venue:404", &out)
	if err != nil || ok {
		t.Fatalf("expected miss: ok=%v err=%v", ok, err)
	}

	_ = c.Set(ctx, "venue:1", domain.Venue{ID: 1}, 60)
	if err := c.Del(ctx, "venue:1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if ok, _ := c.Get(ctx, "venue:1", &out); ok {
		t.Fatal("key survived delete")
	}
}

func TestCache_TTLExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "venue:2", domain.Venue{ID: 2}, 30)
	mr.FastForward(31 * time.Second)

	var out domain.Venue
	if ok, _ := c.Get(ctx, "venue:2", &out); ok {
		t.Fatal("key survived TTL")
	}
}
