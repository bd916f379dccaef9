//go:build integration

package store_test

import (
	"context"
	"os"
	"sync"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/padhai-ai/chat-gateway/internal/quota"
	"github.com/padhai-ai/chat-gateway/internal/store"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedis_RoundTrip(t *testing.T) {
	client := newTestClient(t)
	s := store.NewRedis(client, store.WithKeyPrefix("chatquota:test:"))
	ctx := context.Background()
	key := "student@example.com:2025-03-10"
	t.Cleanup(func() { client.Del(ctx, "chatquota:test:"+key) })

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != (quota.Record{}) {
		t.Fatalf("Expected zeroed record for absent key, got %+v", rec)
	}

	if err := s.Set(ctx, key, quota.Record{InputTokens: 80, OutputTokens: 40, TotalTokens: 120}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	rec, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.TotalTokens != 120 {
		t.Errorf("Expected total 120 after set, got %d", rec.TotalTokens)
	}
}

func TestRedis_ConcurrentAdds(t *testing.T) {
	client := newTestClient(t)
	s := store.NewRedis(client, store.WithKeyPrefix("chatquota:test:"))
	ctx := context.Background()
	key := "student@example.com:2025-03-11"
	t.Cleanup(func() { client.Del(ctx, "chatquota:test:"+key) })

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Add(ctx, key, 2, 1); err != nil {
				t.Errorf("Add failed: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.InputTokens != workers*2 || rec.OutputTokens != workers || rec.TotalTokens != workers*3 {
		t.Errorf("Lost updates under concurrency: %+v", rec)
	}
}
