package store

import (
	"context"
	"sync"
	"testing"

	"github.com/padhai-ai/chat-gateway/internal/quota"
)

func TestMemory_GetAbsentKey(t *testing.T) {
	m := NewMemory()

	rec, err := m.Get(context.Background(), "student@example.com:2025-03-10")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != (quota.Record{}) {
		t.Errorf("Expected zeroed record for absent key, got %+v", rec)
	}
}

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	want := quota.Record{InputTokens: 80, OutputTokens: 40, TotalTokens: 120}
	if err := m.Set(ctx, "k", want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestMemory_AddAccumulates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, err := m.Add(ctx, "k", 80, 40)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if rec.TotalTokens != 120 {
		t.Errorf("Expected total 120, got %d", rec.TotalTokens)
	}

	rec, err = m.Add(ctx, "k", 10, 5)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if rec.InputTokens != 90 || rec.OutputTokens != 45 || rec.TotalTokens != 135 {
		t.Errorf("Unexpected record after second add: %+v", rec)
	}
}

func TestMemory_ConcurrentAdds(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := m.Add(ctx, "k", 2, 1); err != nil {
				t.Errorf("Add failed: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.InputTokens != workers*2 || rec.OutputTokens != workers || rec.TotalTokens != workers*3 {
		t.Errorf("Lost updates under concurrency: %+v", rec)
	}
}

func TestMemory_Backend(t *testing.T) {
	if NewMemory().Backend() != quota.BackendMemory {
		t.Error("Expected memory backend discriminator")
	}
}
