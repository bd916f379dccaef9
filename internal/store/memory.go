package store

import (
	"context"
	"sync"

	"github.com/padhai-ai/chat-gateway/internal/quota"
)

// Memory is the process-local fallback usage store, used when Redis cannot
// be reached. Records are lost on restart and never shared across process
// instances; callers surface the degraded mode through Backend().
type Memory struct {
	mu      sync.Mutex
	records map[string]quota.Record
}

var _ quota.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: make(map[string]quota.Record)}
}

func (m *Memory) Get(_ context.Context, key string) (quota.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key], nil
}

func (m *Memory) Set(_ context.Context, key string, rec quota.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = rec
	return nil
}

func (m *Memory) Add(_ context.Context, key string, inputTokens, outputTokens int) (quota.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[key].Merge(inputTokens, outputTokens)
	m.records[key] = rec
	return rec, nil
}

func (m *Memory) Backend() quota.Backend { return quota.BackendMemory }
