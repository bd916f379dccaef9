// Package store provides the usage store backends: a durable Redis store
// and an in-memory process-local fallback.
//
// The Redis backend keeps each usage record as a hash. Commits run an atomic
// Lua script so concurrent requests for the same user accumulate instead of
// overwriting each other.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/padhai-ai/chat-gateway/internal/quota"
)

const defaultKeyPrefix = "chatquota:usage:"

// Redis is the durable usage store.
type Redis struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ quota.Store = (*Redis)(nil)

// Option configures Redis.
type Option func(*Redis)

// WithKeyPrefix sets the Redis key namespace (default "chatquota:usage:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Redis) { s.keyPrefix = prefix }
}

// NewRedis creates a Redis-backed usage store. The client must be a
// connected *goredis.Client or *goredis.ClusterClient.
func NewRedis(client goredis.Cmdable, opts ...Option) *Redis {
	s := &Redis{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// addScript merges token deltas into the record hash in one atomic step.
// KEYS[1] = record hash key
// ARGV[1] = input delta
// ARGV[2] = output delta
// ARGV[3] = email metadata
// ARGV[4] = day metadata
//
// Returns {input, output, total} after the merge.
var addScript = goredis.NewScript(`
local key = KEYS[1]
local input = redis.call("HINCRBY", key, "input", tonumber(ARGV[1]))
local output = redis.call("HINCRBY", key, "output", tonumber(ARGV[2]))
local total = redis.call("HINCRBY", key, "total", tonumber(ARGV[1]) + tonumber(ARGV[2]))
redis.call("HSET", key, "email", ARGV[3], "day", ARGV[4])
return {input, output, total}
`)

func (s *Redis) Get(ctx context.Context, key string) (quota.Record, error) {
	vals, err := s.client.HMGet(ctx, s.keyPrefix+key, "input", "output", "total").Result()
	if err != nil {
		return quota.Record{}, fmt.Errorf("usage HMGET %s: %w", key, err)
	}

	// Absent keys come back as nils and yield a zeroed record.
	rec := quota.Record{
		InputTokens:  hashInt(vals[0]),
		OutputTokens: hashInt(vals[1]),
		TotalTokens:  hashInt(vals[2]),
	}
	return rec, nil
}

func (s *Redis) Set(ctx context.Context, key string, rec quota.Record) error {
	email, day := splitUsageKey(key)
	err := s.client.HSet(ctx, s.keyPrefix+key,
		"input", rec.InputTokens,
		"output", rec.OutputTokens,
		"total", rec.TotalTokens,
		"email", email,
		"day", day,
	).Err()
	if err != nil {
		return fmt.Errorf("usage HSET %s: %w", key, err)
	}
	return nil
}

func (s *Redis) Add(ctx context.Context, key string, inputTokens, outputTokens int) (quota.Record, error) {
	email, day := splitUsageKey(key)
	res, err := addScript.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		inputTokens, outputTokens, email, day,
	).Result()
	if err != nil {
		return quota.Record{}, fmt.Errorf("usage merge %s: %w", key, err)
	}

	merged, ok := res.([]interface{})
	if !ok || len(merged) != 3 {
		return quota.Record{}, fmt.Errorf("usage merge %s: unexpected script reply %v", key, res)
	}

	return quota.Record{
		InputTokens:  scriptInt(merged[0]),
		OutputTokens: scriptInt(merged[1]),
		TotalTokens:  scriptInt(merged[2]),
	}, nil
}

func (s *Redis) Backend() quota.Backend { return quota.BackendRedis }

// splitUsageKey separates "<email>:<day>" into its metadata parts.
func splitUsageKey(key string) (email, day string) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

func hashInt(v interface{}) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func scriptInt(v interface{}) int {
	n, ok := v.(int64)
	if !ok {
		return 0
	}
	return int(n)
}
