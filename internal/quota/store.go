package quota

import "context"

// Backend identifies which store implementation is active. It is carried in
// responses for observability only; the ledger never branches on it.
type Backend string

const (
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

// Store persists usage records keyed by "<email>:<day-key>".
type Store interface {
	// Get returns the record for key. Absent keys yield a zeroed record,
	// not an error.
	Get(ctx context.Context, key string) (Record, error)

	// Set overwrites the record for key.
	Set(ctx context.Context, key string, rec Record) error

	// Add atomically merges the token deltas into the record for key and
	// returns the merged record. Concurrent Adds for the same key must
	// both land.
	Add(ctx context.Context, key string, inputTokens, outputTokens int) (Record, error)

	// Backend reports the active backend.
	Backend() Backend
}
