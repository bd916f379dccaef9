package quota

// Output budget bounds for a single completion call.
const (
	// ReservedInputHeadroom keeps room for prompt tokens so a request with
	// a long prompt cannot blow the daily cap purely on output.
	ReservedInputHeadroom = 64

	// MinOutputTokens guarantees near-exhausted users still get a short
	// answer instead of an error. The daily total may overshoot the limit
	// by at most this floor.
	MinOutputTokens = 64

	MaxOutputTokens = 512
)

// Allocator derives the output-token ceiling for the next upstream call from
// the usage recorded so far.
type Allocator struct {
	Limit int
}

// Allocate returns the max output tokens for a request given usage so far.
// The result is always within [MinOutputTokens, MaxOutputTokens].
func (a Allocator) Allocate(rec Record) int {
	remaining := a.Limit - rec.TotalTokens
	if remaining < 0 {
		remaining = 0
	}

	budget := remaining - ReservedInputHeadroom
	if budget < MinOutputTokens {
		return MinOutputTokens
	}
	if budget > MaxOutputTokens {
		return MaxOutputTokens
	}
	return budget
}
