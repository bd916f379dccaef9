package quota

import (
	"context"
	"fmt"
	"time"
)

// Admission is the result of a quota check for one request.
type Admission struct {
	Allowed bool
	Usage   Record
	// Key is the usage key the decision was made against. Commit must be
	// called with this key, even if the request straddles local midnight
	// while executing: the day boundary is fixed at admission time.
	Key string
}

// Ledger owns the read-check-update cycle for per-user daily token usage.
// It holds a transient copy of a record for the duration of one request and
// is the only component that writes records back.
type Ledger struct {
	store Store
	days  *DayKeys
	limit int
	now   func() time.Time
}

type LedgerOption func(*Ledger)

// WithClock overrides the ledger's clock, for tests.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store Store, days *DayKeys, dailyLimit int, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store: store,
		days:  days,
		limit: dailyLimit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) DailyLimit() int { return l.limit }

func (l *Ledger) Backend() Backend { return l.store.Backend() }

// Admit loads today's usage for email and decides whether the request may
// proceed. It never mutates the record; calling Admit repeatedly without an
// intervening Commit returns the same answer.
func (l *Ledger) Admit(ctx context.Context, email string) (Admission, error) {
	key := fmt.Sprintf("%s:%s", email, l.days.Key(l.now()))

	rec, err := l.store.Get(ctx, key)
	if err != nil {
		return Admission{}, fmt.Errorf("load usage %s: %w", key, err)
	}

	return Admission{
		Allowed: rec.TotalTokens < l.limit,
		Usage:   rec,
		Key:     key,
	}, nil
}

// Commit merges the token counts of a completed upstream call into the
// record at the admission key and returns the merged record. It must not be
// called for denied requests.
func (l *Ledger) Commit(ctx context.Context, key string, inputTokens, outputTokens int) (Record, error) {
	rec, err := l.store.Add(ctx, key, inputTokens, outputTokens)
	if err != nil {
		return Record{}, fmt.Errorf("commit usage %s: %w", key, err)
	}
	return rec, nil
}

// Remaining reports how many tokens of the daily limit rec leaves unused.
func (l *Ledger) Remaining(rec Record) int {
	if rec.TotalTokens >= l.limit {
		return 0
	}
	return l.limit - rec.TotalTokens
}
