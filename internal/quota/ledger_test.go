package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/padhai-ai/chat-gateway/internal/quota"
	"github.com/padhai-ai/chat-gateway/internal/store"
)

func newTestLedger(t *testing.T, limit int, opts ...quota.LedgerOption) (*quota.Ledger, *store.Memory) {
	t.Helper()
	days, err := quota.NewDayKeys("Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewDayKeys failed: %v", err)
	}
	mem := store.NewMemory()
	return quota.NewLedger(mem, days, limit, opts...), mem
}

func TestAdmit_NewUser(t *testing.T) {
	ledger, _ := newTestLedger(t, 1000)

	adm, err := ledger.Admit(context.Background(), "student@example.com")
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	if !adm.Allowed {
		t.Error("Expected new user to be admitted")
	}
	if adm.Usage != (quota.Record{}) {
		t.Errorf("Expected zeroed usage for new user, got %+v", adm.Usage)
	}
	if adm.Key == "" {
		t.Error("Expected admission key to be set")
	}
}

func TestAdmit_AtLimitDenied(t *testing.T) {
	ledger, mem := newTestLedger(t, 1000)
	ctx := context.Background()

	adm, err := ledger.Admit(ctx, "student@example.com")
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	full := quota.Record{InputTokens: 600, OutputTokens: 400, TotalTokens: 1000}
	if err := mem.Set(ctx, adm.Key, full); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	adm, err = ledger.Admit(ctx, "student@example.com")
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if adm.Allowed {
		t.Error("Expected user at the limit to be denied")
	}
	if adm.Usage != full {
		t.Errorf("Expected admit to return the loaded record, got %+v", adm.Usage)
	}

	// Denial never mutates the stored record.
	got, err := mem.Get(ctx, adm.Key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != full {
		t.Errorf("Record changed on denial: %+v", got)
	}
}

func TestAdmit_Idempotent(t *testing.T) {
	ledger, _ := newTestLedger(t, 1000)
	ctx := context.Background()

	first, err := ledger.Admit(ctx, "student@example.com")
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	second, err := ledger.Admit(ctx, "student@example.com")
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	if first != second {
		t.Errorf("Expected identical admissions without a Commit, got %+v and %+v", first, second)
	}
}

func TestCommit_MergesCounts(t *testing.T) {
	ledger, _ := newTestLedger(t, 1000)
	ctx := context.Background()

	adm, err := ledger.Admit(ctx, "student@example.com")
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	merged, err := ledger.Commit(ctx, adm.Key, 80, 40)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if merged.InputTokens != 80 || merged.OutputTokens != 40 || merged.TotalTokens != 120 {
		t.Errorf("Unexpected merged record: %+v", merged)
	}

	merged, err = ledger.Commit(ctx, adm.Key, 20, 10)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if merged.TotalTokens != merged.InputTokens+merged.OutputTokens {
		t.Errorf("Total invariant broken: %+v", merged)
	}
	if merged.TotalTokens != 150 {
		t.Errorf("Expected total 150 after two commits, got %d", merged.TotalTokens)
	}
}

func TestCommit_KeyFixedAtAdmission(t *testing.T) {
	// The request admits just before local midnight and commits after it.
	// Usage must land on the admission day, and the next day starts clean.
	beforeMidnight := time.Date(2025, 3, 10, 18, 25, 0, 0, time.UTC) // 23:55 IST Mar 10
	afterMidnight := time.Date(2025, 3, 10, 18, 35, 0, 0, time.UTC)  // 00:05 IST Mar 11

	now := beforeMidnight
	ledger, mem := newTestLedger(t, 1000, quota.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	adm, err := ledger.Admit(ctx, "student@example.com")
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if adm.Key != "student@example.com:2025-03-10" {
		t.Fatalf("Unexpected admission key: %s", adm.Key)
	}

	now = afterMidnight
	if _, err := ledger.Commit(ctx, adm.Key, 80, 40); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	stored, err := mem.Get(ctx, "student@example.com:2025-03-10")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.TotalTokens != 120 {
		t.Errorf("Expected usage on the admission day, got %+v", stored)
	}

	adm, err = ledger.Admit(ctx, "student@example.com")
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if adm.Key != "student@example.com:2025-03-11" {
		t.Errorf("Expected new day key after midnight, got %s", adm.Key)
	}
	if adm.Usage.TotalTokens != 0 {
		t.Errorf("Expected fresh usage on the new day, got %+v", adm.Usage)
	}
}

func TestRemaining(t *testing.T) {
	ledger, _ := newTestLedger(t, 1000)

	if got := ledger.Remaining(quota.Record{TotalTokens: 120}); got != 880 {
		t.Errorf("Expected 880 remaining, got %d", got)
	}
	if got := ledger.Remaining(quota.Record{TotalTokens: 1000}); got != 0 {
		t.Errorf("Expected 0 remaining at the limit, got %d", got)
	}
	if got := ledger.Remaining(quota.Record{TotalTokens: 1040}); got != 0 {
		t.Errorf("Expected 0 remaining past the limit, got %d", got)
	}
}
