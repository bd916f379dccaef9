package audit

import (
	"context"
	"time"
)

// UsageLog is one completed chat request, recorded after the quota commit.
type UsageLog struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id"`
	Email        string    `json:"email"`
	Day          string    `json:"day"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Backend      string    `json:"backend"`
	LatencyMs    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

type Store interface {
	LogUsage(ctx context.Context, log *UsageLog) error
	GetUsageByEmail(ctx context.Context, email string, from, to time.Time) ([]*UsageLog, error)
}
