package provider

import (
	"context"
	"fmt"
)

type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Response struct {
	ID           string
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
}

type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
	// Configured reports whether the provider holds a usable credential.
	Configured() bool
}

// UpstreamError reports a failed upstream call. Status is the HTTP status
// the gateway mirrors back to the client; Message is the richest error
// detail the upstream offered.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
}
