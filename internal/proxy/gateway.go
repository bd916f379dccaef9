package proxy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/padhai-ai/chat-gateway/internal/provider"
)

const completionTemperature = 0.3

// Gateway fronts the upstream completion service. It prepends the fixed
// system instruction, imposes the call timeout and guards the upstream with
// a circuit breaker. Every failure surfaces as *provider.UpstreamError.
type Gateway struct {
	provider     provider.Provider
	systemPrompt string
	model        string
	timeout      time.Duration
	breaker      *gobreaker.CircuitBreaker
}

func NewGateway(p provider.Provider, systemPrompt, model string, timeout time.Duration) *Gateway {
	settings := gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Gateway{
		provider:     p,
		systemPrompt: systemPrompt,
		model:        model,
		timeout:      timeout,
		breaker:      gobreaker.NewCircuitBreaker(settings),
	}
}

// Configured reports whether the upstream credential is present.
func (g *Gateway) Configured() bool {
	return g.provider.Configured()
}

// Complete calls the upstream with the system instruction prepended and the
// allocated output-token ceiling.
func (g *Gateway) Complete(ctx context.Context, messages []provider.Message, maxOutputTokens int) (*provider.Response, error) {
	full := make([]provider.Message, 0, len(messages)+1)
	full = append(full, provider.Message{Role: "system", Content: g.systemPrompt})
	full = append(full, messages...)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.provider.Complete(ctx, &provider.Request{
			Model:       g.model,
			Messages:    full,
			MaxTokens:   maxOutputTokens,
			Temperature: completionTemperature,
		})
	})
	if err != nil {
		return nil, normalizeUpstreamError(err)
	}
	return result.(*provider.Response), nil
}

func normalizeUpstreamError(err error) *provider.UpstreamError {
	var ue *provider.UpstreamError
	if errors.As(err, &ue) {
		return ue
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &provider.UpstreamError{
			Status:  http.StatusServiceUnavailable,
			Message: "completion service temporarily unavailable",
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &provider.UpstreamError{
			Status:  http.StatusGatewayTimeout,
			Message: "completion request timed out",
		}
	}
	return &provider.UpstreamError{
		Status:  http.StatusBadGateway,
		Message: err.Error(),
	}
}
