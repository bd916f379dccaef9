package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/padhai-ai/chat-gateway/internal/audit"
	"github.com/padhai-ai/chat-gateway/internal/metrics"
	"github.com/padhai-ai/chat-gateway/internal/provider"
	"github.com/padhai-ai/chat-gateway/internal/quota"
	"github.com/padhai-ai/chat-gateway/pkg/ratelimit"
)

// The email is an opaque user key, not an authenticated identity, so the
// pattern is deliberately loose.
var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

type chatRequest struct {
	Email    string             `json:"email"`
	Messages []provider.Message `json:"messages"`
}

type usageSnapshot struct {
	InputTokens    int `json:"input_tokens"`
	OutputTokens   int `json:"output_tokens"`
	TotalTokens    int `json:"total_tokens"`
	UsedToday      int `json:"used_today"`
	RemainingToday int `json:"remaining_today"`
}

type chatResponse struct {
	Reply   string        `json:"reply"`
	Usage   usageSnapshot `json:"usage"`
	Storage string        `json:"storage"`
}

type Handler struct {
	ledger  *quota.Ledger
	alloc   quota.Allocator
	gateway *Gateway
	audit   audit.Store        // nil disables the usage log
	limiter *ratelimit.Limiter // nil skips TPM limiting (fallback mode)
	tracer  trace.Tracer
	log     *zap.Logger
}

func NewHandler(ledger *quota.Ledger, gateway *Gateway, auditStore audit.Store, limiter *ratelimit.Limiter, tracer trace.Tracer, log *zap.Logger) *Handler {
	return &Handler{
		ledger:  ledger,
		alloc:   quota.Allocator{Limit: ledger.DailyLimit()},
		gateway: gateway,
		audit:   auditStore,
		limiter: limiter,
		tracer:  tracer,
		log:     log,
	}
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages[] is required")
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "chat.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.email", req.Email),
		attribute.Int("chat.messages", len(req.Messages)),
	)

	if !h.gateway.Configured() {
		writeError(w, http.StatusInternalServerError, "completion service is not configured")
		return
	}

	adm, err := h.ledger.Admit(ctx, req.Email)
	if err != nil {
		h.log.Error("quota admit failed", zap.String("email", req.Email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "usage store unavailable")
		return
	}
	if !adm.Allowed {
		metrics.QuotaDenialsTotal.Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":           "daily token limit reached",
			"remaining_today": 0,
		})
		return
	}

	maxOutputTokens := h.alloc.Allocate(adm.Usage)
	span.SetAttributes(attribute.Int("chat.max_output_tokens", maxOutputTokens))

	// Best-effort per-minute throttle on top of the daily quota. Limiter
	// errors never deny service.
	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, req.Email, maxOutputTokens)
		if err != nil {
			h.log.Warn("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			w.Header().Set("Retry-After", "60s")
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":       "rate limit exceeded",
				"retry_after": "60s",
			})
			return
		}
	}

	resp, err := h.gateway.Complete(ctx, req.Messages, maxOutputTokens)
	if err != nil {
		var ue *provider.UpstreamError
		if !errors.As(err, &ue) {
			ue = &provider.UpstreamError{Status: http.StatusInternalServerError, Message: err.Error()}
		}
		h.log.Warn("upstream call failed",
			zap.String("email", req.Email),
			zap.Int("status", ue.Status),
			zap.String("message", ue.Message),
		)
		// Ledger untouched: token counts are only known after success.
		writeError(w, ue.Status, ue.Message)
		return
	}

	merged, err := h.ledger.Commit(ctx, adm.Key, resp.InputTokens, resp.OutputTokens)
	if err != nil {
		h.log.Error("quota commit failed", zap.String("key", adm.Key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record usage")
		return
	}

	metrics.ChatTokensTotal.WithLabelValues("input").Add(float64(resp.InputTokens))
	metrics.ChatTokensTotal.WithLabelValues("output").Add(float64(resp.OutputTokens))

	if h.audit != nil {
		entry := &audit.UsageLog{
			RequestID:    uuid.New().String(),
			Email:        req.Email,
			Day:          dayFromKey(adm.Key),
			Model:        resp.Model,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			Backend:      string(h.ledger.Backend()),
			LatencyMs:    time.Since(start).Milliseconds(),
		}
		go func() {
			if err := h.audit.LogUsage(context.Background(), entry); err != nil {
				h.log.Warn("audit log write failed", zap.Error(err))
			}
		}()
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply: resp.Content,
		Usage: usageSnapshot{
			InputTokens:    resp.InputTokens,
			OutputTokens:   resp.OutputTokens,
			TotalTokens:    resp.InputTokens + resp.OutputTokens,
			UsedToday:      merged.TotalTokens,
			RemainingToday: h.ledger.Remaining(merged),
		},
		Storage: string(h.ledger.Backend()),
	})
}

// HandleUsage returns the current-day usage snapshot for a user, without
// admitting or mutating anything.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	email := r.URL.Query().Get("email")
	if !emailPattern.MatchString(email) {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}

	adm, err := h.ledger.Admit(ctx, email)
	if err != nil {
		h.log.Error("usage lookup failed", zap.String("email", email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "usage store unavailable")
		return
	}

	body := map[string]interface{}{
		"email": email,
		"day":   dayFromKey(adm.Key),
		"usage": usageSnapshot{
			InputTokens:    adm.Usage.InputTokens,
			OutputTokens:   adm.Usage.OutputTokens,
			TotalTokens:    adm.Usage.TotalTokens,
			UsedToday:      adm.Usage.TotalTokens,
			RemainingToday: h.ledger.Remaining(adm.Usage),
		},
		"storage": string(h.ledger.Backend()),
	}

	if h.audit != nil {
		now := time.Now()
		logs, err := h.audit.GetUsageByEmail(ctx, email, now.AddDate(0, 0, -30), now)
		if err != nil {
			h.log.Warn("audit history lookup failed", zap.Error(err))
		} else {
			body["history"] = logs
		}
	}

	writeJSON(w, http.StatusOK, body)
}

func dayFromKey(key string) string {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
