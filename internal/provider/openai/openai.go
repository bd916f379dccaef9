package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/padhai-ai/chat-gateway/internal/provider"
)

type OpenAIProvider struct {
	apiKey  string
	baseURL string
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Model   string         `json:"model"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// openAIErrorBody covers the two error shapes the API emits: the usual
// nested {"error": {"message": ...}} and a flat {"message": ...}.
type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func New(apiKey string) provider.Provider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	openAIReq := p.mapRequest(req)
	body, err := json.Marshal(openAIReq)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &provider.UpstreamError{
			Status:  resp.StatusCode,
			Message: extractErrorMessage(respBody),
		}
	}

	var openAIResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&openAIResp); err != nil {
		return nil, &provider.UpstreamError{
			Status:  http.StatusBadGateway,
			Message: fmt.Sprintf("malformed upstream response: %v", err),
		}
	}

	if len(openAIResp.Choices) == 0 {
		return nil, &provider.UpstreamError{
			Status:  http.StatusBadGateway,
			Message: "upstream returned no choices",
		}
	}

	return &provider.Response{
		ID:           openAIResp.ID,
		Content:      openAIResp.Choices[0].Message.Content,
		InputTokens:  openAIResp.Usage.PromptTokens,
		OutputTokens: openAIResp.Usage.CompletionTokens,
		Model:        openAIResp.Model,
	}, nil
}

func (p *OpenAIProvider) mapRequest(req *provider.Request) openAIRequest {
	messages := make([]openAIMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openAIMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	return openAIRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// extractErrorMessage pulls the error detail out of an upstream error body,
// in order of preference: error.message, message, then the raw body.
func extractErrorMessage(body []byte) string {
	var eb openAIErrorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error.Message != "" {
			return eb.Error.Message
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return "upstream request failed"
	}
	return raw
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Configured() bool {
	return p.apiKey != ""
}
