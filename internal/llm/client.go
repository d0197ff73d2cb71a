package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"akademik-ai/internal/contextutil"
)

var (
	// ErrAllModelsExhausted is returned after every candidate model failed.
	ErrAllModelsExhausted = errors.New("all candidate models exhausted")
	// ErrContentRejected is returned when the provider refused the prompt
	// itself. Retrying on another model is pointless.
	ErrContentRejected = errors.New("prompt rejected by provider")
)

// Client is a client for an OpenAI-compatible chat completions API with
// ordered multi-model fallback. A rate limit, timeout or server error on one
// model moves to the next candidate; a prompt-level rejection fails the whole
// request.
type Client struct {
	BaseURL     string
	APIKey      string
	Models      []string
	Timeout     time.Duration
	Temperature float64
	RetrySleep  time.Duration

	client *http.Client
	sleep  func(time.Duration)
}

// NewClient creates a new LLM client. models is the ordered candidate list,
// primary first; it must not be empty.
func NewClient(baseURL, apiKey string, models []string, timeout time.Duration, temperature float64, retrySleep time.Duration) *Client {
	return &Client{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Models:      models,
		Timeout:     timeout,
		Temperature: temperature,
		RetrySleep:  retrySleep,
		client:      http.DefaultClient,
		sleep:       time.Sleep,
	}
}

// ChatRequest represents the request payload for chat completions.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// ChatChoice represents a single choice in the chat response.
type ChatChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse represents the response from the chat completions API.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Choices []ChatChoice `json:"choices"`
}

// Invoke sends the prompt as a single user message through the fallback chain.
func (c *Client) Invoke(ctx context.Context, prompt string) (Result, error) {
	return c.InvokeMessages(ctx, []Message{{Role: "user", Content: prompt}}, ChatParams{})
}

// InvokeMessages walks the candidate list in order, returning the first
// successful completion. Each attempt gets its own timeout so one hung model
// cannot consume the whole request budget.
func (c *Client) InvokeMessages(ctx context.Context, messages []Message, params ChatParams) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	candidates := c.Models
	if params.Model != "" {
		candidates = prependModel(params.Model, c.Models)
	}
	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("no candidate models configured")
	}

	var lastErr error
	for idx, model := range candidates {
		if ctx.Err() != nil {
			break
		}

		started := time.Now()
		text, err := c.chatOnce(ctx, model, messages, params)
		if err == nil {
			logger.InfoContext(ctx, "chat completion succeeded",
				"model", model,
				"attempt", idx+1,
				"duration_ms", time.Since(started).Milliseconds(),
			)
			return Result{
				Text:         text,
				Model:        model,
				FallbackUsed: idx > 0,
				Duration:     time.Since(started),
			}, nil
		}

		if errors.Is(err, ErrContentRejected) {
			logger.WarnContext(ctx, "prompt rejected, aborting fallback chain", "model", model, "error", err)
			return Result{}, err
		}

		lastErr = err
		logger.WarnContext(ctx, "model attempt failed",
			"model", model,
			"attempt", idx+1,
			"error", err,
		)
		if idx < len(candidates)-1 && c.RetrySleep > 0 {
			c.sleep(c.RetrySleep)
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return Result{}, fmt.Errorf("%w: %v", ErrAllModelsExhausted, lastErr)
}

// chatOnce performs a single chat completion attempt against one model.
func (c *Client) chatOnce(ctx context.Context, model string, messages []Message, params ChatParams) (string, error) {
	attemptCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	temperature := c.Temperature
	if params.Temperature != 0 {
		temperature = params.Temperature
	}

	payload := ChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)
	req, err := http.NewRequestWithContext(attemptCtx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		// 400/403 mean the prompt itself is the problem; every other failure
		// is worth trying on the next candidate.
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: status %d: %s", ErrContentRejected, resp.StatusCode, string(raw))
		}
		return "", fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func prependModel(model string, models []string) []string {
	out := make([]string, 0, len(models)+1)
	out = append(out, model)
	for _, m := range models {
		if m != model {
			out = append(out, m)
		}
	}
	return out
}
