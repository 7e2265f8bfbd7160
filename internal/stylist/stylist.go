package stylist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/stylevault/backend/internal/errors"
	"github.com/stylevault/backend/internal/logger"
	"github.com/stylevault/backend/internal/metrics"
)

const (
	requestTimeout = 60 * time.Second
	// Minimum spacing between completion calls; the upstream API
	// throttles bursts hard.
	rateLimitDelay = 500 * time.Millisecond
	// How many trailing conversation messages survive a truncation
	// retry. The system prompt is always kept.
	keepRecentMessages = 5
)

// Message is one chat-completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client talks to an OpenAI-compatible chat-completions API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	model         string
	log           *logger.Logger
	lastRequest   time.Time
	rateLimitLock sync.Mutex
}

// NewClient creates a stylist API client. baseURL is the API root
// (e.g. https://api.openai.com/v1) without a trailing slash.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		log:     logger.Default().WithComponent("stylist"),
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends the conversation to the completion API and returns
// the assistant's reply. When the API reports the conversation exceeds
// its context window the history is truncated to the system prompt
// plus the most recent messages and the call is retried once.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	reply, err := c.complete(ctx, messages)
	if err == nil {
		return reply, nil
	}

	if isContextLengthError(err) && len(messages) > keepRecentMessages+1 {
		truncated := truncateHistory(messages, keepRecentMessages)
		c.log.Warn(ctx, "conversation exceeded context window, retrying truncated", map[string]interface{}{
			"original_messages":  len(messages),
			"truncated_messages": len(truncated),
		})
		return c.complete(ctx, truncated)
	}

	return "", err
}

func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	var reply string
	err := apperrors.Retry(ctx, apperrors.StylistRetryConfig(), func(ctx context.Context) error {
		r, err := c.doRequest(ctx, messages)
		if err != nil {
			return err
		}
		reply = r
		return nil
	})
	if err != nil {
		metrics.Default().IncCounter("stylist_completion_errors_total")
		return "", err
	}
	metrics.Default().IncCounter("stylist_completions_total")
	return reply, nil
}

func (c *Client) doRequest(ctx context.Context, messages []Message) (string, error) {
	c.enforceRateLimit()

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.ExternalTimeout("stylist").WithCause(err)
		}
		return "", apperrors.StylistError("stylist request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.StylistError("failed to read stylist response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.apiError(resp.StatusCode, body)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", apperrors.StylistError("failed to parse stylist response").WithCause(err)
	}
	if len(chatResp.Choices) == 0 {
		return "", apperrors.StylistError("stylist returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// apiError maps an upstream error response onto an AppError. Client
// mistakes (bad key, malformed request, exceeded context) come back as
// non-retryable; throttling and upstream failures stay retryable.
func (c *Client) apiError(status int, body []byte) error {
	var apiErr apiErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	message := apiErr.Error.Message
	if message == "" {
		message = fmt.Sprintf("stylist API returned status %d", status)
	}

	appErr := apperrors.StylistError(message).WithDetails(map[string]any{
		"status": status,
		"code":   apiErr.Error.Code,
	})
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		// Retrying a rejected request verbatim will not help.
		appErr.Category = apperrors.CategoryClient
	}
	return appErr
}

func (c *Client) enforceRateLimit() {
	c.rateLimitLock.Lock()
	defer c.rateLimitLock.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < rateLimitDelay {
		time.Sleep(rateLimitDelay - elapsed)
	}
	c.lastRequest = time.Now()
}

// truncateHistory keeps any leading system messages plus the last n
// conversation messages.
func truncateHistory(messages []Message, n int) []Message {
	systemEnd := 0
	for systemEnd < len(messages) && messages[systemEnd].Role == RoleSystem {
		systemEnd++
	}

	rest := messages[systemEnd:]
	if len(rest) > n {
		rest = rest[len(rest)-n:]
	}

	truncated := make([]Message, 0, systemEnd+len(rest))
	truncated = append(truncated, messages[:systemEnd]...)
	truncated = append(truncated, rest...)
	return truncated
}

func isContextLengthError(err error) bool {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		return false
	}
	if code, ok := appErr.Details["code"].(string); ok && code == "context_length_exceeded" {
		return true
	}
	msg := strings.ToLower(appErr.Message)
	return strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context")
}
