package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"nse-pulse/metrics"
)

// systemMessage is the default system message for the market analyst
const systemMessage = "You are a meticulous Indian equity market analyst covering NSE-listed stocks. Base every statement on the data provided or on verifiable public news. Never invent figures, dates or events. When asked for JSON, reply with JSON only."

// ErrDisabled is returned when no AI provider is configured
var ErrDisabled = errors.New("AI provider is not configured")

// APIError is a non-success reply from the AI provider
type APIError struct {
	StatusCode int
	Body       string
	Attempts   int
}

// Error implements the error interface
func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("AI provider error %d after %d attempt(s): %s", e.StatusCode, e.Attempts, body)
}

// Options configures the client
type Options struct {
	Endpoint     string
	APIKey       string
	Model        string
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
	Temperature  float64
	MaxTokens    int
}

// Client is an OpenAI-compatible chat completions client.
// HTTP 429 is retried up to MaxRetries times, waiting attempt*RetryBackoff
// between tries; every other failure is returned immediately.
type Client struct {
	http         *resty.Client
	model        string
	maxRetries   int
	retryBackoff time.Duration
	temperature  float64
	maxTokens    int
}

// NewClient creates a new LLM client
func NewClient(opts Options) *Client {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2000
	}

	h := resty.New().
		SetBaseURL(strings.TrimRight(opts.Endpoint, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		h.SetAuthToken(opts.APIKey)
	}

	return &Client{
		http:         h,
		model:        opts.Model,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		temperature:  opts.Temperature,
		maxTokens:    opts.MaxTokens,
	}
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// ChatRequest represents an OpenAI chat completion request
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse represents an OpenAI chat completion response
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int     `json:"index"`
		Message Message `json:"message"`
		Finish  string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatCompletion sends a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}

	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	for attempt := 1; ; attempt++ {
		var chatResp ChatResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(reqBody).
			SetResult(&chatResp).
			Post("/chat/completions")
		if err != nil {
			metrics.AICalls.WithLabelValues("error").Inc()
			log.Error().Err(err).Int("attempt", attempt).Msg("AI provider request failed")
			return "", fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode() == http.StatusTooManyRequests && attempt <= c.maxRetries {
			metrics.AIRetries.Inc()
			wait := time.Duration(attempt) * c.retryBackoff
			log.Warn().Int("attempt", attempt).Dur("wait", wait).Msg("AI provider rate limited, retrying")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		if !resp.IsSuccess() {
			outcome := "error"
			if resp.StatusCode() == http.StatusTooManyRequests {
				outcome = "rate_limited"
			}
			metrics.AICalls.WithLabelValues(outcome).Inc()
			apiErr := &APIError{StatusCode: resp.StatusCode(), Body: resp.String(), Attempts: attempt}
			log.Error().Int("status", apiErr.StatusCode).Int("attempts", attempt).Msg("AI provider returned an error")
			return "", apiErr
		}

		if len(chatResp.Choices) == 0 {
			metrics.AICalls.WithLabelValues("error").Inc()
			return "", fmt.Errorf("no response choices returned")
		}
		metrics.AICalls.WithLabelValues("ok").Inc()
		return chatResp.Choices[0].Message.Content, nil
	}
}

// Analyze sends a single prompt with the default system message
func (c *Client) Analyze(ctx context.Context, prompt string) (string, error) {
	messages := []Message{
		{Role: "system", Content: systemMessage},
		{Role: "user", Content: prompt},
	}
	return c.ChatCompletion(ctx, messages)
}

// AnalyzeJSON sends prompt and decodes the JSON part of the reply into dest
func (c *Client) AnalyzeJSON(ctx context.Context, prompt string, dest interface{}) error {
	text, err := c.Analyze(ctx, prompt)
	if err != nil {
		return err
	}
	payload := ExtractJSON(text)
	if payload == "" {
		return fmt.Errorf("AI reply contained no JSON")
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return fmt.Errorf("failed to decode AI JSON: %w", err)
	}
	return nil
}

// ExtractJSON returns the JSON object or array embedded in an AI reply,
// tolerating markdown code fences and surrounding prose.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
