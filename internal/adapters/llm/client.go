// Package llm talks to an OpenAI-compatible chat completions endpoint.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o"

var ErrEmptyReply = errors.New("model returned no choices")

type Client struct {
	api         *openai.Client
	model       string
	retryConfig RetryConfig
	logger      *slog.Logger
	httpClient  *http.Client
	baseURL     string
}

var _ domain.TextGenerator = (*Client)(nil)

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a compatible gateway or a test server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) { c.retryConfig = cfg }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns nil when apiKey is empty; the AI features then fall back to
// their offline answers.
func New(apiKey string, opts ...Option) *Client {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	c := &Client{
		model:       DefaultModel,
		retryConfig: DefaultRetryConfig(),
		logger:      slog.Default(),
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryConfig.MaxAttempts < 1 {
		c.retryConfig.MaxAttempts = 1
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cfg.HTTPClient = c.httpClient
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// Generate sends one system and one user message and returns the first
// choice, retrying transient failures with backoff.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		text, err := c.complete(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if IsFatal(err) {
			return "", err
		}
		if attempt < c.retryConfig.MaxAttempts {
			wait := c.retryConfig.backoff(attempt)
			c.logger.Debug("chat completion failed, retrying",
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", wait,
				"err", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return "", lastErr
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", NewFatalError(ctx.Err())
		}
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", NewTransientError(ErrEmptyReply)
	}
	return resp.Choices[0].Message.Content, nil
}
