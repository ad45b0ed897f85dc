package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
)

type Provider interface {
	Name() string
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// ToolSpec describes one callable function offered to the model.
// Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is the model's request to invoke a tool. Arguments is the raw
// JSON the model produced; the agent layer parses and validates it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type CompletionRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

type Message struct {
	Role    string
	Content string
	// ToolCallID links a "tool" role message back to the call it answers.
	ToolCallID string
	// ToolCalls is set on assistant messages replayed into history.
	ToolCalls []ToolCall
}

type CompletionResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	ModelName    string
	Usage        Usage
	Latency      time.Duration
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Client struct {
	providers       map[string]Provider
	defaultProvider string
	timeout         time.Duration
	maxAttempts     int
}

func NewClient(cfg *config.LLMConfig) (*Client, error) {
	c := &Client{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.DefaultProvider,
		timeout:         cfg.Timeout,
		maxAttempts:     cfg.MaxAttempts,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 1
	}

	if cfg.OllamaBaseURL != "" {
		c.providers["ollama"] = NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
	}

	if cfg.OpenAIAPIKey != "" {
		c.providers["openai"] = NewOpenAIProvider(cfg.OpenAIAPIKey)
	}

	if cfg.AnthropicAPIKey != "" {
		c.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicAPIKey)
	}

	if cfg.OpenRouterAPIKey != "" {
		c.providers["openrouter"] = NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	}

	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	if _, ok := c.providers[c.defaultProvider]; !ok {
		for name := range c.providers {
			c.defaultProvider = name
			break
		}
	}

	return c, nil
}

// Complete calls the default provider, retrying transient failures up to
// the configured attempt limit with exponential backoff.
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return c.CompleteWithProvider(ctx, c.defaultProvider, req)
}

func (c *Client) CompleteWithProvider(ctx context.Context, providerName string, req *CompletionRequest) (*CompletionResponse, error) {
	provider, ok := c.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", providerName)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := provider.Complete(callCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%s after %d attempts: %w", providerName, c.maxAttempts, lastErr)
}

// CompleteWithFallback tries every configured provider until one succeeds.
func (c *Client) CompleteWithFallback(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var lastErr error

	for name, provider := range c.providers {
		resp, err := provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = fmt.Errorf("%s: %w", name, err)
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}
