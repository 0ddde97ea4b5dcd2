package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/pavelanni/autograder/internal/llm/prompts"
)

const (
	detectTemperature = 0.2
	detectMaxTokens   = 512
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPromptVariant selects the prompt language.
func WithPromptVariant(v prompts.PromptVariant) Option {
	return func(c *Client) { c.variant = v }
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, opts ...Option) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	c := &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptSpanish,
	}
	for _, o := range opts {
		o(c)
	}
	if !prompts.IsValidVariant(string(c.variant)) {
		return nil, fmt.Errorf("invalid prompt variant %q", c.variant)
	}
	return c, nil
}

// Ping checks that the endpoint answers and knows about the configured model.
func (c *Client) Ping(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range models.Models {
		if m.ID == c.model || strings.TrimPrefix(m.ID, "models/") == c.model {
			return nil
		}
	}
	slog.Warn("model not listed by LLM endpoint", "model", c.model, "available", len(models.Models))
	return nil
}

// DetectAnswers asks the model which options are marked in the extracted
// document text. The model's reply is returned verbatim; it is untrusted free
// text and must be parsed by the caller.
func (c *Client) DetectAnswers(ctx context.Context, text string) (string, error) {
	prompt, err := prompts.BuildDetectPrompt(c.variant, text)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: detectTemperature,
		MaxTokens:   detectMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("LLM response", "raw", raw)
	return raw, nil
}
