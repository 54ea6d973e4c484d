// Package openai provides an OpenAI-compatible implementation of the
// llm.Provider interface.
//
// A custom base URL enables OpenRouter, Azure OpenAI, or local
// OpenAI-compatible endpoints:
//
//	provider, _ := openai.NewProvider("sk-...", openai.WithModel("gpt-4o"))
//	provider, _ := openai.NewProvider("key",
//	    openai.WithBaseURL("https://openrouter.ai/api/v1"))
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

// Provider implements llm.Provider against an OpenAI-compatible API.
type Provider struct {
	client openai.Client
	model  string
}

// Option configures a Provider.
type Option func(*providerConfig)

type providerConfig struct {
	model   string
	baseURL string
}

// WithModel sets the completion model.
func WithModel(model string) Option {
	return func(c *providerConfig) {
		c.model = model
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *providerConfig) {
		c.baseURL = baseURL
	}
}

// NewProvider creates a Provider. If apiKey is empty, OPENAI_API_KEY is
// consulted; if the base URL is unset, OPENAI_BASE_URL is consulted.
func NewProvider(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	cfg := providerConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.baseURL == "" {
		cfg.baseURL = os.Getenv("OPENAI_BASE_URL")
	}

	// Retry and breaker policy is owned by the resilience layer; the
	// SDK's built-in retries would hide overload signatures from it.
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Provider{
		client: openai.NewClient(clientOpts...),
		model:  cfg.model,
	}, nil
}

// Complete sends the messages to the chat completions endpoint and
// returns the first choice's content. Upstream error text is preserved
// in the wrapped error so the resilience layer can classify it.
func (p *Provider) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: convertMessages(messages),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response from model %s", p.model)
	}
	return resp.Choices[0].Message.Content, nil
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
