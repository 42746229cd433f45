// Package relay is the backend proxy: it accepts the extension's generate
// and summarize requests and forwards them to a generative-language
// upstream, returning a uniform {ok, text, raw} envelope.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// ErrMissingCredential is returned when the selected provider has no API
// key. This is a configuration error: the relay refuses to start rather
// than failing every request.
var ErrMissingCredential = errors.New("missing API credential")

// Provider performs one completion against an upstream model.
type Provider interface {
	// Generate returns the completion text and the provider's raw
	// response for the client's diagnostics.
	Generate(ctx context.Context, prompt string, maxTokens int) (text string, raw any, err error)
	// Name identifies the provider in logs.
	Name() string
}

// GeminiProvider talks to the Google generative-language API.
type GeminiProvider struct {
	llm   *googleai.GoogleAI
	model string
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w (set GEMINI_API_KEY)", ErrMissingCredential)
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &GeminiProvider{llm: llm, model: model}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Generate implements Provider.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, any, error) {
	resp, err := p.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", nil, err
	}
	if len(resp.Choices) == 0 {
		return "", resp, errors.New("gemini: empty response")
	}
	return resp.Choices[0].Content, resp, nil
}

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates an Anthropic-backed provider.
func NewAnthropicProvider(apiKey, model string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w (set ANTHROPIC_API_KEY)", ErrMissingCredential)
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Generate implements Provider.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, any, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), msg, nil
}
