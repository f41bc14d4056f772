// internal/audit/providers/anthropic.go
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"visibility-audit/internal/audit/prompts"
	"visibility-audit/internal/models"
)

// AnthropicProvider serves the claude platform via the Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *AnthropicProvider) Platform() models.Platform {
	return models.PlatformClaude
}

func (p *AnthropicProvider) Run(ctx context.Context, prompt prompts.PromptSpec, brandName, industry string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 800,
		System: []anthropic.TextBlockParam{
			{Text: prompts.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompts.BuildUserPrompt(brandName, industry, prompt.Text))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("messages create: %w", err)
	}

	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			return text.Text, nil
		}
	}
	return "", errors.New("no text content returned")
}
