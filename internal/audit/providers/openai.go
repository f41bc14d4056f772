// internal/audit/providers/openai.go
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"visibility-audit/internal/audit/prompts"
	"visibility-audit/internal/models"
)

// OpenAIProvider serves the chatgpt platform via the Chat Completions API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *OpenAIProvider) Platform() models.Platform {
	return models.PlatformChatGPT
}

func (p *OpenAIProvider) Run(ctx context.Context, prompt prompts.PromptSpec, brandName, industry string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompts.SystemPrompt),
			openai.UserMessage(prompts.BuildUserPrompt(brandName, industry, prompt.Text)),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(800),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
