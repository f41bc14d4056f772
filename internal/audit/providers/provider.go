// internal/audit/providers/provider.go
package providers

import (
	"context"
	"errors"

	"visibility-audit/internal/audit/prompts"
	"visibility-audit/internal/models"
)

// ErrUnavailable marks a provider that has no credentials or no integration
// in this deployment. The runner records a stub row instead of treating it
// as a call failure.
var ErrUnavailable = errors.New("provider unavailable")

// Provider executes one evaluation question against a single LLM backend
// and returns the raw response text. Implementations construct any per-call
// state locally; a Provider must be safe for concurrent use.
type Provider interface {
	Platform() models.Platform
	Run(ctx context.Context, prompt prompts.PromptSpec, brandName, industry string) (string, error)
}

// StubProvider stands in for a platform that cannot be called. Every run
// yields ErrUnavailable, so each of its (prompt, platform) pairs surfaces as
// an unclassified row rather than being omitted from the result set.
type StubProvider struct {
	platform models.Platform
}

func NewStubProvider(platform models.Platform) *StubProvider {
	return &StubProvider{platform: platform}
}

func (p *StubProvider) Platform() models.Platform {
	return p.platform
}

func (p *StubProvider) Run(ctx context.Context, prompt prompts.PromptSpec, brandName, industry string) (string, error) {
	return "", ErrUnavailable
}
