// internal/audit/providers/runner.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"visibility-audit/internal/audit/parser"
	"visibility-audit/internal/audit/prompts"
	"visibility-audit/internal/common/config"
	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/common/metrics"
	"visibility-audit/internal/models"
)

// ProgressFunc is invoked after each batch with the overall percentage.
// The runner waits for it before starting the next batch, so a persistence
// write inside the callback acts as natural backpressure.
type ProgressFunc func(ctx context.Context, percent int) error

// Runner fans evaluation prompts out across the configured providers.
//
// Prompts are processed in fixed-size batches to respect upstream rate
// limits; within a batch every (prompt, provider) call runs concurrently.
// A failed call degrades to an unclassified stub row so the result set
// always covers every (prompt, platform) pair exactly once.
type Runner struct {
	providers   []Provider
	log         logger.Logger
	batchSize   int
	callTimeout time.Duration
	parserOpts  parser.Options
}

// NewRunner builds the provider set from configuration. A platform without
// credentials gets a stub provider; perplexity has no integration yet and
// is always stubbed.
func NewRunner(cfg *config.Config, log logger.Logger) *Runner {
	var list []Provider

	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		list = append(list, NewOpenAIProvider(key, cfg.Providers.OpenAI.Model))
	} else {
		list = append(list, NewStubProvider(models.PlatformChatGPT))
	}

	if key := cfg.Providers.Anthropic.APIKey; key != "" {
		list = append(list, NewAnthropicProvider(key, cfg.Providers.Anthropic.Model))
	} else {
		list = append(list, NewStubProvider(models.PlatformClaude))
	}

	list = append(list, NewStubProvider(models.PlatformPerplexity))

	return &Runner{
		providers:   list,
		log:         log.With(map[string]interface{}{"component": "provider-runner"}),
		batchSize:   cfg.Audit.BatchSize,
		callTimeout: config.GetDuration(cfg.Audit.CallTimeout),
		parserOpts:  parser.Options{StrictBrandMatch: cfg.Audit.StrictBrandMatch},
	}
}

// NewRunnerWith builds a runner over an explicit provider set.
func NewRunnerWith(list []Provider, batchSize int, callTimeout time.Duration, log logger.Logger) *Runner {
	return &Runner{
		providers:   list,
		log:         log.With(map[string]interface{}{"component": "provider-runner"}),
		batchSize:   batchSize,
		callTimeout: callTimeout,
	}
}

// RunAll executes every prompt against every provider and returns one row
// per (prompt, platform) pair, grouped by ascending prompt index. Platform
// order within a prompt is not guaranteed; callers needing a deterministic
// order must sort.
//
// Progress after each batch is round(5 + done/total*90): 0-5% is reserved
// for job setup and 95-100% for persistence by the caller. A progress
// callback error aborts the run; provider errors never do.
func (r *Runner) RunAll(ctx context.Context, specs []prompts.PromptSpec, brandName, industry, jobID string, onProgress ProgressFunc) ([]models.PromptResult, error) {
	all := make([]models.PromptResult, 0, len(specs)*len(r.providers))

	for start := 0; start < len(specs); start += r.batchSize {
		end := min(start+r.batchSize, len(specs))
		batch := specs[start:end]

		batchRows := make([][]models.PromptResult, len(batch))
		var wg sync.WaitGroup
		for i, spec := range batch {
			wg.Add(1)
			go func(i int, spec prompts.PromptSpec) {
				defer wg.Done()
				batchRows[i] = r.runPrompt(ctx, spec, brandName, industry, jobID)
			}(i, spec)
		}
		wg.Wait()

		for _, rows := range batchRows {
			all = append(all, rows...)
		}

		if onProgress != nil {
			percent := int(math.Round(5 + float64(end)/float64(len(specs))*90))
			if err := onProgress(ctx, percent); err != nil {
				return nil, fmt.Errorf("progress callback: %w", err)
			}
		}
	}

	return all, nil
}

// runPrompt executes one prompt across all providers concurrently. Failures
// are isolated per provider: they surface as stub rows, never abort peers.
func (r *Runner) runPrompt(ctx context.Context, spec prompts.PromptSpec, brandName, industry, jobID string) []models.PromptResult {
	rows := make([]models.PromptResult, len(r.providers))

	var wg sync.WaitGroup
	for i, p := range r.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			rows[i] = r.callProvider(ctx, p, spec, brandName, industry, jobID)
		}(i, p)
	}
	wg.Wait()

	return rows
}

func (r *Runner) callProvider(ctx context.Context, p Provider, spec prompts.PromptSpec, brandName, industry, jobID string) models.PromptResult {
	row := models.PromptResult{
		AuditJobID:  jobID,
		PromptIndex: spec.Index,
		PromptText:  spec.Text,
		Platform:    p.Platform(),
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	started := time.Now()
	raw, err := p.Run(callCtx, spec, brandName, industry)
	metrics.ProviderCallDuration.WithLabelValues(string(p.Platform())).Observe(time.Since(started).Seconds())

	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			metrics.ProviderCalls.WithLabelValues(string(p.Platform()), "stubbed").Inc()
			return row
		}
		metrics.ProviderCalls.WithLabelValues(string(p.Platform()), "error").Inc()
		r.log.Warn("provider call failed", map[string]interface{}{
			"jobId":       jobID,
			"platform":    p.Platform(),
			"promptIndex": spec.Index,
			"error":       err.Error(),
		})
		return row
	}
	metrics.ProviderCalls.WithLabelValues(string(p.Platform()), "ok").Inc()

	parsed := parser.Parse(raw, brandName, r.parserOpts)

	row.RawResponse = &raw
	row.BrandMentioned = &parsed.BrandMentioned
	row.PositionBucket = &parsed.PositionBucket
	row.Competitors = parsed.Competitors
	row.Confidence = &parsed.Confidence
	if parsed.BrandMentioned {
		// sentiment is only meaningful for mentioned rows
		sentiment := parsed.Sentiment
		row.Sentiment = &sentiment
	}

	return row
}
