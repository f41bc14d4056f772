// internal/audit/providers/runner_test.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visibility-audit/internal/audit/prompts"
	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/models"
)

type fakeProvider struct {
	platform models.Platform
	response string
	err      error
	calls    atomic.Int64
}

func (p *fakeProvider) Platform() models.Platform { return p.platform }

func (p *fakeProvider) Run(ctx context.Context, prompt prompts.PromptSpec, brandName, industry string) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

const mentionedResponse = `{"recommendations":[{"name":"Acme","rank":1,"sentiment":"positive","reasoning":"strong"}],"query_understood":true}`

func newTestRunner(t *testing.T, list []Provider) *Runner {
	t.Helper()
	return NewRunnerWith(list, 3, time.Second, logger.NewNoOpLogger())
}

func TestRunAll_CoversEveryPromptPlatformPair(t *testing.T) {
	chatgpt := &fakeProvider{platform: models.PlatformChatGPT, response: mentionedResponse}
	claude := &fakeProvider{platform: models.PlatformClaude, err: errors.New("rate limited")}
	perplexity := &fakeProvider{platform: models.PlatformPerplexity, err: ErrUnavailable}

	r := newTestRunner(t, []Provider{chatgpt, claude, perplexity})
	specs := prompts.BuildPrompts("Acme", "plumbing")

	rows, err := r.RunAll(context.Background(), specs, "Acme", "plumbing", "job-1", nil)
	require.NoError(t, err)
	require.Len(t, rows, len(specs)*3)

	seen := make(map[string]int)
	for _, row := range rows {
		seen[fmt.Sprintf("%d/%s", row.PromptIndex, row.Platform)]++
	}
	for _, spec := range specs {
		for _, platform := range models.AllPlatforms() {
			key := fmt.Sprintf("%d/%s", spec.Index, platform)
			assert.Equal(t, 1, seen[key], "pair %s should appear exactly once", key)
		}
	}
}

func TestRunAll_FailuresDegradeToStubRows(t *testing.T) {
	chatgpt := &fakeProvider{platform: models.PlatformChatGPT, response: mentionedResponse}
	claude := &fakeProvider{platform: models.PlatformClaude, err: errors.New("boom")}
	perplexity := &fakeProvider{platform: models.PlatformPerplexity, err: ErrUnavailable}

	r := newTestRunner(t, []Provider{chatgpt, claude, perplexity})
	specs := prompts.BuildPrompts("Acme", "plumbing")

	rows, err := r.RunAll(context.Background(), specs, "Acme", "plumbing", "job-1", nil)
	require.NoError(t, err)

	for _, row := range rows {
		switch row.Platform {
		case models.PlatformChatGPT:
			require.True(t, row.Classified())
			assert.True(t, *row.BrandMentioned)
			assert.Equal(t, models.PositionTop1, *row.PositionBucket)
			require.NotNil(t, row.Sentiment)
			assert.Equal(t, models.SentimentPositive, *row.Sentiment)
			require.NotNil(t, row.RawResponse)
		default:
			assert.False(t, row.Classified(), "failed call should yield an unclassified row")
			assert.Nil(t, row.RawResponse)
			assert.Nil(t, row.Sentiment)
		}
	}
}

func TestRunAll_AllProvidersDownStillCompletes(t *testing.T) {
	list := []Provider{
		NewStubProvider(models.PlatformChatGPT),
		NewStubProvider(models.PlatformClaude),
		NewStubProvider(models.PlatformPerplexity),
	}

	r := newTestRunner(t, list)
	specs := prompts.BuildPrompts("Acme", "plumbing")

	rows, err := r.RunAll(context.Background(), specs, "Acme", "plumbing", "job-1", nil)
	require.NoError(t, err)
	require.Len(t, rows, len(specs)*3)
	for _, row := range rows {
		assert.False(t, row.Classified())
	}
}

func TestRunAll_ProgressSequence(t *testing.T) {
	chatgpt := &fakeProvider{platform: models.PlatformChatGPT, response: mentionedResponse}
	claude := &fakeProvider{platform: models.PlatformClaude, response: mentionedResponse}
	perplexity := &fakeProvider{platform: models.PlatformPerplexity, err: ErrUnavailable}

	r := newTestRunner(t, []Provider{chatgpt, claude, perplexity})
	specs := prompts.BuildPrompts("Acme", "plumbing")
	require.Len(t, specs, 10)

	var reported []int
	_, err := r.RunAll(context.Background(), specs, "Acme", "plumbing", "job-1", func(ctx context.Context, percent int) error {
		reported = append(reported, percent)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{32, 59, 86, 95}, reported)
	for i := 1; i < len(reported); i++ {
		assert.GreaterOrEqual(t, reported[i], reported[i-1])
	}
	assert.LessOrEqual(t, reported[len(reported)-1], 100)
}

func TestRunAll_ProgressErrorAbortsRun(t *testing.T) {
	chatgpt := &fakeProvider{platform: models.PlatformChatGPT, response: mentionedResponse}

	r := newTestRunner(t, []Provider{chatgpt})
	specs := prompts.BuildPrompts("Acme", "plumbing")

	wantErr := errors.New("job cancelled")
	rows, err := r.RunAll(context.Background(), specs, "Acme", "plumbing", "job-1", func(ctx context.Context, percent int) error {
		return wantErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Nil(t, rows)

	// only the first batch should have run
	assert.Equal(t, int64(3), chatgpt.calls.Load())
}

func TestRunAll_BatchesLimitConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	slow := &slowProvider{platform: models.PlatformChatGPT, inFlight: &inFlight, peak: &peak}

	r := newTestRunner(t, []Provider{slow})
	specs := prompts.BuildPrompts("Acme", "plumbing")

	_, err := r.RunAll(context.Background(), specs, "Acme", "plumbing", "job-1", nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int64(3))
}

type slowProvider struct {
	platform models.Platform
	inFlight *atomic.Int64
	peak     *atomic.Int64
}

func (p *slowProvider) Platform() models.Platform { return p.platform }

func (p *slowProvider) Run(ctx context.Context, prompt prompts.PromptSpec, brandName, industry string) (string, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		current := p.peak.Load()
		if n <= current || p.peak.CompareAndSwap(current, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return "", ErrUnavailable
}
