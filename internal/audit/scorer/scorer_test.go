// internal/audit/scorer/scorer_test.go
package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visibility-audit/internal/models"
)

func classifiedRow(platform models.Platform, promptIndex int, promptText string, mentioned bool, bucket models.PositionBucket, sentiment models.Sentiment) models.PromptResult {
	confidence := 0.85
	if !mentioned {
		confidence = 0
	}
	return models.PromptResult{
		AuditJobID:     "job-1",
		PromptIndex:    promptIndex,
		PromptText:     promptText,
		Platform:       platform,
		BrandMentioned: &mentioned,
		PositionBucket: &bucket,
		Sentiment:      &sentiment,
		Competitors:    []string{},
		Confidence:     &confidence,
	}
}

func stubRow(platform models.Platform, promptIndex int, promptText string) models.PromptResult {
	return models.PromptResult{
		AuditJobID:  "job-1",
		PromptIndex: promptIndex,
		PromptText:  promptText,
		Platform:    platform,
	}
}

func TestComputeScores_Formula(t *testing.T) {
	// 10 chatgpt results: 4 top_1 + 2 top_3 all positive, 4 not mentioned.
	// mentionRate 0.6, avgPositionWeight (4*1.0+2*0.8)/10 = 0.56,
	// avgSentimentWeight 1.0 -> round(24 + 19.6 + 25) = 69.
	var results []models.PromptResult
	for i := 1; i <= 4; i++ {
		results = append(results, classifiedRow(models.PlatformChatGPT, i, "q", true, models.PositionTop1, models.SentimentPositive))
	}
	for i := 5; i <= 6; i++ {
		results = append(results, classifiedRow(models.PlatformChatGPT, i, "q", true, models.PositionTop3, models.SentimentPositive))
	}
	for i := 7; i <= 10; i++ {
		results = append(results, classifiedRow(models.PlatformChatGPT, i, "q", false, models.PositionNotMentioned, models.SentimentNeutral))
	}

	score := ComputeScores(results)

	assert.Equal(t, 69, score.Visibility)
	assert.InDelta(t, 0.6, score.MentionRate, 1e-9)

	require.Len(t, score.Platforms, 3)
	assert.Equal(t, models.PlatformChatGPT, score.Platforms[0].Platform)
	assert.Equal(t, 69, score.Platforms[0].Score)
	assert.Equal(t, 10, score.Platforms[0].PromptCount)
	assert.Equal(t, 0, score.Platforms[1].Score)
	assert.Equal(t, 0, score.Platforms[2].PromptCount)
}

func TestComputeScores_EmptyInput(t *testing.T) {
	score := ComputeScores(nil)

	assert.Equal(t, 0, score.Visibility)
	assert.Zero(t, score.MentionRate)
	require.Len(t, score.Platforms, 3)
	for _, ps := range score.Platforms {
		assert.Equal(t, 0, ps.Score)
		assert.Zero(t, ps.MentionRate)
		assert.Equal(t, 0, ps.PromptCount)
	}
}

func TestComputeScores_StubRowsStayInDenominator(t *testing.T) {
	// 5 mentioned top_1 positive + 5 stub rows: stubs dilute the mention
	// rate and position weight but are not treated as classified misses.
	var results []models.PromptResult
	for i := 1; i <= 5; i++ {
		results = append(results, classifiedRow(models.PlatformClaude, i, "q", true, models.PositionTop1, models.SentimentPositive))
	}
	for i := 6; i <= 10; i++ {
		results = append(results, stubRow(models.PlatformClaude, i, "q"))
	}

	score := ComputeScores(results)

	// 40*0.5 + 35*0.5 + 25*1.0 = 62.5 -> 63
	assert.Equal(t, 63, score.Platforms[1].Score)
	assert.InDelta(t, 0.5, score.Platforms[1].MentionRate, 1e-9)
}

func TestComputeScores_SummaryThresholds(t *testing.T) {
	buildUniform := func(mentioned int, bucket models.PositionBucket, sentiment models.Sentiment) []models.PromptResult {
		var results []models.PromptResult
		for i := 1; i <= mentioned; i++ {
			results = append(results, classifiedRow(models.PlatformChatGPT, i, "q", true, bucket, sentiment))
		}
		for i := mentioned + 1; i <= 10; i++ {
			results = append(results, classifiedRow(models.PlatformChatGPT, i, "q", false, models.PositionNotMentioned, models.SentimentNeutral))
		}
		return results
	}

	strong := ComputeScores(buildUniform(10, models.PositionTop1, models.SentimentPositive))
	assert.Equal(t, 100, strong.Visibility)
	assert.Contains(t, strong.Summary, "Strong")

	moderate := ComputeScores(buildUniform(5, models.PositionTop3, models.SentimentNeutral))
	// 40*0.5 + 35*0.4 + 25*0.6 = 49
	assert.Equal(t, 49, moderate.Visibility)
	assert.Contains(t, moderate.Summary, "Moderate")

	low := ComputeScores(buildUniform(0, models.PositionNotMentioned, models.SentimentNeutral))
	assert.Equal(t, 0, low.Visibility)
	assert.Contains(t, low.Summary, "Low")
}

func TestGenerateQuickWins_CapAndOrder(t *testing.T) {
	// Every platform misses all 10 prompts, one prompt is agency-targeted,
	// and one result carries negative sentiment: five rules fire, only the
	// first three survive the cap, in platform declaration order.
	var results []models.PromptResult
	for _, platform := range models.AllPlatforms() {
		for i := 1; i <= 10; i++ {
			text := "generic question"
			if i == 6 {
				text = "Which CRM platforms are best for agencies?"
			}
			row := classifiedRow(platform, i, text, false, models.PositionNotMentioned, models.SentimentNeutral)
			if platform == models.PlatformChatGPT && i == 1 {
				row = classifiedRow(platform, i, text, true, models.PositionMentionedLate, models.SentimentNegative)
			}
			results = append(results, row)
		}
	}

	wins := GenerateQuickWins(results, "Acme", "CRM")

	require.Len(t, wins, 3)
	assert.Contains(t, wins[0], "ChatGPT")
	assert.Contains(t, wins[1], "Claude")
	assert.Contains(t, wins[2], "Perplexity")
}

func TestGenerateQuickWins_AgencyAndSentimentRules(t *testing.T) {
	results := []models.PromptResult{
		classifiedRow(models.PlatformChatGPT, 6, "Which CRM platforms are best for agencies?", false, models.PositionNotMentioned, models.SentimentNeutral),
		classifiedRow(models.PlatformChatGPT, 1, "q", true, models.PositionTop1, models.SentimentNegative),
	}

	wins := GenerateQuickWins(results, "Acme", "CRM")

	require.Len(t, wins, 3)
	assert.Contains(t, wins[0], "agency-specific")
	assert.Contains(t, wins[1], "Negative sentiment detected in 1 result(s)")
	// third entry is a generic filler
	assert.Contains(t, wins[2], "comparison page")
}

func TestGenerateQuickWins_GenericBackfill(t *testing.T) {
	// A strong result set fires no rules; both generic fillers are used.
	var results []models.PromptResult
	for i := 1; i <= 10; i++ {
		for _, platform := range models.AllPlatforms() {
			results = append(results, classifiedRow(platform, i, "q", true, models.PositionTop1, models.SentimentPositive))
		}
	}

	wins := GenerateQuickWins(results, "Acme", "CRM")

	require.Len(t, wins, 2)
	assert.Contains(t, wins[0], `"Acme vs competitors"`)
	assert.Contains(t, wins[1], "G2, Capterra, and Trustpilot")
}

func TestGenerateQuickWins_StubPlatformCountsAsMissed(t *testing.T) {
	// A fully stubbed platform (e.g. perplexity without credentials) still
	// triggers the platform-miss rule.
	var results []models.PromptResult
	for i := 1; i <= 10; i++ {
		results = append(results, stubRow(models.PlatformPerplexity, i, "q"))
	}

	wins := GenerateQuickWins(results, "Acme", "CRM")

	require.NotEmpty(t, wins)
	assert.Contains(t, wins[0], "Perplexity")
	assert.Contains(t, wins[0], "10/10")
}
