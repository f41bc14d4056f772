// internal/store/results_test.go
package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visibility-audit/internal/models"
)

func classifiedResult(index int, platform models.Platform, mentioned bool) models.PromptResult {
	bucket := models.PositionNotMentioned
	sentiment := models.SentimentNeutral
	confidence := 0.85
	raw := `{"recommendations":[]}`
	row := models.PromptResult{
		PromptIndex:    index,
		PromptText:     "prompt text",
		Platform:       platform,
		RawResponse:    &raw,
		BrandMentioned: &mentioned,
		PositionBucket: &bucket,
		Confidence:     &confidence,
		Competitors:    []string{"Rival Co"},
	}
	if mentioned {
		bucket = models.PositionTop1
		row.PositionBucket = &bucket
		row.Sentiment = &sentiment
	}
	return row
}

func TestInsertResults_CommitsAllRows(t *testing.T) {
	s, mock := newTestStore(t)

	rows := []models.PromptResult{
		classifiedResult(0, models.PlatformChatGPT, true),
		{PromptIndex: 0, PromptText: "prompt text", Platform: models.PlatformPerplexity},
	}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO audit_prompt_results")
	mock.ExpectExec("INSERT INTO audit_prompt_results").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_prompt_results").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.InsertResults(context.Background(), "job-1", rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertResults_RollsBackOnError(t *testing.T) {
	s, mock := newTestStore(t)

	rows := []models.PromptResult{
		classifiedResult(0, models.PlatformChatGPT, true),
	}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO audit_prompt_results")
	mock.ExpectExec("INSERT INTO audit_prompt_results").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.InsertResults(context.Background(), "job-1", rows)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResults_DecodesRows(t *testing.T) {
	s, mock := newTestStore(t)

	columns := []string{
		"id", "audit_job_id", "prompt_index", "prompt_text", "platform",
		"raw_response", "brand_mentioned", "position_bucket", "sentiment",
		"competitors_json", "confidence",
	}
	mock.ExpectQuery("SELECT (.+) FROM audit_prompt_results").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("r1", "job-1", 0, "prompt a", "chatgpt",
				`{"recommendations":[]}`, true, "top_1", "positive",
				[]byte(`["Rival Co","Other Inc"]`), 0.85).
			AddRow("r2", "job-1", 0, "prompt a", "perplexity",
				nil, nil, nil, nil,
				[]byte(`[]`), nil))

	results, err := s.ListResults(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	classified := results[0]
	assert.True(t, classified.Mentioned())
	assert.Equal(t, models.PositionTop1, *classified.PositionBucket)
	assert.Equal(t, models.SentimentPositive, *classified.Sentiment)
	assert.Equal(t, []string{"Rival Co", "Other Inc"}, classified.Competitors)

	stub := results[1]
	assert.False(t, stub.Classified())
	assert.Nil(t, stub.RawResponse)
	assert.Empty(t, stub.Competitors)

	assert.NoError(t, mock.ExpectationsWereMet())
}
