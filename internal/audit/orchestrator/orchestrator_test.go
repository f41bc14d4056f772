// internal/audit/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visibility-audit/internal/audit/prompts"
	"visibility-audit/internal/audit/providers"
	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type mockJobStore struct {
	job *models.AuditJob

	claimResult  bool
	claimErr     error
	insertErr    error
	completeErr  error
	progressErr  error
	sweptOlder   time.Duration
	progress     []int
	completed    *int
	failedWith   *string
	insertedRows []models.PromptResult
}

func (m *mockJobStore) GetJob(ctx context.Context, id string) (*models.AuditJob, error) {
	if m.job == nil {
		return nil, errors.New("no job")
	}
	return m.job, nil
}

func (m *mockJobStore) ClaimJob(ctx context.Context, id string) (bool, error) {
	return m.claimResult, m.claimErr
}

func (m *mockJobStore) UpdateProgress(ctx context.Context, id string, percent int) error {
	if m.progressErr != nil {
		return m.progressErr
	}
	m.progress = append(m.progress, percent)
	return nil
}

func (m *mockJobStore) CompleteJob(ctx context.Context, id string, visibilityScore int) error {
	if m.completeErr != nil {
		return m.completeErr
	}
	m.completed = &visibilityScore
	return nil
}

func (m *mockJobStore) FailJob(ctx context.Context, id, message string) error {
	m.failedWith = &message
	return nil
}

func (m *mockJobStore) InsertResults(ctx context.Context, jobID string, rows []models.PromptResult) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.insertedRows = rows
	return nil
}

func (m *mockJobStore) SweepStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	m.sweptOlder = olderThan
	return 0, nil
}

type mockRunner struct {
	rows []models.PromptResult
	err  error
}

func (m *mockRunner) RunAll(ctx context.Context, specs []prompts.PromptSpec, brandName, industry, jobID string, onProgress providers.ProgressFunc) ([]models.PromptResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if onProgress != nil {
		if err := onProgress(ctx, 59); err != nil {
			return nil, err
		}
	}
	return m.rows, nil
}

type mockArchiver struct {
	archived bool
	err      error
}

func (m *mockArchiver) ArchiveAudit(ctx context.Context, job *models.AuditJob, score *models.AuditScore, results []models.PromptResult) error {
	m.archived = true
	return m.err
}

// ==========================
// Test Helper Functions
// ==========================

func queuedJob() *models.AuditJob {
	return &models.AuditJob{
		ID:        "job-1",
		BrandName: "Acme",
		Industry:  "plumbing",
		Status:    models.AuditStatusQueued,
	}
}

func mentionedRow(platform models.Platform) models.PromptResult {
	mentioned := true
	bucket := models.PositionTop1
	sentiment := models.SentimentPositive
	confidence := 0.85
	return models.PromptResult{
		Platform:       platform,
		BrandMentioned: &mentioned,
		PositionBucket: &bucket,
		Sentiment:      &sentiment,
		Confidence:     &confidence,
	}
}

func newTestOrchestrator(t *testing.T, jobs *mockJobStore, runner *mockRunner, archiver Archiver) *Orchestrator {
	t.Helper()
	return New(jobs, runner, archiver, nil, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestRun_HappyPath(t *testing.T) {
	jobs := &mockJobStore{job: queuedJob(), claimResult: true}
	runner := &mockRunner{rows: []models.PromptResult{
		mentionedRow(models.PlatformChatGPT),
		mentionedRow(models.PlatformClaude),
		mentionedRow(models.PlatformPerplexity),
	}}
	archiver := &mockArchiver{}

	o := newTestOrchestrator(t, jobs, runner, archiver)
	require.NoError(t, o.Run(context.Background(), "job-1"))

	require.NotNil(t, jobs.completed, "job should be completed")
	assert.Equal(t, 100, *jobs.completed, "full mention set scores 100")
	assert.Nil(t, jobs.failedWith)
	assert.Len(t, jobs.insertedRows, 3)
	assert.Equal(t, []int{59, 95}, jobs.progress)
	assert.True(t, archiver.archived)
}

func TestRun_UnclaimableJobIsSkipped(t *testing.T) {
	jobs := &mockJobStore{job: queuedJob(), claimResult: false}
	runner := &mockRunner{}

	o := newTestOrchestrator(t, jobs, runner, nil)
	require.NoError(t, o.Run(context.Background(), "job-1"))

	assert.Nil(t, jobs.completed)
	assert.Nil(t, jobs.failedWith)
	assert.Empty(t, jobs.progress)
}

func TestRun_RunnerErrorFailsJob(t *testing.T) {
	jobs := &mockJobStore{job: queuedJob(), claimResult: true}
	runner := &mockRunner{err: errors.New("progress write lost")}

	o := newTestOrchestrator(t, jobs, runner, nil)
	err := o.Run(context.Background(), "job-1")
	require.Error(t, err)

	require.NotNil(t, jobs.failedWith)
	assert.Equal(t, "audit failed", *jobs.failedWith, "raw error must not leak to clients")
	assert.Nil(t, jobs.completed)
}

func TestRun_InsertErrorFailsJob(t *testing.T) {
	jobs := &mockJobStore{job: queuedJob(), claimResult: true, insertErr: errors.New("db down")}
	runner := &mockRunner{rows: []models.PromptResult{mentionedRow(models.PlatformChatGPT)}}

	o := newTestOrchestrator(t, jobs, runner, nil)
	require.Error(t, o.Run(context.Background(), "job-1"))

	require.NotNil(t, jobs.failedWith)
	assert.Nil(t, jobs.completed)
}

func TestRun_ArchiveFailureDoesNotFailJob(t *testing.T) {
	jobs := &mockJobStore{job: queuedJob(), claimResult: true}
	runner := &mockRunner{rows: []models.PromptResult{mentionedRow(models.PlatformChatGPT)}}
	archiver := &mockArchiver{err: errors.New("index unavailable")}

	o := newTestOrchestrator(t, jobs, runner, archiver)
	require.NoError(t, o.Run(context.Background(), "job-1"))

	require.NotNil(t, jobs.completed)
	assert.Nil(t, jobs.failedWith)
}

func TestSweepStuck_UsesFiveMinuteCutoff(t *testing.T) {
	jobs := &mockJobStore{}
	o := newTestOrchestrator(t, jobs, &mockRunner{}, nil)

	o.SweepStuck(context.Background())
	assert.Equal(t, 5*time.Minute, jobs.sweptOlder)
}
