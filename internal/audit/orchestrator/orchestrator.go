// internal/audit/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"visibility-audit/internal/audit/prompts"
	"visibility-audit/internal/audit/providers"
	"visibility-audit/internal/audit/scorer"
	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/common/metrics"
	"visibility-audit/internal/common/observability"
	"visibility-audit/internal/models"
)

// StuckJobAfter is how long a job may sit in running before the sweeper
// declares its worker dead.
const StuckJobAfter = 5 * time.Minute

// clientFailureMessage is the only error text persisted on a failed job;
// raw provider and database errors stay in the logs.
const clientFailureMessage = "audit failed"

// JobStore is the persistence surface the orchestrator drives.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*models.AuditJob, error)
	ClaimJob(ctx context.Context, id string) (bool, error)
	UpdateProgress(ctx context.Context, id string, percent int) error
	CompleteJob(ctx context.Context, id string, visibilityScore int) error
	FailJob(ctx context.Context, id, message string) error
	InsertResults(ctx context.Context, jobID string, rows []models.PromptResult) error
	SweepStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ResultRunner executes the prompt set; satisfied by providers.Runner.
type ResultRunner interface {
	RunAll(ctx context.Context, specs []prompts.PromptSpec, brandName, industry, jobID string, onProgress providers.ProgressFunc) ([]models.PromptResult, error)
}

// Archiver mirrors completed audits to the analytics index; optional.
type Archiver interface {
	ArchiveAudit(ctx context.Context, job *models.AuditJob, score *models.AuditScore, results []models.PromptResult) error
}

// Orchestrator owns the audit job lifecycle: claim, run, persist, score,
// finalize. It is invoked asynchronously by the HTTP layer after a job row
// is created.
type Orchestrator struct {
	jobs     JobStore
	runner   ResultRunner
	archiver Archiver
	obs      *observability.Observability
	log      logger.Logger
}

func New(jobs JobStore, runner ResultRunner, archiver Archiver, obs *observability.Observability, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		runner:   runner,
		archiver: archiver,
		obs:      obs,
		log:      log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Run drives one audit job from queued to a terminal state. Safe to call
// for a job that was already claimed elsewhere; it simply returns.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	started := time.Now()

	claimed, err := o.jobs.ClaimJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("run audit %s: %w", jobID, err)
	}
	if !claimed {
		o.log.Info("job not claimable, skipping", map[string]interface{}{"jobId": jobID})
		return nil
	}

	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		o.finalizeFailed(ctx, jobID, started, err)
		return fmt.Errorf("run audit %s: %w", jobID, err)
	}

	o.log.Info("audit started", map[string]interface{}{
		"jobId":    jobID,
		"brand":    job.BrandName,
		"industry": job.Industry,
	})

	specs := prompts.BuildPrompts(job.BrandName, job.Industry)

	results, err := o.runner.RunAll(ctx, specs, job.BrandName, job.Industry, jobID,
		func(ctx context.Context, percent int) error {
			return o.jobs.UpdateProgress(ctx, jobID, percent)
		})
	if err != nil {
		o.finalizeFailed(ctx, jobID, started, err)
		return fmt.Errorf("run audit %s: %w", jobID, err)
	}

	if err := o.jobs.UpdateProgress(ctx, jobID, 95); err != nil {
		o.finalizeFailed(ctx, jobID, started, err)
		return fmt.Errorf("run audit %s: %w", jobID, err)
	}

	if err := o.jobs.InsertResults(ctx, jobID, results); err != nil {
		o.finalizeFailed(ctx, jobID, started, err)
		return fmt.Errorf("run audit %s: %w", jobID, err)
	}

	score := scorer.ComputeScores(results)
	score.QuickWins = scorer.GenerateQuickWins(results, job.BrandName, job.Industry)

	if err := o.jobs.CompleteJob(ctx, jobID, score.Visibility); err != nil {
		o.finalizeFailed(ctx, jobID, started, err)
		return fmt.Errorf("run audit %s: %w", jobID, err)
	}

	duration := time.Since(started)
	metrics.AuditJobsCompleted.WithLabelValues("completed").Inc()
	metrics.AuditJobDuration.Observe(duration.Seconds())
	if o.obs != nil {
		o.obs.RecordJobProcessed(ctx, "completed")
		o.obs.RecordJobDuration(ctx, duration, "completed")
	}

	o.log.Info("audit completed", map[string]interface{}{
		"jobId":      jobID,
		"score":      score.Visibility,
		"durationMs": duration.Milliseconds(),
	})

	o.archive(ctx, jobID, &score, results)
	return nil
}

// archive is best-effort: the audit is already completed and a missing
// analytics doc is not worth failing anything over.
func (o *Orchestrator) archive(ctx context.Context, jobID string, score *models.AuditScore, results []models.PromptResult) {
	if o.archiver == nil {
		return
	}
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		o.log.Warn("archive skipped, job reload failed", map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		})
		return
	}
	if err := o.archiver.ArchiveAudit(ctx, job, score, results); err != nil {
		o.log.Warn("archive failed", map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) finalizeFailed(ctx context.Context, jobID string, started time.Time, cause error) {
	o.log.Error("audit failed", map[string]interface{}{
		"jobId": jobID,
		"error": cause.Error(),
	})

	if err := o.jobs.FailJob(ctx, jobID, clientFailureMessage); err != nil {
		o.log.Error("failed to mark job failed", map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		})
	}

	duration := time.Since(started)
	metrics.AuditJobsCompleted.WithLabelValues("failed").Inc()
	metrics.AuditJobDuration.Observe(duration.Seconds())
	if o.obs != nil {
		o.obs.RecordJobProcessed(ctx, "failed")
		o.obs.RecordJobDuration(ctx, duration, "failed")
	}
}

// SweepStuck reaps running jobs whose worker died. Called before each job
// start and from the periodic sweeper loop.
func (o *Orchestrator) SweepStuck(ctx context.Context) {
	if _, err := o.jobs.SweepStuck(ctx, StuckJobAfter); err != nil {
		o.log.Error("stuck job sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// StartSweeper runs SweepStuck on an interval until the context ends.
func (o *Orchestrator) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.SweepStuck(ctx)
			}
		}
	}()
}
