// internal/store/archive.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/models"
)

const archiveIndex = "audit-archive"

// Archiver mirrors completed audits into Elasticsearch so the team can
// query visibility trends across brands. Archiving is best-effort: callers
// log failures and never fail the audit over them.
type Archiver struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func NewArchiver(client *elasticsearch.Client, log logger.Logger) *Archiver {
	return &Archiver{
		client: client,
		index:  archiveIndex,
		log:    log.WithFields(map[string]interface{}{"component": "archiver"}),
	}
}

type archiveDocument struct {
	JobID           string             `json:"job_id"`
	BrandName       string             `json:"brand_name"`
	Industry        string             `json:"industry"`
	VisibilityScore int                `json:"visibility_score"`
	MentionRate     float64            `json:"mention_rate"`
	Platforms       []platformSnapshot `json:"platforms"`
	ResultCount     int                `json:"result_count"`
	StubCount       int                `json:"stub_count"`
	CompletedAt     time.Time          `json:"completed_at"`
}

type platformSnapshot struct {
	Platform    string  `json:"platform"`
	Score       int     `json:"score"`
	MentionRate float64 `json:"mention_rate"`
}

// ArchiveAudit indexes a flattened summary of one completed audit, keyed by
// job id so re-archiving overwrites instead of duplicating.
func (a *Archiver) ArchiveAudit(ctx context.Context, job *models.AuditJob, score *models.AuditScore, results []models.PromptResult) error {
	doc := archiveDocument{
		JobID:           job.ID,
		BrandName:       job.BrandName,
		Industry:        job.Industry,
		VisibilityScore: score.Visibility,
		MentionRate:     score.MentionRate,
		ResultCount:     len(results),
		CompletedAt:     time.Now().UTC(),
	}
	if job.CompletedAt != nil {
		doc.CompletedAt = *job.CompletedAt
	}
	for _, p := range score.Platforms {
		doc.Platforms = append(doc.Platforms, platformSnapshot{
			Platform:    string(p.Platform),
			Score:       p.Score,
			MentionRate: p.MentionRate,
		})
	}
	for i := range results {
		if !results[i].Classified() {
			doc.StubCount++
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("archive audit: marshal: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      a.index,
		DocumentID: job.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return fmt.Errorf("archive audit: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("archive audit: index failed: %s", res.String())
	}

	a.log.Debug("audit archived", map[string]interface{}{
		"jobId": job.ID,
		"index": a.index,
	})
	return nil
}
