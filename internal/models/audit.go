// internal/models/audit.go
package models

import "time"

type AuditStatus string

const (
	AuditStatusQueued    AuditStatus = "queued"
	AuditStatusRunning   AuditStatus = "running"
	AuditStatusCompleted AuditStatus = "completed"
	AuditStatusFailed    AuditStatus = "failed"
)

type Platform string

const (
	PlatformChatGPT    Platform = "chatgpt"
	PlatformClaude     Platform = "claude"
	PlatformPerplexity Platform = "perplexity"
)

// AllPlatforms is the closed provider set, in fixed evaluation order.
// Per-platform scoring and quick-win emission both depend on this order.
func AllPlatforms() []Platform {
	return []Platform{PlatformChatGPT, PlatformClaude, PlatformPerplexity}
}

// Label returns the user-facing name of a platform.
func (p Platform) Label() string {
	switch p {
	case PlatformChatGPT:
		return "ChatGPT"
	case PlatformClaude:
		return "Claude"
	case PlatformPerplexity:
		return "Perplexity"
	}
	return string(p)
}

type PositionBucket string

const (
	PositionTop1          PositionBucket = "top_1"
	PositionTop3          PositionBucket = "top_3"
	PositionTop5          PositionBucket = "top_5"
	PositionMentionedLate PositionBucket = "mentioned_late"
	PositionNotMentioned  PositionBucket = "not_mentioned"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// AuditJob is the persisted lifecycle row for one audit request.
type AuditJob struct {
	ID              string      `json:"id"`
	BrandName       string      `json:"brand_name"`
	Industry        string      `json:"industry"`
	Status          AuditStatus `json:"status"`
	Progress        int         `json:"progress"`
	VisibilityScore *int        `json:"visibility_score"`
	FreeUnlocked    bool        `json:"free_unlocked"`
	FullUnlocked    bool        `json:"full_unlocked"`
	ErrorMessage    *string     `json:"error_message"`
	IPHash          string      `json:"-"`
	IdempotencyKey  *string     `json:"-"`
	CreatedAt       time.Time   `json:"created_at"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

// PromptResult is one (prompt, platform) row of a completed audit.
//
// The classification fields are pointers on purpose: a nil set means the
// provider was never called or returned nothing usable (a stub row), which
// is a distinct state from "classified and not mentioned". Scoring treats
// stub rows as zero-weight but still counts them in denominators.
type PromptResult struct {
	ID             string          `json:"id"`
	AuditJobID     string          `json:"audit_job_id"`
	PromptIndex    int             `json:"prompt_index"`
	PromptText     string          `json:"prompt_text"`
	Platform       Platform        `json:"platform"`
	RawResponse    *string         `json:"raw_response,omitempty"`
	BrandMentioned *bool           `json:"brand_mentioned"`
	PositionBucket *PositionBucket `json:"position_bucket"`
	Sentiment      *Sentiment      `json:"sentiment"`
	Competitors    []string        `json:"competitors_json"`
	Confidence     *float64        `json:"confidence"`
}

// Classified reports whether the row carries a usable classification.
func (r *PromptResult) Classified() bool {
	return r.BrandMentioned != nil
}

// Mentioned reports whether the brand appeared in this row.
func (r *PromptResult) Mentioned() bool {
	return r.BrandMentioned != nil && *r.BrandMentioned
}

// PlatformScore is derived per platform from the result set; it is never
// stored and is recomputed on each read.
type PlatformScore struct {
	Platform    Platform `json:"platform"`
	Score       int      `json:"score"`
	MentionRate float64  `json:"mention_rate"`
	PromptCount int      `json:"prompt_count"`
}

// AuditScore is the derived score object served to clients. The field shape
// is a contract shared with the results UI and must round-trip verbatim.
type AuditScore struct {
	Visibility  int             `json:"visibility"`
	Platforms   []PlatformScore `json:"platforms"`
	MentionRate float64         `json:"mention_rate"`
	Summary     string          `json:"summary"`
	QuickWins   []string        `json:"quick_wins,omitempty"`
}

// AuditResults is the row payload of a completed audit: the first free
// prompt groups plus a count of locked ones, with the full set only when
// the job has been fully unlocked.
type AuditResults struct {
	FreeRows        []PromptResult `json:"freeRows"`
	LockedRowsCount int            `json:"lockedRowsCount"`
	AllRows         []PromptResult `json:"allRows,omitempty"`
}

// AuditStatusResponse is the polling envelope for GET /api/audit/{id}.
type AuditStatusResponse struct {
	OK       bool          `json:"ok"`
	Status   AuditStatus   `json:"status"`
	Progress int           `json:"progress"`
	Error    string        `json:"error,omitempty"`
	Score    *AuditScore   `json:"score,omitempty"`
	Results  *AuditResults `json:"results,omitempty"`
}
