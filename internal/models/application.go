// internal/models/application.go
package models

import "time"

type QualifiedStatus string

const (
	QualifiedStatusReview       QualifiedStatus = "review"
	QualifiedStatusQualified    QualifiedStatus = "qualified"
	QualifiedStatusDisqualified QualifiedStatus = "disqualified"
)

type PipelineStage string

const (
	PipelineStageNew        PipelineStage = "NEW"
	PipelineStageContacted  PipelineStage = "CONTACTED"
	PipelineStageOnboarding PipelineStage = "ONBOARDING"
	PipelineStageActive     PipelineStage = "ACTIVE"
	PipelineStageDeclined   PipelineStage = "DECLINED"
)

// ValidPipelineStages lists the stages the dashboard may set.
func ValidPipelineStages() []PipelineStage {
	return []PipelineStage{
		PipelineStageNew, PipelineStageContacted, PipelineStageOnboarding,
		PipelineStageActive, PipelineStageDeclined,
	}
}

// BetaApplication is one submission from the beta-application funnel.
type BetaApplication struct {
	ID                 string          `json:"id"`
	FullName           string          `json:"full_name"`
	WorkEmail          string          `json:"work_email"`
	AgencyName         string          `json:"agency_name"`
	Website            string          `json:"website,omitempty"`
	ActiveClientsRange string          `json:"active_clients_range"`
	Role               string          `json:"role,omitempty"`
	PrimaryServices    string          `json:"primary_services"`
	BiggestChallenge   string          `json:"biggest_challenge"`
	QualifiedStatus    QualifiedStatus `json:"qualified_status"`
	PipelineStage      PipelineStage   `json:"pipeline_stage"`
	UTMSource          string          `json:"utm_source,omitempty"`
	UTMMedium          string          `json:"utm_medium,omitempty"`
	UTMCampaign        string          `json:"utm_campaign,omitempty"`
	SubmittedAt        time.Time       `json:"submitted_at"`
	CreatedAt          time.Time       `json:"created_at"`
}
