// internal/server/beta_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"visibility-audit/internal/models"
	"visibility-audit/internal/store"
)

// maxBetaPayloadBytes caps the application payload; anything larger is not
// a legitimate form submission.
const maxBetaPayloadBytes = 10 * 1024

const betaApplySchema = `{
	"type": "object",
	"required": ["form"],
	"properties": {
		"form": {
			"type": "object",
			"required": ["name", "email", "agencyName", "clientCount", "serviceFocus", "biggestPain"],
			"properties": {
				"name":         {"type": "string", "minLength": 1, "maxLength": 120},
				"email":        {"type": "string", "minLength": 3, "maxLength": 254},
				"agencyName":   {"type": "string", "minLength": 1, "maxLength": 120},
				"website":      {"type": "string", "maxLength": 254},
				"clientCount":  {"type": "string", "maxLength": 20},
				"role":         {"type": "string", "maxLength": 120},
				"serviceFocus": {"type": "string", "minLength": 1, "maxLength": 254},
				"biggestPain":  {"type": "string", "minLength": 1, "maxLength": 2000}
			}
		},
		"attribution": {
			"type": "object",
			"properties": {
				"last_touch": {
					"type": "object",
					"properties": {
						"utm": {
							"type": "object",
							"properties": {
								"utm_source":   {"type": ["string", "null"]},
								"utm_medium":   {"type": ["string", "null"]},
								"utm_campaign": {"type": ["string", "null"]}
							}
						}
					}
				}
			}
		}
	}
}`

var betaSchema = gojsonschema.NewStringLoader(betaApplySchema)

type betaApplyRequest struct {
	Form struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		AgencyName   string `json:"agencyName"`
		Website      string `json:"website"`
		ClientCount  string `json:"clientCount"`
		Role         string `json:"role"`
		ServiceFocus string `json:"serviceFocus"`
		BiggestPain  string `json:"biggestPain"`
	} `json:"form"`
	Attribution struct {
		LastTouch struct {
			UTM struct {
				Source   *string `json:"utm_source"`
				Medium   *string `json:"utm_medium"`
				Campaign *string `json:"utm_campaign"`
			} `json:"utm"`
		} `json:"last_touch"`
	} `json:"attribution"`
}

// qualificationStatus triages by agency size: solo shops are out, anything
// larger is in, a missing answer goes to manual review.
func qualificationStatus(clientCount string) models.QualifiedStatus {
	switch clientCount {
	case "1-4":
		return models.QualifiedStatusDisqualified
	case "":
		return models.QualifiedStatusReview
	default:
		return models.QualifiedStatusQualified
	}
}

func (s *Server) handleBetaApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.betaLimiter != nil && !s.betaLimiter.Allow(ctx, hashIP(clientIP(r))) {
		writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBetaPayloadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(body) > maxBetaPayloadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	result, err := gojsonschema.Validate(betaSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !result.Valid() {
		fields := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			fields = append(fields, desc.Field())
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"ok": false, "error": "Missing required fields", "fields": fields,
		})
		return
	}

	var req betaApplyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Form.Email))
	if !validEmail(email) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"ok": false, "error": "Invalid email format", "fields": []string{"email"},
		})
		return
	}

	utm := req.Attribution.LastTouch.UTM
	app := &models.BetaApplication{
		FullName:           sanitizeInput(req.Form.Name, maxNameLength),
		WorkEmail:          email,
		AgencyName:         sanitizeInput(req.Form.AgencyName, maxNameLength),
		Website:            sanitizeInput(req.Form.Website, 254),
		ActiveClientsRange: req.Form.ClientCount,
		Role:               sanitizeInput(req.Form.Role, maxNameLength),
		PrimaryServices:    sanitizeInput(req.Form.ServiceFocus, 254),
		BiggestChallenge:   sanitizeInput(req.Form.BiggestPain, 2000),
		QualifiedStatus:    qualificationStatus(req.Form.ClientCount),
		PipelineStage:      models.PipelineStageNew,
		UTMSource:          derefString(utm.Source),
		UTMMedium:          derefString(utm.Medium),
		UTMCampaign:        derefString(utm.Campaign),
	}

	if err := s.store.InsertApplication(ctx, app); err != nil {
		s.internalError(w, r, err)
		return
	}

	if s.notifier != nil {
		s.notifier.BetaApplicationReceived(ctx, app)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": app.ID})
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	status := models.QualifiedStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.QualifiedStatusReview, models.QualifiedStatusQualified, models.QualifiedStatusDisqualified:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	apps, err := s.store.ListApplications(r.Context(), status)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if apps == nil {
		apps = []models.BetaApplication{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "submissions": apps})
}

type updateSubmissionRequest struct {
	ID              string `json:"id"`
	QualifiedStatus string `json:"qualified_status"`
	PipelineStage   string `json:"pipeline_stage"`
}

func (s *Server) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	var req updateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ID == "" || (req.QualifiedStatus == "" && req.PipelineStage == "") {
		writeError(w, http.StatusBadRequest, "Missing id or fields to update")
		return
	}

	var status *models.QualifiedStatus
	if req.QualifiedStatus != "" {
		candidate := models.QualifiedStatus(req.QualifiedStatus)
		switch candidate {
		case models.QualifiedStatusReview, models.QualifiedStatusQualified, models.QualifiedStatusDisqualified:
			status = &candidate
		default:
			writeError(w, http.StatusBadRequest, "Invalid qualified_status")
			return
		}
	}

	var stage *models.PipelineStage
	if req.PipelineStage != "" {
		candidate := models.PipelineStage(req.PipelineStage)
		valid := false
		names := make([]string, 0, 5)
		for _, st := range models.ValidPipelineStages() {
			names = append(names, string(st))
			if st == candidate {
				valid = true
			}
		}
		if !valid {
			writeError(w, http.StatusBadRequest,
				"Invalid stage. Must be one of: "+strings.Join(names, ", "))
			return
		}
		stage = &candidate
	}

	err := s.store.UpdateApplication(r.Context(), req.ID, status, stage)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Submission not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
