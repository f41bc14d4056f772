// internal/server/lead_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"visibility-audit/internal/common/metrics"
	"visibility-audit/internal/models"
	"visibility-audit/internal/store"
)

type leadCaptureRequest struct {
	AuditID     string `json:"auditId"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	AgencyName  string `json:"agencyName"`
	Consent     bool   `json:"consent"`
	Honeypot    string `json:"honeypot"`
	SubmittedAt int64  `json:"submittedAt"` // client form-render timestamp, unix millis
	UTM         struct {
		Source   string `json:"source"`
		Medium   string `json:"medium"`
		Campaign string `json:"campaign"`
	} `json:"utm"`
}

func (s *Server) handleLeadCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req leadCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Honeypot != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "unlocked": true})
		return
	}

	// forms submitted under 2s after render are bots
	if req.SubmittedAt > 0 && time.Since(time.UnixMilli(req.SubmittedAt)) < 2*time.Second {
		writeError(w, http.StatusTooManyRequests, "Please try again.")
		return
	}

	if !validUUID(req.AuditID) {
		writeError(w, http.StatusBadRequest, "Invalid audit ID.")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !validEmail(email) {
		writeError(w, http.StatusUnprocessableEntity, "A valid email address is required.")
		return
	}
	if !req.Consent {
		writeError(w, http.StatusUnprocessableEntity, "Consent is required to unlock your report.")
		return
	}

	job, err := s.store.GetJob(ctx, req.AuditID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Audit not found.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if job.Status != models.AuditStatusCompleted {
		writeError(w, http.StatusConflict, "Audit is not yet complete.")
		return
	}

	lead := &models.AuditLead{
		AuditJobID:  req.AuditID,
		Email:       email,
		Name:        sanitizeInput(req.Name, maxNameLength),
		AgencyName:  sanitizeInput(req.AgencyName, maxNameLength),
		Consent:     true,
		Referrer:    r.Header.Get("Referer"),
		UTMSource:   req.UTM.Source,
		UTMMedium:   req.UTM.Medium,
		UTMCampaign: req.UTM.Campaign,
	}
	if err := s.store.UpsertLead(ctx, lead); err != nil {
		s.internalError(w, r, err)
		return
	}

	if err := s.store.UnlockFullResults(ctx, req.AuditID); err != nil {
		s.internalError(w, r, err)
		return
	}

	metrics.LeadsCaptured.Inc()
	if s.notifier != nil {
		s.notifier.LeadCaptured(ctx, lead, job)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "unlocked": true})
}
