// internal/server/audit_handlers.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"visibility-audit/internal/audit/scorer"
	"visibility-audit/internal/models"
	"visibility-audit/internal/store"
)

// honeypotAuditID is returned on honeypot trips so bots see a plausible
// success and stop probing.
const honeypotAuditID = "00000000-0000-0000-0000-000000000000"

// freePromptGroups is how many prompt groups are visible before the email
// gate.
const freePromptGroups = 3

type createAuditRequest struct {
	BrandName      string `json:"brandName"`
	Industry       string `json:"industry"`
	IdempotencyKey string `json:"idempotencyKey"`
	Honeypot       string `json:"honeypot"`
}

func (s *Server) handleCreateAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.killSwitchOn(ctx) {
		writeError(w, http.StatusServiceUnavailable,
			"Audit service is temporarily paused. Please try again later.")
		return
	}

	ipHash := hashIP(clientIP(r))

	if s.auditLimiter != nil && !s.auditLimiter.Allow(ctx, ipHash) {
		writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}

	ipCount, err := s.store.CountRecentByIP(ctx, ipHash)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if ipCount >= s.cfg.Audit.MaxPerIPPerDay {
		writeError(w, http.StatusTooManyRequests,
			"Daily audit limit reached for this IP. Try again tomorrow.")
		return
	}

	running, err := s.store.CountRunning(ctx)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if running >= s.cfg.Audit.MaxRunning {
		writeError(w, http.StatusServiceUnavailable,
			"Audit service is busy. Please try again in a minute.")
		return
	}

	var req createAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Honeypot != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok": true, "auditId": honeypotAuditID, "status": models.AuditStatusQueued,
		})
		return
	}

	brandName := sanitizeInput(req.BrandName, maxNameLength)
	industry := sanitizeInput(req.Industry, maxNameLength)
	if len(brandName) < 2 {
		writeError(w, http.StatusBadRequest, "Brand name must be at least 2 characters.")
		return
	}
	if len(industry) < 2 {
		writeError(w, http.StatusBadRequest, "Industry must be at least 2 characters.")
		return
	}

	var idempotencyKey *string
	if req.IdempotencyKey != "" {
		idempotencyKey = &req.IdempotencyKey
	}

	job, created, err := s.store.CreateJob(ctx, brandName, industry, ipHash, idempotencyKey)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok": true, "auditId": job.ID, "status": job.Status,
		})
		return
	}

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.runner.SweepStuck(runCtx)
		if err := s.runner.Run(runCtx, job.ID); err != nil {
			s.log.Error("audit run failed", map[string]interface{}{
				"jobId": job.ID,
				"error": err.Error(),
			})
		}
	}()

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok": true, "auditId": job.ID, "status": job.Status,
	})
}

// killSwitchOn checks the static config flag first, then the audit_config
// override so ops can pause intake without a deploy. A config-table read
// failure never blocks intake.
func (s *Server) killSwitchOn(ctx context.Context) bool {
	if s.cfg.Audit.KillSwitch {
		return true
	}
	value, found, err := s.store.GetConfigValue(ctx, "paused")
	if err != nil {
		s.log.Warn("kill switch lookup failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	return found && value == "true"
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if !validUUID(id) {
		writeError(w, http.StatusBadRequest, "Invalid audit ID")
		return
	}

	job, err := s.store.GetJob(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Audit not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	switch job.Status {
	case models.AuditStatusQueued, models.AuditStatusRunning:
		writeJSON(w, http.StatusOK, models.AuditStatusResponse{
			OK: true, Status: job.Status, Progress: job.Progress,
		})
		return
	case models.AuditStatusFailed:
		message := "Audit failed. Please try again."
		if job.ErrorMessage != nil && *job.ErrorMessage != "" {
			message = *job.ErrorMessage
		}
		writeJSON(w, http.StatusOK, models.AuditStatusResponse{
			OK: true, Status: models.AuditStatusFailed, Progress: 0, Error: message,
		})
		return
	}

	results, err := s.store.ListResults(ctx, id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	// raw provider text never leaves the backend
	for i := range results {
		results[i].RawResponse = nil
	}

	score := scorer.ComputeScores(results)
	score.QuickWins = scorer.GenerateQuickWins(results, job.BrandName, job.Industry)

	writeJSON(w, http.StatusOK, models.AuditStatusResponse{
		OK:       true,
		Status:   models.AuditStatusCompleted,
		Progress: 100,
		Score:    &score,
		Results:  partitionResults(results, job.FullUnlocked),
	})
}

// partitionResults groups rows by prompt index and exposes the first
// freePromptGroups groups; the rest stay behind the email gate unless the
// job is fully unlocked. The locked count is in prompt groups, matching
// what the results page renders as locked cards.
func partitionResults(results []models.PromptResult, fullUnlocked bool) *models.AuditResults {
	byPrompt := make(map[int][]models.PromptResult)
	for _, row := range results {
		byPrompt[row.PromptIndex] = append(byPrompt[row.PromptIndex], row)
	}

	indexes := make([]int, 0, len(byPrompt))
	for idx := range byPrompt {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	freeIndexes := indexes
	lockedCount := 0
	if len(indexes) > freePromptGroups {
		freeIndexes = indexes[:freePromptGroups]
		lockedCount = len(indexes) - freePromptGroups
	}

	freeRows := make([]models.PromptResult, 0, len(freeIndexes)*3)
	for _, idx := range freeIndexes {
		freeRows = append(freeRows, byPrompt[idx]...)
	}

	out := &models.AuditResults{
		FreeRows:        freeRows,
		LockedRowsCount: lockedCount,
	}
	if fullUnlocked {
		out.AllRows = results
	}
	return out
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed", map[string]interface{}{
		"path":  r.URL.Path,
		"error": err.Error(),
	})
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
