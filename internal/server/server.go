// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visibility-audit/internal/common/config"
	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/models"
)

// AuditStore is the persistence surface the HTTP layer needs.
type AuditStore interface {
	CreateJob(ctx context.Context, brandName, industry, ipHash string, idempotencyKey *string) (*models.AuditJob, bool, error)
	GetJob(ctx context.Context, id string) (*models.AuditJob, error)
	CountRecentByIP(ctx context.Context, ipHash string) (int, error)
	CountRunning(ctx context.Context) (int, error)
	ListResults(ctx context.Context, jobID string) ([]models.PromptResult, error)
	UpsertLead(ctx context.Context, lead *models.AuditLead) error
	UnlockFullResults(ctx context.Context, id string) error
	InsertApplication(ctx context.Context, app *models.BetaApplication) error
	ListApplications(ctx context.Context, status models.QualifiedStatus) ([]models.BetaApplication, error)
	UpdateApplication(ctx context.Context, id string, qualifiedStatus *models.QualifiedStatus, pipelineStage *models.PipelineStage) error
	GetConfigValue(ctx context.Context, key string) (string, bool, error)
}

// AuditRunner starts audit jobs; satisfied by the orchestrator.
type AuditRunner interface {
	Run(ctx context.Context, jobID string) error
	SweepStuck(ctx context.Context)
}

// Limiter guards an endpoint against request bursts.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Notifier sends internal alerts; satisfied by notify.Notifier.
type Notifier interface {
	LeadCaptured(ctx context.Context, lead *models.AuditLead, job *models.AuditJob)
	BetaApplicationReceived(ctx context.Context, app *models.BetaApplication)
}

// Pinger reports backend health for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server wires the public lead-gen API: audit creation and polling, lead
// capture, the beta-application funnel and the internal dashboard.
type Server struct {
	cfg          *config.Config
	store        AuditStore
	runner       AuditRunner
	auditLimiter Limiter
	betaLimiter  Limiter
	notifier     Notifier
	db           Pinger
	log          logger.Logger
}

func New(cfg *config.Config, st AuditStore, runner AuditRunner, auditLimiter, betaLimiter Limiter, notifier Notifier, db Pinger, log logger.Logger) *Server {
	return &Server{
		cfg:          cfg,
		store:        st,
		runner:       runner,
		auditLimiter: auditLimiter,
		betaLimiter:  betaLimiter,
		notifier:     notifier,
		db:           db,
		log:          log.WithFields(map[string]interface{}{"component": "server"}),
	}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/audit", s.handleCreateAudit).Methods("POST")
	api.HandleFunc("/audit/lead", s.handleLeadCapture).Methods("POST")
	api.HandleFunc("/audit/{id}", s.handleGetAudit).Methods("GET")
	api.HandleFunc("/beta/apply", s.handleBetaApply).Methods("POST")

	dashboard := api.PathPrefix("/beta/submissions").Subrouter()
	dashboard.Use(s.basicAuthMiddleware)
	dashboard.HandleFunc("", s.handleListSubmissions).Methods("GET")
	dashboard.HandleFunc("/update", s.handleUpdateSubmission).Methods("POST")

	r.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

// ListenAndServe blocks until the context ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.Router(),
		ReadTimeout:  config.GetDuration(s.cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(s.cfg.Server.WriteTimeout),
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", map[string]interface{}{"addr": srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(s.cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "degraded",
				"error":  "database unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
