// Package api exposes the recommendation engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"cloudtrim/internal/domain"
	"cloudtrim/internal/inspector"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/recommend"
	"cloudtrim/internal/storage"
)

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Sealer encrypts credential material before it reaches the store.
// Implemented by secrets.Box; nil means credentials are stored in the clear.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// OrgAccount is one provider-organization member offered for import.
type OrgAccount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OrgLister enumerates the provider organization's member accounts.
type OrgLister func(ctx context.Context) ([]OrgAccount, error)

// Server handles the HTTP API.
type Server struct {
	mux          *http.ServeMux
	store        storage.Store
	manager      *recommend.Manager
	orchestrator *recommend.Orchestrator
	scheduler    *recommend.Scheduler
	logger       observability.Logger
	metrics      *observability.Metrics

	sealer    Sealer
	factory   recommend.SessionFactory
	orgLister OrgLister
}

// ServerOptions wires the Server's collaborators.
type ServerOptions struct {
	Mux          *http.ServeMux
	Store        storage.Store
	Manager      *recommend.Manager
	Orchestrator *recommend.Orchestrator
	Scheduler    *recommend.Scheduler
	Logger       observability.Logger
	Metrics      *observability.Metrics
	// Sealer encrypts stored credentials. Optional.
	Sealer Sealer
	// Factory validates credentials by performing a throwaway handshake.
	Factory recommend.SessionFactory
	// OrgLister backs bulk account import. Optional.
	OrgLister OrgLister
}

// NewServer creates the HTTP server. If Logger is nil a default logger is
// used; if Metrics is nil the metrics endpoint is not registered.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Server{
		mux:          opts.Mux,
		store:        opts.Store,
		manager:      opts.Manager,
		orchestrator: opts.Orchestrator,
		scheduler:    opts.Scheduler,
		logger:       logger,
		metrics:      opts.Metrics,
		sealer:       opts.Sealer,
		factory:      opts.Factory,
		orgLister:    opts.OrgLister,
	}
}

// RegisterRoutes registers all HTTP routes on the mux.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("/api/v1/accounts", s.handleAccounts)
	s.mux.HandleFunc("/api/v1/accounts/validate", s.handleValidateAccount)
	s.mux.HandleFunc("/api/v1/accounts/import-org", s.handleImportOrg)
	s.mux.HandleFunc("/api/v1/accounts/", s.handleAccountsSubroutes)

	s.mux.HandleFunc("/api/v1/recommendations", s.handleRecommendations)
	s.mux.HandleFunc("/api/v1/recommendations/scan", s.handleScan)
	s.mux.HandleFunc("/api/v1/recommendations/remediate", s.handleRemediate)

	s.mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/v1/jobs/", s.handleJobByID)

	s.mux.HandleFunc("/api/v1/schedules", s.handleSchedules)
	s.mux.HandleFunc("/api/v1/schedules/", s.handleScheduleByAccount)
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		sentry.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// writeDomainErr maps engine and storage errors to status codes using
// errors.Is, falling back to 500 for unknown errors.
func (s *Server) writeDomainErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidAccountID),
		errors.Is(err, recommend.ErrUnknownCategory),
		errors.Is(err, storage.ErrValidation):
		s.writeErr(ctx, w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, recommend.ErrAccountNotFound),
		errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, storage.ErrConflict):
		s.writeErr(ctx, w, http.StatusConflict, err.Error(), "")
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }

// Unwrap supports http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// redactAccount strips credential material from API responses.
func redactAccount(a domain.CloudAccount) domain.CloudAccount {
	a.Credentials.SecretAccessKey = ""
	return a
}

// throwawaySession performs a handshake purely to validate credentials.
func (s *Server) throwawaySession(ctx context.Context, account domain.CloudAccount) (inspector.Inspector, error) {
	if s.factory == nil {
		return nil, errors.New("credential validation is not configured")
	}
	insp, _, err := s.factory(ctx, account)
	return insp, err
}
