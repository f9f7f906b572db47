package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"cloudtrim/internal/domain"
)

// GET /api/v1/recommendations?account={id}&category={tag}
// Returns the latest snapshot per category, or the single category snapshot
// when category is given.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet {
		s.writeErr(ctx, w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	accountID := r.URL.Query().Get("account")
	if accountID == "" {
		s.writeErr(ctx, w, http.StatusBadRequest, "account is required", "")
		return
	}
	if !domain.ValidAccountID(accountID) {
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid account identifier", accountID)
		return
	}

	if category := r.URL.Query().Get("category"); category != "" {
		if !domain.ValidCategory(domain.Category(category)) {
			s.writeErr(ctx, w, http.StatusBadRequest, "unknown recommendation category", category)
			return
		}
		snap, err := s.store.LatestSnapshot(ctx, accountID, domain.Category(category))
		if err != nil {
			s.writeDomainErr(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, []domain.Snapshot{*snap})
		return
	}

	snaps, err := s.store.LatestSnapshots(ctx, accountID)
	if err != nil {
		s.writeDomainErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

type triggerRequest struct {
	AccountID string `json:"account_id"`
	Category  string `json:"category,omitempty"`
}

// POST /api/v1/recommendations/scan
// Returns 202 with the queryable job.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	s.handleTrigger(w, r, domain.JobKindScan)
}

// POST /api/v1/recommendations/remediate
func (s *Server) handleRemediate(w http.ResponseWriter, r *http.Request) {
	s.handleTrigger(w, r, domain.JobKindRemediate)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request, kind domain.JobKind) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		s.writeErr(ctx, w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.AccountID == "" {
		s.writeErr(ctx, w, http.StatusBadRequest, "account_id is required", "")
		return
	}

	var (
		job *domain.Job
		err error
	)
	if kind == domain.JobKindRemediate {
		job, err = s.orchestrator.RemediateAccount(ctx, req.AccountID, domain.Category(req.Category))
	} else {
		job, err = s.orchestrator.ScanAccount(ctx, req.AccountID, domain.Category(req.Category))
	}
	if err != nil {
		s.writeDomainErr(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

// GET /api/v1/jobs?account={id}
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet {
		s.writeErr(ctx, w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	accountID := r.URL.Query().Get("account")
	if accountID == "" {
		s.writeErr(ctx, w, http.StatusBadRequest, "account is required", "")
		return
	}

	jobs, err := s.store.ListJobs(ctx, accountID)
	if err != nil {
		s.writeDomainErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GET /api/v1/jobs/{id}
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet {
		s.writeErr(ctx, w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeErr(ctx, w, http.StatusNotFound, "not found", "")
		return
	}

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		s.writeDomainErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GET /api/v1/schedules
func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet {
		s.writeErr(ctx, w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		s.writeDomainErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

type scheduleRequest struct {
	IntervalHours int `json:"interval_hours"`
}

// PUT|DELETE /api/v1/schedules/{accountID}
func (s *Server) handleScheduleByAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID := strings.TrimPrefix(r.URL.Path, "/api/v1/schedules/")
	if accountID == "" || strings.Contains(accountID, "/") {
		s.writeErr(ctx, w, http.StatusNotFound, "not found", "")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErr(ctx, w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		// The account must exist before a recurring scan makes sense.
		if _, err := s.store.GetAccount(ctx, accountID); err != nil {
			s.writeDomainErr(ctx, w, err)
			return
		}
		if err := s.scheduler.Register(ctx, accountID, req.IntervalHours); err != nil {
			s.writeDomainErr(ctx, w, err)
			return
		}
		sched, err := s.store.GetSchedule(ctx, accountID)
		if err != nil {
			s.writeDomainErr(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, sched)

	case http.MethodDelete:
		if err := s.scheduler.Unregister(ctx, accountID); err != nil {
			s.writeDomainErr(ctx, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.writeErr(ctx, w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}
