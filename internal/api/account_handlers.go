package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"cloudtrim/internal/domain"
)

// handleAccounts routes /api/v1/accounts.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateAccount(w, r)
	case http.MethodGet:
		s.handleListAccounts(w, r)
	default:
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

// POST /api/v1/accounts
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateCloudAccount
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Name == "" {
		s.writeErr(ctx, w, http.StatusBadRequest, "name is required", "")
		return
	}
	if req.Provider == "" {
		req.Provider = domain.ProviderAWS
	}
	if req.Provider != domain.ProviderAWS {
		s.writeErr(ctx, w, http.StatusBadRequest, "unsupported provider", string(req.Provider))
		return
	}

	if s.sealer != nil && req.Credentials.SecretAccessKey != "" {
		sealed, err := s.sealer.Seal(req.Credentials.SecretAccessKey)
		if err != nil {
			s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
			return
		}
		req.Credentials.SecretAccessKey = sealed
	}

	account, err := s.store.CreateAccount(ctx, req)
	if err != nil {
		s.writeDomainErr(ctx, w, err)
		return
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID, "name", account.Name)
	writeJSON(w, http.StatusCreated, redactAccount(account))
}

// GET /api/v1/accounts
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		s.writeDomainErr(ctx, w, err)
		return
	}
	out := make([]domain.CloudAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, redactAccount(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAccountsSubroutes routes /api/v1/accounts/{id}.
func (s *Server) handleAccountsSubroutes(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts/")
	if id == "" || strings.Contains(id, "/") {
		s.writeErr(r.Context(), w, http.StatusNotFound, "not found", "")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetAccount(w, r, id)
	case http.MethodDelete:
		s.handleDeleteAccount(w, r, id)
	default:
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

// GET /api/v1/accounts/{id}
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		s.writeDomainErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, redactAccount(*account))
}

// DELETE /api/v1/accounts/{id}
// Deleting an account also removes its snapshots, its schedule and its
// cached session.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	if err := s.store.DeleteAccount(ctx, id); err != nil {
		s.writeDomainErr(ctx, w, err)
		return
	}
	if err := s.store.DeleteSnapshots(ctx, id, ""); err != nil {
		s.logger.ErrorContext(ctx, "cascade snapshot delete failed", "account_id", id, "error", err)
	}
	if s.scheduler != nil {
		if err := s.scheduler.Unregister(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "cascade schedule delete failed", "account_id", id, "error", err)
		}
	}
	if s.manager != nil {
		s.manager.Invalidate(id)
	}

	s.logger.InfoContext(ctx, "account deleted", "account_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/accounts/validate
// Validates credentials by performing a throwaway provider handshake without
// registering anything.
func (s *Server) handleValidateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		s.writeErr(ctx, w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req domain.CreateCloudAccount
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	insp, err := s.throwawaySession(ctx, domain.CloudAccount{
		Provider:    domain.ProviderAWS,
		Credentials: req.Credentials,
	})
	if err != nil {
		s.writeErr(ctx, w, http.StatusUnprocessableEntity, "credential validation failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":          true,
		"account_number": insp.AccountNumber(),
		"regions":        insp.Regions(),
	})
}

type importOrgRequest struct {
	// RoleName is assumed in each member account, e.g.
	// "OrganizationAccountAccessRole".
	RoleName   string `json:"role_name"`
	ExternalID string `json:"external_id,omitempty"`
}

type importOrgResponse struct {
	Imported []domain.CloudAccount `json:"imported"`
	Skipped  []string              `json:"skipped,omitempty"`
}

// POST /api/v1/accounts/import-org
// Bulk-registers the organization's member accounts using an assumable role
// instead of per-account key pairs.
func (s *Server) handleImportOrg(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		s.writeErr(ctx, w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	if s.orgLister == nil {
		s.writeErr(ctx, w, http.StatusNotImplemented, "organization import is not configured", "")
		return
	}

	var req importOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(ctx, w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.RoleName == "" {
		s.writeErr(ctx, w, http.StatusBadRequest, "role_name is required", "")
		return
	}

	members, err := s.orgLister(ctx)
	if err != nil {
		s.writeErr(ctx, w, http.StatusBadGateway, "organization listing failed", err.Error())
		return
	}

	resp := importOrgResponse{}
	for _, member := range members {
		account, err := s.store.CreateAccount(ctx, domain.CreateCloudAccount{
			Name:     member.Name,
			Provider: domain.ProviderAWS,
			Credentials: domain.Credentials{
				RoleARN:    fmt.Sprintf("arn:aws:iam::%s:role/%s", member.ID, req.RoleName),
				ExternalID: req.ExternalID,
			},
		})
		if err != nil {
			// Already registered members are skipped, not fatal.
			s.logger.WarnContext(ctx, "org member skipped", "name", member.Name, "error", err)
			resp.Skipped = append(resp.Skipped, member.Name)
			continue
		}
		resp.Imported = append(resp.Imported, redactAccount(account))
	}

	s.logger.InfoContext(ctx, "organization import finished",
		"imported", len(resp.Imported), "skipped", len(resp.Skipped))
	writeJSON(w, http.StatusOK, resp)
}
