package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/teemow/garelay/internal/analytics"
	"github.com/teemow/garelay/internal/logging"
	"github.com/teemow/garelay/internal/relay"
	"github.com/teemow/garelay/internal/state"
)

type rootResponse struct {
	Status    string   `json:"status"`
	Service   string   `json:"service"`
	Version   string   `json:"version,omitempty"`
	Endpoints []string `json:"endpoints"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Status:    "ok",
		Service:   s.config.ServiceName,
		Version:   s.config.Version,
		Endpoints: s.endpoints(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type authInitResponse struct {
	AuthURL string `json:"auth_url"`
}

// handleAuthInit returns the consent URL. It has no side effects.
func (s *Server) handleAuthInit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payload := state.Payload{
		WorkspaceID:    q.Get("workspace_id"),
		OrganizationID: q.Get("organization_id"),
		RedirectURL:    redirectParam(q),
	}

	if payload.WorkspaceID == "" || payload.RedirectURL == "" {
		writeError(w, http.StatusBadRequest, "workspace_id and redirect_url are required")
		return
	}

	token, err := state.Encode(payload)
	if err != nil {
		s.logger.Error("failed to encode state", logging.Workspace(payload.WorkspaceID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, authInitResponse{AuthURL: s.config.Authorizer.AuthURL(token)})
}

type queryRequest struct {
	WorkspaceID string           `json:"workspace_id"`
	Tool        string           `json:"tool"`
	Params      analytics.Params `json:"params"`
}

type queryResponse struct {
	Data interface{} `json:"data"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.config.Relay.Query(r.Context(), relay.Request{
		WorkspaceID: req.WorkspaceID,
		Tool:        req.Tool,
		Params:      req.Params,
	})
	if err != nil {
		writeError(w, relay.StatusCode(err), relay.ErrorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Data: data})
}

type disconnectRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

type disconnectResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req disconnectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.config.Relay.Disconnect(r.Context(), req.WorkspaceID); err != nil {
		writeError(w, relay.StatusCode(err), relay.ErrorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, disconnectResponse{Success: true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
