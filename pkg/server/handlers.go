package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/toolexecutor"
)

const maxRequestBody = 10 << 20

// ExecuteRequest is the body of POST /api/tools/execute and of a websocket frame
type ExecuteRequest struct {
	// RequestID tags websocket replies. It is ignored over plain HTTP.
	RequestID string `json:"requestId,omitempty"`
	toolexecutor.Request
}

// ToolInfo is one entry of the tool listing
type ToolInfo struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	Description   string          `json:"description"`
	RequiresOAuth bool            `json:"requiresOAuth,omitempty"`
	Parameters    []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a caller-visible parameter
type ParameterInfo struct {
	Name        string                  `json:"name"`
	Label       string                  `json:"label"`
	Type        string                  `json:"type"`
	Required    bool                    `json:"required"`
	Visibility  toolexecutor.Visibility `json:"visibility"`
	Description string                  `json:"description,omitempty"`
	Default     interface{}             `json:"default,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.clients.Count(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := []*toolexecutor.Descriptor{}
	if s.tools != nil {
		tools = s.policy.Filter(s.tools.List())
	}

	out := make([]ToolInfo, 0, len(tools))
	for _, d := range tools {
		out = append(out, toolInfo(d))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": out})
}

// handleExecute answers 200 with the tool result whether or not the tool
// succeeded. Non-200 codes are reserved for malformed or refused requests.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	if err := s.checkRequest(req); err != nil {
		writeJSON(w, err.status, errorResponse{Error: err.message})
		return
	}

	if !s.beginRequest() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "server is shutting down"})
		return
	}
	defer s.inFlightReqs.Done()

	logger := tracing.PropagateToLogger(r.Context(), s.logger)
	logger.Debug().Str("tool", req.ToolID).Msg("Executing tool")

	result := s.dispatcher.Execute(r.Context(), req.Request)
	writeJSON(w, http.StatusOK, result)
}

type requestError struct {
	status  int
	message string
}

func (s *Server) checkRequest(req ExecuteRequest) *requestError {
	if strings.TrimSpace(req.ToolID) == "" {
		return &requestError{status: http.StatusBadRequest, message: "toolId is required"}
	}
	if !s.policy.IsToolAllowed(req.ToolID) {
		s.logger.Warn().Str("tool", req.ToolID).Msg("Tool execution blocked by policy")
		return &requestError{status: http.StatusForbidden, message: fmt.Sprintf("tool '%s' is not allowed", req.ToolID)}
	}
	return nil
}

func toolInfo(d *toolexecutor.Descriptor) ToolInfo {
	params := make([]ParameterInfo, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Visibility == toolexecutor.VisibilityHidden {
			continue
		}
		params = append(params, ParameterInfo{
			Name:        p.Name,
			Label:       toolexecutor.FormatParameterLabel(p.Name),
			Type:        p.Type,
			Required:    p.Required,
			Visibility:  p.Visibility,
			Description: p.Description,
			Default:     p.Default,
		})
	}
	return ToolInfo{
		ID:            d.ID,
		Name:          d.DisplayName(),
		Version:       d.Version,
		Description:   d.Description,
		RequiresOAuth: d.RequiresOAuth,
		Parameters:    params,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
