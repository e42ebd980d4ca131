package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/darwin/internal/errors"
	"github.com/copyleftdev/darwin/internal/optimization"
)

// ProblemInfo describes a registered problem.
type ProblemInfo struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Goal        optimization.Goal `json:"goal"`
}

func (s *Server) problemList() []ProblemInfo {
	names := s.registry.Names()
	out := make([]ProblemInfo, 0, len(names))
	for _, name := range names {
		p, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		out = append(out, ProblemInfo{Name: p.Name, Description: p.Description, Goal: p.Goal})
	}
	return out
}

func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.problemList())
}

// handleEvolve handles HTTP POST /api/v1/evolve
func (s *Server) handleEvolve(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondHTTPError(w, errors.Wrap(err, "invalid request body").WithCode(errors.CodeInvalidArgument))
		return
	}

	status, err := s.startRun(req)
	if err != nil {
		s.respondHTTPError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, status)
}

// handleList handles HTTP GET /api/v1/runs
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	runs, err := s.listRuns(r.Context())
	if err != nil {
		s.respondHTTPError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, runs)
}

// handleStatus handles HTTP GET /api/v1/runs/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.runStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondHTTPError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

// handleCancel handles HTTP DELETE /api/v1/runs/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.cancelRun(r.Context(), id); err != nil {
		s.respondHTTPError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "id": id})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) respondHTTPError(w http.ResponseWriter, err error) {
	code := errors.CodeFor(err)
	status := code.HTTPStatus()

	fields := map[string]interface{}{
		"status": status,
		"error":  err.Error(),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", fields)
	} else {
		s.logger.Warn("Request rejected", fields)
	}

	s.respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  code.String(),
	})
}
