package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	// Registers the OpenAPI document served at /swagger/doc.json
	_ "github.com/custodia-labs/docqa/docs"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

// readyTimeout bounds the dependency probes of /ready
const readyTimeout = 5 * time.Second

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Detail string `json:"detail" example:"Unauthorized"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports each dependency probed by /ready
// @Description Readiness status with per-component results
type ReadyResponse struct {
	Status     string            `json:"status" example:"ready"`
	Components map[string]string `json:"components"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Probes the embedding service, LLM, vector index and the optional cache and run store
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse  "A dependency is unavailable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Components: make(map[string]string)}
	status := http.StatusOK

	for name, err := range s.services.Check(ctx) {
		if err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleSwagger serves the registered OpenAPI document
func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api documentation unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Question answering

// handleRun godoc
// @Summary      Answer questions about a document
// @Description  Downloads the PDF, indexes it in a request-scoped collection and answers every question in order
// @Tags         HackRx
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.RunRequest   true  "Document URL and questions"
// @Success      200      {object}  domain.RunResponse
// @Header       200      {string}  X-Request-ID  "Run ID for GET /api/v1/runs/{id}"
// @Failure      400      {object}  ErrorResponse  "Invalid body, unreachable or unreadable document"
// @Failure      401      {object}  ErrorResponse  "Missing or wrong team token"
// @Failure      413      {object}  ErrorResponse  "Request body too large"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Failure      502      {object}  ErrorResponse  "Embedding or vector index failure"
// @Failure      504      {object}  ErrorResponse  "Fetch or indexing timed out"
// @Router       /api/v1/hackrx/run [post]
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req domain.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.qaService.Run(r.Context(), req)
	if err != nil {
		status, detail := runErrorStatus(err)
		writeError(w, status, detail)
		return
	}

	if resp.RequestID != "" {
		w.Header().Set("X-Request-ID", resp.RequestID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetRun godoc
// @Summary      Get a run record
// @Description  Returns the recorded outcome of a finished run by the ID from its X-Request-ID header
// @Tags         HackRx
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Run ID"
// @Success      200  {object}  domain.Run
// @Failure      401  {object}  ErrorResponse  "Missing or wrong team token"
// @Failure      404  {object}  ErrorResponse  "Run not recorded"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /api/v1/runs/{id} [get]
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.qaService.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("failed to load run", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// runErrorStatus maps a pipeline error to a status code and detail message
func runErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, err.Error()
	case domain.FailedStage(err) == domain.StageFetching && domain.IsClientError(err):
		return http.StatusBadRequest, "PDF download failed: " + err.Error()
	case domain.IsClientError(err):
		return http.StatusBadRequest, err.Error()
	case domain.IsUpstreamError(err):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Detail: message})
}
