package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/swaggo/swag"

	"github.com/innovest/innovest-rag/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports the state of each backing service
// @Description Readiness response
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// IngestRequest names an uploaded document of a deal
// @Description Document ingestion request
type IngestRequest struct {
	DocumentKey string `json:"document_key" example:"deal-42/term-sheet.pdf"`
}

// EmbeddingsDebugResponse summarises the vector store
// @Description Vector store summary
type EmbeddingsDebugResponse struct {
	Backend string `json:"backend" example:"postgres"`
	Count   int64  `json:"count" example:"1280"`
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
// @Description  Pings every backing service; 503 when any of them fails
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for name, p := range s.checks {
		if err := p.Ping(r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
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

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

// Ingestion endpoints

// handleIngest godoc
// @Summary      Ingest a deal document
// @Description  Schedules background ingestion of an uploaded document and returns immediately
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        dealId   path      string         true  "Deal ID"
// @Param        request  body      IngestRequest  true  "Document handle"
// @Success      202      {object}  domain.IngestionJob
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      503      {object}  ErrorResponse  "Queue unavailable"
// @Router       /deals/{dealId}/documents/ingest [post]
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.ingestion.Ingest(r.Context(), r.PathValue("dealId"), req.DocumentKey)
	if err != nil {
		s.writeServiceError(w, err, "failed to schedule ingestion")
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

// handleListJobs godoc
// @Summary      List ingestion jobs of a deal
// @Tags         Ingestion
// @Produce      json
// @Security     BearerAuth
// @Param        dealId  path      string  true   "Deal ID"
// @Param        limit   query     int     false  "Max jobs (default 50)"
// @Success      200     {array}   domain.IngestionJob
// @Failure      400     {object}  ErrorResponse
// @Router       /deals/{dealId}/jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	jobs, err := s.ingestion.ListJobs(r.Context(), r.PathValue("dealId"), limit)
	if err != nil {
		s.writeServiceError(w, err, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*domain.IngestionJob{}
	}

	writeJSON(w, http.StatusOK, jobs)
}

// handleGetJob godoc
// @Summary      Get an ingestion job
// @Tags         Ingestion
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  domain.IngestionJob
// @Failure      404  {object}  ErrorResponse
// @Router       /jobs/{id} [get]
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.ingestion.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Search endpoints

// handleDealSearch godoc
// @Summary      Search deal documents
// @Description  Returns segment texts ranked by similarity. With dealId, other deals' results are dropped after ranking, so fewer than maxResults may come back.
// @Tags         Search
// @Produce      json
// @Security     BearerAuth
// @Param        query       query     string  false  "Free-text query (empty is allowed)"
// @Param        dealId      query     string  false  "Restrict to one deal"
// @Param        maxResults  query     int     false  "Number of neighbours (default 5)"
// @Success      200         {array}   string
// @Failure      400         {object}  ErrorResponse
// @Failure      500         {object}  ErrorResponse
// @Router       /deals/search [get]
func (s *Server) handleDealSearch(w http.ResponseWriter, r *http.Request) {
	maxResults, ok := queryInt(w, r, "maxResults")
	if !ok {
		return
	}

	q := r.URL.Query()
	texts, err := s.retrieval.Search(r.Context(), q.Get("query"), q.Get("dealId"), maxResults)
	if err != nil {
		s.writeServiceError(w, err, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, texts)
}

// handleSearch godoc
// @Summary      Search with details
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.SearchQuery  true  "Search query"
// @Success      200      {object}  domain.SearchResult
// @Failure      400      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.retrieval.SearchDetailed(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Operational endpoints

// handleDebugEmbeddings godoc
// @Summary      Vector store summary
// @Tags         Debug
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  EmbeddingsDebugResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /debug/embeddings [get]
func (s *Server) handleDebugEmbeddings(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "failed to count embeddings")
		return
	}
	writeJSON(w, http.StatusOK, EmbeddingsDebugResponse{Backend: s.backend, Count: count})
}

// handleQueueStats godoc
// @Summary      Task queue statistics
// @Tags         Debug
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  driven.QueueStats
// @Failure      500  {object}  ErrorResponse
// @Router       /queue/stats [get]
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.taskQueue.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "failed to read queue stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeServiceError maps domain errors to status codes. Only invalid input
// and missing resources expose the error text.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrServiceUnavailable):
		s.logger.Error(message, "error", err)
		writeError(w, http.StatusServiceUnavailable, message)
	default:
		s.logger.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message)
	}
}

// queryInt parses an optional integer query parameter, writing 400 on failure.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
