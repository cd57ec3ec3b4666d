package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parth0cb/agentic-internet-researcher/internal/config"
	"github.com/parth0cb/agentic-internet-researcher/internal/models"
	"github.com/parth0cb/agentic-internet-researcher/internal/orchestrator"
	"github.com/parth0cb/agentic-internet-researcher/internal/retrieval"
	"github.com/parth0cb/agentic-internet-researcher/internal/search"
	"github.com/parth0cb/agentic-internet-researcher/internal/storage"
	"github.com/parth0cb/agentic-internet-researcher/internal/stream"
	"github.com/parth0cb/agentic-internet-researcher/pkg/logger"
)

// Research modes
const (
	ModeSimple  = "simple"
	ModeAgentic = "agentic"
)

const maxBodyBytes = 1 << 20

// Orchestrator runs one research request as an event stream
type Orchestrator interface {
	Run(ctx context.Context, query string, creds models.Credentials) iter.Seq[models.Event]
}

// ProviderLister reports the configured search providers
type ProviderLister interface {
	Providers() []search.Info
}

// ResearchHandler serves the research API
type ResearchHandler struct {
	config    *config.Config
	modes     map[string]Orchestrator
	providers ProviderLister
	store     *storage.RunStore
}

// NewResearchHandler creates a new handler. store may be nil, runs are then not recorded.
func NewResearchHandler(cfg *config.Config, simple, agentic Orchestrator, providers ProviderLister, store *storage.RunStore) *ResearchHandler {
	return &ResearchHandler{
		config: cfg,
		modes: map[string]Orchestrator{
			ModeSimple:  simple,
			ModeAgentic: agentic,
		},
		providers: providers,
		store:     store,
	}
}

// ServeHTTP handles all HTTP requests
func (h *ResearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	traceID := extractTraceID(r)
	if traceID == "" {
		traceID = generateTraceID()
	}

	r = r.WithContext(logger.ContextWithTraceID(r.Context(), traceID))

	log := logger.WithTraceID(traceID)
	log.Info("request received",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("X-Trace-ID", traceID)

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/health":
		h.handleHealth(w, r, log)
	case path == "/providers":
		h.handleProviders(w, r, log)
	case strings.HasPrefix(path, "/search/"):
		h.handleSearch(w, r, strings.TrimPrefix(path, "/search/"), log)
	case path == "/runs":
		h.handleListRuns(w, r, log)
	case strings.HasPrefix(path, "/runs/"):
		h.handleRun(w, r, strings.TrimPrefix(path, "/runs/"), log)
	default:
		h.handleError(w, http.StatusNotFound, "not_found", "Endpoint not found", log)
	}

	log.Info("request completed",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// handleHealth handles health check requests
func (h *ResearchHandler) handleHealth(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// handleProviders handles provider list requests
func (h *ResearchHandler) handleProviders(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.providers.Providers(),
		"default":   h.config.Search.Default,
	})
}

// handleSearch streams one research run as NDJSON
func (h *ResearchHandler) handleSearch(w http.ResponseWriter, r *http.Request, mode string, log *zap.Logger) {
	orch, ok := h.modes[mode]
	if !ok || orch == nil {
		h.handleError(w, http.StatusNotFound, "not_found", fmt.Sprintf("Unknown research mode %q", mode), log)
		return
	}
	if r.Method != http.MethodPost {
		h.handleError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST method is allowed", log)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.handleError(w, http.StatusBadRequest, "read_error", "Failed to read request body", log)
		return
	}
	defer r.Body.Close()

	var req models.SearchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.handleError(w, http.StatusBadRequest, "parse_error", fmt.Sprintf("Failed to parse request: %v", err), log)
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.handleError(w, http.StatusBadRequest, "invalid_request", "Query is required", log)
		return
	}

	creds := h.credentials(r, &req)
	if creds.APIKey == "" {
		h.handleError(w, http.StatusUnauthorized, "unauthorized", "API key is required", log)
		return
	}
	if creds.BaseURL == "" || creds.Model == "" {
		h.handleError(w, http.StatusBadRequest, "invalid_request", "Base URL and model are required", log)
		return
	}

	run := storage.NewRun(generateRunID(), mode, req.Query, creds.Model)
	log = log.With(zap.String("run_id", run.ID), zap.String("mode", mode))
	log.Info("research started", zap.String("model", creds.Model))

	w.Header().Set("X-Run-ID", run.ID)
	stream.SetHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := retrieval.ContextWithSourceSink(r.Context(), run.AddSources)

	out := stream.NewNDJSONWriter(w, log)
	for ev := range orch.Run(ctx, req.Query, creds) {
		run.Observe(ev)
		if ev.Type == models.EventError && errors.Is(ev.Err, orchestrator.ErrAborted) {
			run.Status = storage.StatusAborted
		}
		if err := out.WriteEvent(ev); err != nil {
			// Client went away, leaving the loop stops the run
			log.Warn("stream write failed", zap.Error(err))
			break
		}
	}
	run.Finish()

	log.Info("research finished",
		zap.String("status", run.Status),
		zap.Int("searches", len(run.Searches)),
		zap.Int("sources", len(run.Sources)),
		zap.Int64("total_tokens", run.Usage.TotalTokens),
	)
	h.record(run, log)
}

// credentials resolves body fields first, then headers, then configured defaults
func (h *ResearchHandler) credentials(r *http.Request, req *models.SearchRequest) models.Credentials {
	creds := models.Credentials{
		APIKey:  req.APIKey,
		BaseURL: req.BaseURL,
		Model:   req.Model,
	}

	if creds.APIKey == "" {
		creds.APIKey = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	if creds.BaseURL == "" {
		creds.BaseURL = r.Header.Get("X-Base-URL")
	}
	if creds.Model == "" {
		creds.Model = r.Header.Get("X-Model")
	}

	if creds.APIKey == "" {
		creds.APIKey = h.config.LLM.APIKey
	}
	if creds.BaseURL == "" {
		creds.BaseURL = h.config.LLM.BaseURL
	}
	if creds.Model == "" {
		creds.Model = h.config.LLM.Model
	}

	return creds
}

func (h *ResearchHandler) record(run *storage.Run, log *zap.Logger) {
	if h.store == nil {
		return
	}
	if err := h.store.Store(run); err != nil {
		log.Error("failed to store run", zap.Error(err))
	}
}

// handleRun handles GET and DELETE /runs/{id}
func (h *ResearchHandler) handleRun(w http.ResponseWriter, r *http.Request, id string, log *zap.Logger) {
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		h.handleError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET and DELETE methods are allowed", log)
		return
	}
	if h.store == nil {
		h.handleError(w, http.StatusNotFound, "not_found", "Run log is disabled", log)
		return
	}

	run, ok := h.store.Get(id)
	if !ok {
		h.handleError(w, http.StatusNotFound, "not_found", "Run not found", log)
		return
	}

	if r.Method == http.MethodDelete {
		if err := h.store.Delete(id); err != nil {
			h.handleError(w, http.StatusInternalServerError, "storage_error", err.Error(), log)
			return
		}
		log.Info("run deleted", zap.String("run_id", id))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// handleListRuns handles GET /runs?limit=n
func (h *ResearchHandler) handleListRuns(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	if r.Method != http.MethodGet {
		h.handleError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only GET method is allowed", log)
		return
	}
	if h.store == nil {
		h.handleError(w, http.StatusNotFound, "not_found", "Run log is disabled", log)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.handleError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer", log)
			return
		}
		limit = n
	}

	runs, err := h.store.Recent(limit)
	if err != nil {
		h.handleError(w, http.StatusInternalServerError, "storage_error", err.Error(), log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleError handles errors
func (h *ResearchHandler) handleError(w http.ResponseWriter, status int, errType, message string, log *zap.Logger) {
	log.Error("request error",
		zap.String("error_type", errType),
		zap.String("message", message),
		zap.Int("status", status),
	)

	writeJSON(w, status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Type:    errType,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// extractTraceID extracts trace ID from various possible headers
func extractTraceID(r *http.Request) string {
	headers := []string{
		"X-Trace-ID",
		"X-Request-ID",
		"X-Correlation-ID",
		"Trace-ID",
		"Request-ID",
	}

	for _, header := range headers {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}

	return ""
}

// generateTraceID generates a new trace ID
func generateTraceID() string {
	return uuid.New().String()[:16]
}

// generateRunID returns a time-ordered ID so the run log iterates oldest to newest
func generateRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
