package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/reviewinsights/internal/database"
	"github.com/zombar/reviewinsights/internal/insights"
	"github.com/zombar/reviewinsights/internal/metrics"
	"github.com/zombar/reviewinsights/internal/models"
	"github.com/zombar/reviewinsights/pkg/tracing"
)

// Enqueuer enqueues async analysis jobs
type Enqueuer interface {
	EnqueueAnalyze(ctx context.Context, jobID string, params models.InsightsParams) (string, error)
	EnqueueRefresh(ctx context.Context, jobID string, params models.InsightsParams) (string, error)
}

// JobInspector reports queued task state. Satisfied by *asynq.Inspector.
type JobInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// Handler handles HTTP requests
type Handler struct {
	db        *database.DB
	engine    *insights.Engine
	queue     Enqueuer
	inspector JobInspector
	metrics   *metrics.Metrics
	mux       *http.ServeMux
}

// NewHandler creates a new API handler with CORS support and metrics
func NewHandler(db *database.DB, engine *insights.Engine, queue Enqueuer, inspector JobInspector, m *metrics.Metrics) http.Handler {
	h := &Handler{
		db:        db,
		engine:    engine,
		queue:     queue,
		inspector: inspector,
		metrics:   m,
		mux:       http.NewServeMux(),
	}

	h.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(h.mux)
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.mux.Handle("/metrics", promhttp.Handler())
	h.mux.HandleFunc("/api/insights", h.handleInsights)
	h.mux.HandleFunc("/api/insights/async", h.handleInsightsAsync)
	h.mux.HandleFunc("/api/jobs/", h.handleJobStatus)
	h.mux.HandleFunc("/api/analyses", h.handleListAnalyses)
	h.mux.HandleFunc("/api/analyses/", h.handleAnalysisOperations)
	h.mux.HandleFunc("/health", h.handleHealth)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleInsights runs an analysis synchronously. The response is either the
// insight payload, or a confirmation prompt when the dataset gate blocks
// the request.
func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params models.InsightsParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.String("analysis.type", params.AnalysisType),
		attribute.Int("store.count", len(params.StoreIDs)))

	started := time.Now()
	resp, confirm, err := h.engine.GenerateInsights(r.Context(), params)
	if err != nil {
		var inputErr *insights.InputError
		if errors.As(err, &inputErr) {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if confirm != nil {
		respondJSON(w, confirm, http.StatusOK)
		return
	}

	h.metrics.ObserveAnalysis(params.AnalysisType, resp.Metadata.AnalysisMethod, time.Since(started))
	h.metrics.ObserveCache(resp.Metadata.CacheHit)

	if params.OutputFormat == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(RenderText(resp)))
		return
	}
	respondJSON(w, resp, http.StatusOK)
}

// handleInsightsAsync enqueues an analysis and returns a job ID immediately
func (h *Handler) handleInsightsAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.queue == nil {
		respondError(w, "Async processing is not configured", http.StatusServiceUnavailable)
		return
	}

	var params models.InsightsParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	jobID := uuid.New().String()
	taskID, err := h.queue.EnqueueAnalyze(r.Context(), jobID, params)
	if err != nil {
		respondError(w, "Failed to enqueue analysis: "+err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]any{
		"job_id":  jobID,
		"task_id": taskID,
		"status":  "queued",
		"message": "Analysis queued for processing",
	}, http.StatusAccepted)
}

// handleJobStatus reports the queue state of an async analysis
func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.inspector == nil {
		respondError(w, "Async processing is not configured", http.StatusServiceUnavailable)
		return
	}

	jobID := r.URL.Path[len("/api/jobs/"):]
	if idx := strings.Index(jobID, "/"); idx != -1 {
		jobID = jobID[:idx]
	}
	if jobID == "" {
		respondError(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	info, err := h.inspector.GetTaskInfo("analysis", jobID)
	if err != nil {
		info, err = h.inspector.GetTaskInfo("refresh", jobID)
	}
	if err != nil {
		respondJSON(w, map[string]any{
			"job_id":  jobID,
			"status":  "not_found",
			"message": "Job not found - it may have expired",
		}, http.StatusNotFound)
		return
	}

	response := map[string]any{
		"job_id": jobID,
		"status": jobStatus(info.State),
	}
	if info.LastErr != "" {
		response["last_error"] = info.LastErr
	}
	if info.State == asynq.TaskStateCompleted {
		response["message"] = "Analysis complete; retrieve it via /api/analyses"
	}
	respondJSON(w, response, http.StatusOK)
}

func jobStatus(state asynq.TaskState) string {
	switch state {
	case asynq.TaskStateActive:
		return "processing"
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
		return "queued"
	case asynq.TaskStateRetry:
		return "retrying"
	case asynq.TaskStateCompleted:
		return "completed"
	case asynq.TaskStateArchived:
		return "failed"
	default:
		return "unknown"
	}
}

// handleListAnalyses handles listing stored analyses with pagination
func (h *Handler) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 10
	offset := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	analysisType := r.URL.Query().Get("type")
	if analysisType != "" && !models.ValidAnalysisType(analysisType) {
		respondError(w, "Unknown analysis type", http.StatusBadRequest)
		return
	}

	records, err := h.db.ListAnalyses(r.Context(), analysisType, limit, offset)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*models.AnalysisRecord{}
	}
	respondJSON(w, records, http.StatusOK)
}

// handleAnalysisOperations handles GET and DELETE for specific analyses,
// plus POST {id}/refresh to re-run one in the background.
func (h *Handler) handleAnalysisOperations(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/api/analyses/"):]
	if rest, ok := strings.CutSuffix(id, "/refresh"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleRefreshAnalysis(w, r, rest)
		return
	}
	if id == "" {
		respondError(w, "Analysis ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		record, err := h.db.GetAnalysis(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, record, http.StatusOK)
	case http.MethodDelete:
		err := h.db.DeleteAnalysis(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRefreshAnalysis enqueues a forced re-run of a stored analysis with
// its original parameters, warming the cache for the next request.
func (h *Handler) handleRefreshAnalysis(w http.ResponseWriter, r *http.Request, id string) {
	if h.queue == nil {
		respondError(w, "Async processing is not configured", http.StatusServiceUnavailable)
		return
	}
	if id == "" {
		respondError(w, "Analysis ID is required", http.StatusBadRequest)
		return
	}

	record, err := h.db.GetAnalysis(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jobID := uuid.New().String()
	taskID, err := h.queue.EnqueueRefresh(r.Context(), jobID, record.Params)
	if err != nil {
		respondError(w, "Failed to enqueue refresh: "+err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]any{
		"job_id":  jobID,
		"task_id": taskID,
		"status":  "queued",
		"message": "Refresh queued for processing",
	}, http.StatusAccepted)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
