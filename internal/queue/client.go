// Package queue provides async execution of insight analyses over Redis,
// so large datasets can be processed without holding an HTTP request open.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/reviewinsights/internal/models"
)

// Task type constants
const (
	TypeAnalyzeReviews  = "reviewinsights:analyze"
	TypeRefreshAnalysis = "reviewinsights:refresh"
)

// Queue names, in priority order
const (
	QueueAnalysis = "analysis"
	QueueRefresh  = "refresh"
)

// AnalyzePayload carries one analysis request through the queue
type AnalyzePayload struct {
	JobID  string                `json:"job_id"`
	Params models.InsightsParams `json:"params"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client *asynq.Client
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}
	return &Client{client: asynq.NewClient(redisOpt)}
}

// EnqueueAnalyze enqueues an insight analysis task and returns its task ID
func (c *Client) EnqueueAnalyze(ctx context.Context, jobID string, params models.InsightsParams) (string, error) {
	payload := AnalyzePayload{
		JobID:      jobID,
		Params:     params,
		EnqueuedAt: time.Now().UnixNano(), // for queue wait metrics
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeReviews),
			attribute.String("task.id", jobID),
			attribute.String("analysis.type", params.AnalysisType),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TypeAnalyzeReviews, payloadBytes, asynq.TaskID(jobID))
	opts := []asynq.Option{
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Minute), // batched AI analysis can be slow
		asynq.Queue(QueueAnalysis),
		asynq.Retention(7 * 24 * time.Hour),
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue analyze task: %w", err)
	}
	return info.ID, nil
}

// EnqueueRefresh enqueues a low-priority forced re-analysis, used to warm
// the cache for a previously seen request.
func (c *Client) EnqueueRefresh(ctx context.Context, jobID string, params models.InsightsParams) (string, error) {
	params.ForceRefresh = true
	params.SkipConfirmation = true

	payload := AnalyzePayload{
		JobID:      jobID,
		Params:     params,
		EnqueuedAt: time.Now().UnixNano(),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TypeRefreshAnalysis, payloadBytes, asynq.TaskID(jobID))
	opts := []asynq.Option{
		asynq.MaxRetry(2),
		asynq.Timeout(30 * time.Minute),
		asynq.Queue(QueueRefresh),
		asynq.Retention(24 * time.Hour),
	}

	info, err := c.client.Enqueue(task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue refresh task: %w", err)
	}
	return info.ID, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}
