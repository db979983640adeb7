package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/reviewinsights/internal/insights"
)

// handleAnalyze processes one queued analysis request
func (w *Worker) handleAnalyze(ctx context.Context, t *asynq.Task) error {
	var payload AnalyzePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	var queueWait time.Duration
	if payload.EnqueuedAt > 0 {
		queueWait = time.Since(time.Unix(0, payload.EnqueuedAt))
	}
	w.metrics.ObserveQueueWait(queueWait)

	w.logger.Info("processing analysis task",
		"job_id", payload.JobID,
		"analysis_type", payload.Params.AnalysisType,
		"store_count", len(payload.Params.StoreIDs),
		"queue_wait_seconds", queueWait.Seconds(),
	)

	ctx, span := resumeTrace(ctx, t.Type(), payload, queueWait)
	if span != nil {
		defer span.End()
	}

	started := time.Now()
	resp, confirm, err := w.engine.GenerateInsights(ctx, payload.Params)
	if err != nil {
		var inputErr *insights.InputError
		if errors.As(err, &inputErr) {
			// Bad parameters never get better on retry
			return fmt.Errorf("rejected: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}
	if confirm != nil {
		// Async callers cannot answer a confirmation prompt; they must
		// resubmit with skipConfirmation or a sampling strategy.
		return fmt.Errorf("dataset of %d reviews requires confirmation or a sampling strategy: %w",
			confirm.TotalReviewCount, asynq.SkipRetry)
	}

	w.metrics.ObserveAnalysis(payload.Params.AnalysisType, resp.Metadata.AnalysisMethod, time.Since(started))
	w.logger.Info("analysis task complete",
		"job_id", payload.JobID,
		"analysis_method", resp.Metadata.AnalysisMethod,
		"analyzed_reviews", resp.Metadata.AnalyzedReviewCount,
		"complete", resp.Metadata.Complete,
		"duration_seconds", time.Since(started).Seconds(),
	)
	return nil
}

// resumeTrace rebuilds the trace context propagated through the payload so
// the worker span links to the producer's trace. Returns a nil span when no
// valid trace context was carried.
func resumeTrace(ctx context.Context, taskType string, payload AnalyzePayload, queueWait time.Duration) (context.Context, trace.Span) {
	if payload.TraceID == "" || payload.SpanID == "" {
		return ctx, nil
	}
	traceID, err := trace.TraceIDFromHex(payload.TraceID)
	if err != nil {
		return ctx, nil
	}
	spanID, err := trace.SpanIDFromHex(payload.SpanID)
	if err != nil {
		return ctx, nil
	}

	remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)

	ctx, span := otel.Tracer("reviewinsights").Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", taskType),
			attribute.String("job.id", payload.JobID),
			attribute.String("analysis.type", payload.Params.AnalysisType),
			attribute.Float64("queue.wait_time_seconds", queueWait.Seconds()),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		),
	)
	return ctx, span
}
