package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/reviewinsights/internal/insights"
	"github.com/zombar/reviewinsights/internal/metrics"
)

// Worker wraps the Asynq server for processing analysis tasks
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	engine      *insights.Engine
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
}

// NewWorker creates a new queue worker
func NewWorker(cfg WorkerConfig, engine *insights.Engine, m *metrics.Metrics) *Worker {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	serverCfg := asynq.Config{
		Concurrency: cfg.Concurrency,

		// Interactive analyses outrank background cache refreshes
		Queues: map[string]int{
			QueueAnalysis: 7,
			QueueRefresh:  2,
		},
		StrictPriority: false,

		RetryDelayFunc: retryDelay,

		ShutdownTimeout: 30 * time.Second,

		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			slog.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
	}

	w := &Worker{
		server:      asynq.NewServer(redisOpt, serverCfg),
		mux:         asynq.NewServeMux(),
		engine:      engine,
		concurrency: cfg.Concurrency,
		logger:      slog.Default(),
		metrics:     m,
	}
	w.mux.HandleFunc(TypeAnalyzeReviews, w.handleAnalyze)
	w.mux.HandleFunc(TypeRefreshAnalysis, w.handleAnalyze)
	return w
}

// retryDelay backs off aggressively: analysis failures are usually the
// text-generation backend being overloaded, and hammering it makes that
// worse. 30s, 2m, 10m, 30m, then hourly.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delays := []time.Duration{
		30 * time.Second,
		2 * time.Minute,
		10 * time.Minute,
		30 * time.Minute,
	}
	if n < len(delays) {
		return delays[n]
	}
	return time.Hour
}

// Start starts the worker to begin processing tasks. Blocking.
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", map[string]int{QueueAnalysis: 7, QueueRefresh: 2},
	)
	if err := w.server.Run(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}
