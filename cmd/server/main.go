package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombar/reviewinsights/internal/api"
	"github.com/zombar/reviewinsights/internal/database"
	"github.com/zombar/reviewinsights/internal/insights"
	"github.com/zombar/reviewinsights/internal/llm"
	"github.com/zombar/reviewinsights/internal/metrics"
	"github.com/zombar/reviewinsights/internal/pinmeto"
	"github.com/zombar/reviewinsights/internal/queue"
	"github.com/zombar/reviewinsights/pkg/logging"
	"github.com/zombar/reviewinsights/pkg/tracing"
)

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Local development configuration lives in .env
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded configuration from .env")
	}

	logger.Info("reviewinsights service initializing", "version", "1.0.0")

	// Initialize tracing
	tp, err := tracing.InitTracer("reviewinsights")
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	// Get default values from environment variables, with fallbacks
	portDefault := getEnv("PORT", "8080")
	dbPathDefault := getEnv("DB_PATH", "reviewinsights.db")
	ollamaURLDefault := getEnv("OLLAMA_URL", "http://localhost:11434")
	ollamaModelDefault := getEnv("OLLAMA_MODEL", llm.DefaultModel)
	useOllamaDefault := getEnvBool("USE_OLLAMA", true)
	redisAddrDefault := getEnv("REDIS_ADDR", "localhost:6379")
	pinmetoURLDefault := getEnv("PINMETO_API_URL", "https://api.pinmeto.com")
	concurrencyDefault := getEnvInt("WORKER_CONCURRENCY", 4)

	var (
		port        = flag.String("port", portDefault, "Server port (env: PORT)")
		dbPath      = flag.String("db", dbPathDefault, "Database file path (env: DB_PATH)")
		ollamaURL   = flag.String("ollama-url", ollamaURLDefault, "Ollama API URL (env: OLLAMA_URL)")
		ollamaModel = flag.String("ollama-model", ollamaModelDefault, "Ollama model to use (env: OLLAMA_MODEL)")
		useOllama   = flag.Bool("use-ollama", useOllamaDefault, "Enable Ollama for AI-powered analysis (env: USE_OLLAMA)")
		redisAddr   = flag.String("redis-addr", redisAddrDefault, "Redis address for async processing (env: REDIS_ADDR)")
		pinmetoURL  = flag.String("pinmeto-url", pinmetoURLDefault, "PinMeTo API base URL (env: PINMETO_API_URL)")
		concurrency = flag.Int("concurrency", concurrencyDefault, "Worker concurrency (env: WORKER_CONCURRENCY)")
	)
	flag.Parse()

	appID := os.Getenv("PINMETO_APP_ID")
	appSecret := os.Getenv("PINMETO_APP_SECRET")
	accountID := os.Getenv("PINMETO_ACCOUNT_ID")
	if appID == "" || appSecret == "" || accountID == "" {
		logger.Error("PINMETO_APP_ID, PINMETO_APP_SECRET and PINMETO_ACCOUNT_ID are required")
		os.Exit(1)
	}

	// Initialize database
	db, err := database.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "database_path", *dbPath)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize metrics
	m := metrics.New(prometheus.DefaultRegisterer)

	// Feed connection pool stats into the DB gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			m.UpdateDBStats(db.Conn())
		}
	}()

	// Initialize the upstream review source
	httpClient := &http.Client{Timeout: 30 * time.Second}
	tokens := pinmeto.NewTokenSource(*pinmetoURL, appID, appSecret, httpClient)
	fetcher := pinmeto.NewClient(*pinmetoURL, accountID, tokens, httpClient)
	logger.Info("review source initialized", "api_url", *pinmetoURL, "account_id", accountID)

	// Initialize the analyzer. Without Ollama every request takes the
	// statistical path.
	var analyzer *insights.Analyzer
	var orchestrator *insights.Orchestrator
	if *useOllama {
		llmClient, err := llm.New(*ollamaURL, *ollamaModel)
		if err != nil {
			logger.Warn("failed to initialize Ollama client, falling back to statistical analysis",
				"error", err,
				"ollama_url", *ollamaURL,
				"ollama_model", *ollamaModel,
			)
		} else {
			logger.Info("Ollama client initialized", "model", *ollamaModel, "url", *ollamaURL)
			analyzer = insights.NewAnalyzer(llmClient, llm.DefaultMaxTokens)
			orchestrator = insights.NewOrchestrator(analyzer, insights.DefaultBatchSize)
		}
	} else {
		logger.Info("Ollama disabled, using statistical analysis")
	}

	engine := insights.NewEngine(insights.EngineConfig{
		Fetcher:      fetcher,
		Analyzer:     analyzer,
		Orchestrator: orchestrator,
		Cache:        insights.NewResultCache(0, 0),
		Store:        db,
		AccountID:    accountID,
		Metrics:      m,
	})

	// Initialize async processing
	queueClient := queue.NewClient(queue.ClientConfig{RedisAddr: *redisAddr})
	defer queueClient.Close()

	worker := queue.NewWorker(queue.WorkerConfig{
		RedisAddr:   *redisAddr,
		Concurrency: *concurrency,
	}, engine, m)
	go func() {
		if err := worker.Start(); err != nil {
			logger.Error("worker failed", "error", err)
			os.Exit(1)
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: *redisAddr})
	defer inspector.Close()

	// Initialize API handler
	apiHandler := api.NewHandler(db, engine, queueClient, inspector, m)

	// Wrap handler with middleware chain: HTTP logging -> tracing -> handlers
	handler := logging.HTTPLoggingMiddleware(logger)(
		tracing.HTTPMiddleware("reviewinsights")(apiHandler),
	)

	// Create server with extended timeouts for AI processing
	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 420 * time.Second, // 7 minutes for synchronous AI analysis
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("reviewinsights service starting",
			"port", *port,
			"database", *dbPath,
			"ollama_enabled", *useOllama,
			"ollama_url", *ollamaURL,
			"ollama_model", *ollamaModel,
			"redis_addr", *redisAddr,
			"worker_concurrency", *concurrency,
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	worker.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
