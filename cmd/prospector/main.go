package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prospector/internal/assess"
	prospectorconfig "prospector/internal/config"
	"prospector/internal/metering"
	"prospector/internal/opportunity"
	"prospector/internal/pipeline"
	"prospector/internal/ragchat"
	"prospector/internal/research"
	"prospector/internal/store"
	"prospector/internal/triage"
	"prospector/pkg/clients/wikipedia"
	"prospector/pkg/config"
	"prospector/pkg/database"
	"prospector/pkg/llm"
	"prospector/pkg/logging"
	"prospector/pkg/retry"
	"prospector/pkg/search"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("prospector")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Prospector (wealth-opportunity pipeline)")

	cfg := prospectorconfig.LoadConfig()

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	llmProvider, err := llm.NewProvider(llm.Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		APIURL:    cfg.LLMAPIURL,
		MaxTokens: cfg.LLMMaxTokens,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize LLM provider")
	}

	// A lighter model handles high-volume utility calls (triage batches,
	// context summaries) when configured; falls back to the main provider.
	utilityProvider, err := llm.NewProvider(llm.Config{
		Provider: cfg.UtilityLLMProvider,
		Model:    cfg.UtilityLLMModel,
		APIKey:   cfg.UtilityLLMAPIKey,
		APIURL:   cfg.UtilityLLMAPIURL,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize utility LLM provider, using main provider")
		utilityProvider = llmProvider
	}

	searchProvider, err := search.NewProvider(search.Config{
		Provider: cfg.SearchProvider,
		APIKey:   cfg.SearchAPIKey,
		APIURL:   cfg.SearchAPIURL,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize search provider - web lookups disabled")
		searchProvider = nil
	}

	wikiClient := wikipedia.NewClient(cfg.WikipediaAPIURL)

	tracker := metering.NewTracker(metering.TrackerConfig{
		Logger:         logger,
		ReportInterval: cfg.UsageReportInterval,
	})
	tracker.Start()
	defer tracker.Stop()

	retryPolicy := retry.NewPolicy(retry.Config{
		MaxRetries: cfg.RetryAttempts,
		Delay:      cfg.RetryDelay,
	})

	dataStore := store.NewStore(db)

	runner := pipeline.NewRunner(pipeline.Config{
		Classifier: triage.NewClassifier(triage.Config{
			Provider:  utilityProvider,
			Logger:    logger,
			Retry:     retryPolicy,
			BatchSize: cfg.BatchSize,
		}),
		Assessor: assess.NewAssessor(assess.Config{
			Provider: llmProvider,
			Logger:   logger,
			Retry:    retryPolicy,
		}),
		Research: research.NewOrchestrator(research.Config{
			Search:    searchProvider,
			Wikipedia: wikiClient,
			Summarizer: research.NewSummarizer(research.SummarizerConfig{
				Provider: utilityProvider,
				Logger:   logger,
				Deadline: cfg.SummaryDeadline,
			}),
			Logger: logger,
		}),
		Synthesizer: opportunity.NewSynthesizer(opportunity.Config{
			Provider: llmProvider,
			Logger:   logger,
		}),
		Store:           dataStore,
		Tracker:         tracker,
		Logger:          logger,
		AcceptThreshold: cfg.AcceptThreshold,
	})
	scanHandler := pipeline.NewHandler(runner, logger)

	answerer := ragchat.NewAnswerer(ragchat.AnswererConfig{
		Planner: ragchat.NewPlanner(llmProvider, logger),
		Assembler: ragchat.NewAssembler(ragchat.AssemblerConfig{
			Knowledge:    nil, // wired when a similarity-search service is configured
			Encyclopedia: wikiClient,
			Search:       searchProvider,
			Rewriter:     ragchat.NewQueryRewriter(utilityProvider),
			Logger:       logger,
		}),
		Synthesizer: ragchat.NewSynthesizer(llmProvider),
		Verifier:    ragchat.NewVerifier(llmProvider),
		Logger:      logger,
	})
	chatHandler := ragchat.NewHandler(answerer, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.POST("/scan", func(c *gin.Context) {
		ctx := metering.WithContext(c.Request.Context(), &metering.Context{Stage: "scan", Tracker: tracker})
		c.Request = c.Request.WithContext(ctx)
		scanHandler.Scan(c)
	})
	v1.POST("/chat", func(c *gin.Context) {
		ctx := metering.WithContext(c.Request.Context(), &metering.Context{Stage: "chat", Tracker: tracker})
		c.Request = c.Request.WithContext(ctx)
		chatHandler.Chat(c)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
