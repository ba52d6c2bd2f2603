package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/assigny/clinic-agent/internal/agent"
	"github.com/assigny/clinic-agent/internal/api/router"
	"github.com/assigny/clinic-agent/internal/capabilities"
	appconfig "github.com/assigny/clinic-agent/internal/config"
	"github.com/assigny/clinic-agent/internal/directory"
	"github.com/assigny/clinic-agent/internal/notify"
	"github.com/assigny/clinic-agent/internal/observability/metrics"
	"github.com/assigny/clinic-agent/internal/schedule"
	"github.com/assigny/clinic-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-agent API server", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	llm, closeLLM, err := buildLLM(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize LLM clients", "error", err)
		os.Exit(1)
	}
	defer closeLLM()

	// Domain collaborators.
	dirRepo := directory.NewRepository(pool)
	schedRepo := schedule.NewRepository(pool)
	schedService := schedule.NewService(dirRepo, schedRepo, logger)
	notifyService := buildNotify(ctx, cfg, logger)

	// Agent pipeline.
	agentMetrics := metrics.NewAgentMetrics(nil)
	registry := agent.NewRegistry()
	if err := capabilities.Register(registry, capabilities.Deps{
		Schedule: schedService,
		Notify:   notifyService,
		Logger:   logger,
	}); err != nil {
		logger.Error("failed to register capabilities", "error", err)
		os.Exit(1)
	}
	registry.Seal()

	store := agent.NewSessionStore(cfg.SessionTTL, logger)
	store.StartReaper(ctx, cfg.ReapInterval)

	agentRouter := agent.NewRouter(llm, registry, logger,
		agent.WithHistoryWindow(cfg.HistoryWindow),
		agent.WithDecisionRetries(cfg.DecisionRetries),
		agent.WithRouterMetrics(agentMetrics),
	)
	executor := agent.NewExecutor(registry, cfg.ExecutionTimeout, logger, agentMetrics)
	composer := agent.NewComposer(llm, logger)

	var transcript *agent.TranscriptStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		transcript = agent.NewTranscriptStore(rdb, nil)
	}

	service := agent.NewService(agent.ServiceConfig{
		Store:           store,
		Router:          agentRouter,
		Executor:        executor,
		Composer:        composer,
		Transcript:      transcript,
		Metrics:         agentMetrics,
		Logger:          logger,
		HistoryWindow:   cfg.HistoryWindow,
		DecisionTimeout: cfg.DecisionTimeout,
	})
	handler := agent.NewHandler(service, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		AgentHandler:   handler,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildLLM wires the Gemini primary with a Bedrock fallback when both are
// configured. At least one provider must be available.
func buildLLM(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (agent.LLMClient, func(), error) {
	var (
		primary  agent.LLMClient
		fallback agent.LLMClient
		closers  []func()
	)

	if cfg.GeminiAPIKey != "" {
		gemini, err := agent.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, err
		}
		primary = gemini
		closers = append(closers, func() { _ = gemini.Close() })
		logger.Info("gemini LLM client initialized", "model", cfg.GeminiModelID)
	}

	if cfg.BedrockModelID != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("failed to load AWS config, skipping bedrock fallback", "error", err)
		} else {
			bedrock := agent.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
			if primary == nil {
				primary = bedrock
			} else {
				fallback = bedrock
			}
			logger.Info("bedrock LLM client initialized", "model", cfg.BedrockModelID)
		}
	}

	if primary == nil {
		logger.Error("no LLM provider configured; set GEMINI_API_KEY or BEDROCK_MODEL_ID")
		os.Exit(1)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return agent.NewFallbackLLMClient(primary, fallback, logger), closeAll, nil
}

// buildNotify assembles the notification fan-out from whatever channels are
// configured. Missing channels degrade bookings to partial success at worst.
func buildNotify(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *notify.Service {
	var email notify.EmailSender
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			email = sender
		}
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("failed to load AWS config for SES", "error", err)
		} else if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); sender != nil {
			email = sender
		}
	}
	if email == nil {
		email = notify.NewStubEmailSender(logger)
	}

	var cal notify.CalendarClient
	gcal, err := notify.NewGoogleCalendar(ctx, notify.GoogleCalendarConfig{
		CalendarID:   cfg.GoogleCalendarID,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RefreshToken: cfg.GoogleRefreshToken,
	}, logger)
	if err != nil {
		logger.Warn("google calendar unavailable", "error", err)
	} else if gcal != nil {
		cal = gcal
	}

	slack := notify.NewSlackNotifier(cfg.SlackWebhookURL, cfg.SlackChannelID, logger)

	return notify.NewService(email, cal, slack, logger)
}
