package main

// @title Leadflow API
// @version 1.0
// @description Lead management and email campaigns for local businesses.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jordanlanch/leadflow/config"
	"github.com/jordanlanch/leadflow/pkg/analytics"
	"github.com/jordanlanch/leadflow/pkg/api/handlers"
	"github.com/jordanlanch/leadflow/pkg/cache"
	"github.com/jordanlanch/leadflow/pkg/campaign"
	"github.com/jordanlanch/leadflow/pkg/database"
	"github.com/jordanlanch/leadflow/pkg/effects"
	"github.com/jordanlanch/leadflow/pkg/email"
	"github.com/jordanlanch/leadflow/pkg/enrichment"
	"github.com/jordanlanch/leadflow/pkg/jobs"
	"github.com/jordanlanch/leadflow/pkg/leads"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	custommiddleware "github.com/jordanlanch/leadflow/pkg/middleware"
	"github.com/jordanlanch/leadflow/pkg/phone"
	"github.com/jordanlanch/leadflow/pkg/secrets"
	"github.com/jordanlanch/leadflow/pkg/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("configuration loaded", "environment", cfg.APIEnvironment)

	if cfg.APIKey == "" {
		log.Warn("API_KEY is empty, every /api request will be rejected")
	}

	// Sentry
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("failed to initialize sentry", "error", err)
		} else {
			log.Info("sentry initialized", "environment", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := database.NewClient(cfg.DatabasePath)
	if err != nil {
		log.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database ready", "path", cfg.DatabasePath)

	m := metrics.New()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Services
	stats := analytics.NewAggregator(db.DB, cfg.StatsPageSize, log, m)

	leadOpts := []leads.Option{leads.WithMetrics(m)}
	var redisClient *cache.Client
	if cfg.CacheEnabled() {
		redisClient, err = cache.NewClient(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable, lead lists are not cached", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			leadOpts = append(leadOpts, leads.WithCache(redisClient, cfg.CacheTTL))
		}
	}
	leadStore := leads.NewService(db.DB, stats, log, leadOpts...)
	if _, err := leadStore.ReindexSearch(context.Background()); err != nil {
		log.Warn("failed to rebuild lead search index", "error", err)
	}

	var queue effects.Queue
	var inline *effects.InlineQueue
	var rabbit *effects.RabbitMQQueue
	switch cfg.EffectsQueue {
	case "rabbitmq":
		rabbit, err = effects.NewRabbitMQQueue(cfg.RabbitMQURL, log)
		if err != nil {
			log.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbit.Close()
		queue = rabbit
	default:
		inline = effects.NewInlineQueue(log)
		queue = inline
	}

	credentialsKey := cfg.CredentialsKey
	if credentialsKey == "" {
		log.Warn("CREDENTIALS_KEY is empty, account credentials are sealed with the development key")
		credentialsKey = secrets.DevelopmentKey
	}
	sealer, err := secrets.NewSealer(credentialsKey)
	if err != nil {
		log.Error("invalid credentials key", "error", err)
		os.Exit(1)
	}

	router := email.NewDefaultRouter(email.Endpoints{SES: cfg.SESEndpoint}, log)
	campaigns := campaign.NewService(db.DB, leadStore, router, queue, campaign.Config{
		TrackingBaseURL: cfg.TrackingBaseURL,
		PacingInterval:  cfg.SendPacingInterval,
		BatchSize:       cfg.SendBatchSize,
		Credentials:     sealer,
	}, log, m)

	if inline != nil {
		inline.SetHandler(campaigns.HandleEffect)
	} else {
		go func() {
			if err := rabbit.Consume(ctx, campaigns.HandleEffect); err != nil && ctx.Err() == nil {
				log.Error("effects consumer stopped", "error", err)
			}
		}()
	}

	tracker := tracking.NewService(db.DB, queue, log, m)

	var enricher *enrichment.Service
	if cfg.EnrichmentEnabled() {
		enricher = enrichment.NewService(enrichment.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		}, leadStore, log)
		log.Info("AI enrichment enabled", "model", cfg.OpenAIModel)
	}

	scheduler := jobs.NewScheduler(jobs.Config{
		SendQueueSchedule:    cfg.SendQueueSchedule,
		StatsRebuildSchedule: cfg.StatsRebuildSchedule,
		BatchSize:            cfg.SendBatchSize,
	}, campaigns, stats, log)
	if err := scheduler.Setup(); err != nil {
		log.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	rateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	go rateLimiter.Cleanup(ctx)

	// Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic:         true,
			WaitForDelivery: false,
			Timeout:         2 * time.Second,
		}))
	}
	e.Use(m.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(rateLimiter.Middleware())

	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	var cachePing handlers.Pinger
	if redisClient != nil {
		cachePing = redisClient
	}
	handlers.Register(e, handlers.Routes{
		Health:    handlers.NewHealthHandler(db, cachePing),
		Tracking:  handlers.NewTrackingHandler(tracker, log),
		Leads:     handlers.NewLeadHandler(leadStore, enricher, phone.NewNormalizer(cfg.DefaultPhoneRegion), log),
		Stats:     handlers.NewStatsHandler(stats, log),
		Campaigns: handlers.NewCampaignHandler(campaigns, tracker, scheduler, log),
	}, custommiddleware.RequireAPIKey(cfg.APIKey))

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Info("leadflow API starting",
		"address", address,
		"effects_queue", cfg.EffectsQueue,
		"send_schedule", cfg.SendQueueSchedule,
		"rate_limit_rpm", cfg.RateLimitRequestsPerMinute,
	)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}
