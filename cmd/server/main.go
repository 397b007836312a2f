package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/signalcore-billing/internal/api"
	"github.com/Priya8975/signalcore-billing/internal/billing"
	"github.com/Priya8975/signalcore-billing/internal/config"
	"github.com/Priya8975/signalcore-billing/internal/engine"
	"github.com/Priya8975/signalcore-billing/internal/identity"
	"github.com/Priya8975/signalcore-billing/internal/notify"
	"github.com/Priya8975/signalcore-billing/internal/store"
	ws "github.com/Priya8975/signalcore-billing/internal/websocket"
)

// mailBreakerKey names the mail service in the circuit breaker.
const mailBreakerKey = "resend"

// dataStore is everything the server needs from a backing store.
type dataStore interface {
	api.DashboardStore
	billing.ContractorStore
	billing.ActivityLog
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is not set; webhook requests will fail with 500")
	}

	ctx := context.Background()

	// Initialize PostgreSQL, or an in-memory store for local runs
	var db dataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		logger.Info("connected to PostgreSQL")

		if err := pgStore.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
		db = pgStore
	} else {
		logger.Warn("DATABASE_URL is not set; using in-memory store")
		db = store.NewMemoryStore()
	}

	// Redis backs rate limiting, the mail circuit breaker and the event ledger
	var (
		limiter *engine.RateLimiter
		breaker *engine.CircuitBreaker
		ledger  *engine.EventLedger
	)
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		logger.Info("connected to Redis")

		limiter = engine.NewRateLimiter(redisStore.Client(), logger)
		breaker = engine.NewCircuitBreaker(redisStore.Client(), logger)
		ledger = engine.NewEventLedger(redisStore.Client(), cfg.EventLedgerTTL)
	}

	tiers := billing.DefaultTierTable()
	if cfg.TierTablePath != "" {
		tiers, err = billing.LoadTierTable(cfg.TierTablePath)
		if err != nil {
			logger.Error("failed to load tier table", "error", err, "path", cfg.TierTablePath)
			os.Exit(1)
		}
	}

	hub := ws.NewHub(logger)
	go hub.Run()

	opts := []billing.Option{billing.WithPublisher(hub)}
	if ledger != nil {
		opts = append(opts, billing.WithLedger(ledger))
	}

	if cfg.ProvisioningEnabled() {
		opts = append(opts, billing.WithProvisioner(
			identity.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, logger),
		))
	} else {
		logger.Warn("Supabase is not configured; new checkouts will not get a login")
	}

	if cfg.ResendAPIKey != "" {
		var sender notify.Sender = notify.NewResendClient(cfg.ResendURL, cfg.ResendAPIKey, logger)
		if breaker != nil {
			sender = notify.NewGuardedSender(sender, breaker, mailBreakerKey)
		}
		opts = append(opts, billing.WithNotifier(notify.NewWelcomeMailer(sender, notify.MailerConfig{
			From:         cfg.WelcomeFrom,
			PortalURL:    cfg.PortalURL,
			SupportEmail: cfg.SupportEmail,
		})))
	} else {
		logger.Warn("RESEND_API_KEY is not set; welcome emails are disabled")
	}

	reconciler := billing.NewReconciler(db, db, tiers, billing.ReconcilerConfig{
		StoreTimeout:   cfg.StoreTimeout,
		NotifyTimeout:  cfg.NotifyTimeout,
		PasswordLength: cfg.PasswordLength,
	}, logger, opts...)

	var webhookLimiter api.Limiter
	if limiter != nil {
		webhookLimiter = limiter
	}
	webhook := api.NewWebhookHandler(api.WebhookConfig{
		Secret:             cfg.WebhookSecret,
		SignatureTolerance: cfg.SignatureTolerance,
		RateLimit:          cfg.WebhookRateLimit,
	}, reconciler, webhookLimiter, logger)

	var circuit api.CircuitStater
	if breaker != nil {
		circuit = breaker
	}

	// Setup router
	router := api.NewRouter(api.RouterDeps{
		Store:     db,
		Webhook:   webhook,
		Hub:       hub,
		Dashboard: api.NewDashboardHandler(db, tiers, circuit, mailBreakerKey, hub.ClientCount),
		Tiers:     tiers,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port, "tiers", len(tiers.Tiers()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
