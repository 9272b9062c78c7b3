// VeriChain - autonomous vendor negotiation server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Jayesh445/VeriChain-sub000/internal/api"
	"github.com/Jayesh445/VeriChain-sub000/internal/catalog"
	"github.com/Jayesh445/VeriChain-sub000/internal/collector"
	"github.com/Jayesh445/VeriChain-sub000/internal/config"
	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
	"github.com/Jayesh445/VeriChain-sub000/internal/events"
	"github.com/Jayesh445/VeriChain-sub000/internal/inventory"
	"github.com/Jayesh445/VeriChain-sub000/internal/metrics"
	"github.com/Jayesh445/VeriChain-sub000/internal/negotiation"
	"github.com/Jayesh445/VeriChain-sub000/internal/notify"
	"github.com/Jayesh445/VeriChain-sub000/internal/shared"
	"github.com/Jayesh445/VeriChain-sub000/internal/store"
	"github.com/Jayesh445/VeriChain-sub000/internal/vendorclient"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath, store.WithRetryPolicy(shared.RetryPolicy{
		MaxRetries: cfg.DB.MaxRetries,
		BaseDelay:  cfg.DB.RetryBaseDelay,
	}))
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	cat, err := catalog.LoadIfExists(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	if err := cat.Seed(context.Background(), repo); err != nil {
		slog.Error("Failed to seed catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("Catalog seeded", "path", cfg.CatalogPath, "vendors", len(cat.Vendors), "items", len(cat.Items))

	// Vendor transport.
	var remote *vendorclient.GrpcClient
	if cfg.RemoteVendors {
		remote = vendorclient.NewGrpcClient(vendorclient.DefaultGrpcClientConfig(), logger)
		defer remote.Close()
	}
	router := vendorclient.NewRouter(remote, &vendorclient.Simulated{Latency: cfg.VendorSimLatency})
	coll := collector.New(router,
		collector.WithCallTimeout(cfg.VendorCallTimeout),
		collector.WithLogger(logger))

	// Collaborators.
	hub := events.NewHub(logger)
	defer hub.CloseAll()
	dispatcher := notify.NewDispatcher(repo, hub, notify.Config{
		WebhookURL:  cfg.Notify.WebhookURL,
		MinSeverity: domain.Severity(cfg.Notify.MinSeverity),
	}, logger)
	inv := inventory.NewService(repo, logger)

	orch := negotiation.New(negotiation.Deps{
		Directory: repo,
		Items:     repo,
		Collector: coll,
		Committer: inv,
		Notifier:  dispatcher,
		Archiver:  repo,
	}, negotiation.Config{
		Budgets: map[domain.Urgency]time.Duration{
			domain.UrgencyHigh:   cfg.Budgets.High,
			domain.UrgencyMedium: cfg.Budgets.Medium,
			domain.UrgencyLow:    cfg.Budgets.Low,
		},
		CollectWindows: map[domain.Urgency]time.Duration{
			domain.UrgencyHigh:   cfg.CollectWindows.High,
			domain.UrgencyMedium: cfg.CollectWindows.Medium,
			domain.UrgencyLow:    cfg.CollectWindows.Low,
		},
		Retention:     cfg.SessionRetention,
		CommitTimeout: cfg.CommitTimeout,
	}, negotiation.WithLogger(logger))
	inv.AttachTrigger(orch)
	metrics.RegisterActiveSessions(orch.ActiveCount)

	// Setup router.
	r := api.NewRouter(api.RouterConfig{
		Handler:     api.NewHandler(orch, inv, repo, dispatcher, repo),
		Health:      api.NewHealthHandler(repo, orch.ActiveCount),
		Events:      events.NewWebSocketHandler(hub, cfg.FrontendURL, cfg.IsDevelopment()),
		CORSOrigins: cfg.CORSOrigins,
	})

	// Create server.
	// The event stream is long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start expiry sweeper.
	orch.StartSweeper(ctx, cfg.SweepInterval)
	slog.Info("Expiry sweeper started", "interval", cfg.SweepInterval, "retention", cfg.SessionRetention)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		slog.Error("Negotiation workflows did not stop in time", "error", err)
	}

	slog.Info("Server stopped successfully")
}
