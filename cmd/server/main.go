package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/orbitalhq/geosync/internal/adapters/sqlite"
	"github.com/orbitalhq/geosync/internal/app/services"
	"github.com/orbitalhq/geosync/internal/config"
	"github.com/orbitalhq/geosync/internal/db"
	"github.com/orbitalhq/geosync/internal/events"
	"github.com/orbitalhq/geosync/internal/observability"
	"github.com/orbitalhq/geosync/internal/provider"
	"github.com/orbitalhq/geosync/internal/server"
	"github.com/orbitalhq/geosync/internal/server/routes"
	"github.com/orbitalhq/geosync/internal/tasks"
	"github.com/orbitalhq/geosync/internal/webhooks/dispatcher"
)

func Run() error {
	baseHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	log := slog.New(observability.WrapSlogHandler(baseHandler))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	shutdownTelemetry, err := observability.SetupOpenTelemetry(context.Background(), log, observability.OpenTelemetryConfig{
		Enabled:           cfg.Observability.Enabled,
		OTLPEndpoint:      cfg.Observability.OTLPEndpoint,
		OTLPTraceHeaders:  cfg.Observability.OTLPTraceHeaders,
		OTLPMetricHeaders: cfg.Observability.OTLPMetricHeaders,
		ServiceName:       cfg.Observability.ServiceName,
		ServiceVer:        cfg.Observability.ServiceVer,
		SamplingRatio:     cfg.Observability.SamplingRatio,
		MetricsConsole:    cfg.Observability.MetricsConsole,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Error("Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	if cfg.Database.LogTiming {
		go logDBLatencyStats(log, database)
	}

	store := sqlite.NewStore(database)
	hub := events.NewBroadcaster(log)
	pool := tasks.NewPool(cfg.Tasks.Workers, cfg.Tasks.QueueDepth, log)

	providerClient := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.ProviderTimeout())
	webhookDispatcher := dispatcher.New(store, store, &http.Client{Timeout: cfg.WebhookTimeout()}, dispatcher.Config{
		MaxRetries:    cfg.Webhooks.MaxRetries,
		BaseDelay:     cfg.WebhookBaseDelay(),
		Timeout:       cfg.WebhookTimeout(),
		SigningSecret: cfg.Webhooks.SigningSecret,
	}, log)

	orders := services.NewOrderLifecycle(store, providerClient, hub, pool, log)
	monitoring := services.NewMonitoringLifecycle(store, providerClient, hub, pool, webhookDispatcher, log)
	mux := events.NewMultiplexer(hub, cfg.EventsHeartbeat(), log)

	srv := server.New(log)
	srv.RegisterRouter(routes.NewSystemRoutes())
	srv.RegisterRouter(routes.NewOrderRoutes(orders))
	srv.RegisterRouter(routes.NewMonitoringRoutes(monitoring))
	srv.RegisterRouter(routes.NewDeliveryRoutes(store, webhookDispatcher))
	srv.RegisterRouter(routes.NewStreamRoutes(mux))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("Starting server", "port", cfg.Server.Port)
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shutdown server", "error", err)
	}
	if err := pool.Close(10 * time.Second); err != nil {
		slog.Error("Background tasks did not drain", "error", err)
	}
	return nil
}

func main() {
	if err := Run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func logDBLatencyStats(log *slog.Logger, database *db.Database) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := database.QueryLatencyStats()
		if len(stats) == 0 {
			continue
		}
		limit := 5
		if len(stats) < limit {
			limit = len(stats)
		}
		for index := 0; index < limit; index++ {
			entry := stats[index]
			log.Info("db_query_latency",
				"query", entry.Name,
				"count", entry.Count,
				"p50_ms", entry.P50.Milliseconds(),
				"p95_ms", entry.P95.Milliseconds(),
				"max_ms", entry.Max.Milliseconds(),
			)
		}
	}
}
