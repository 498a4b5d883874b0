package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/scrapline/auction-engine/internal/api"
	"github.com/scrapline/auction-engine/internal/auction"
	"github.com/scrapline/auction-engine/internal/clock"
	"github.com/scrapline/auction-engine/internal/config"
	"github.com/scrapline/auction-engine/internal/event"
	"github.com/scrapline/auction-engine/internal/health"
	"github.com/scrapline/auction-engine/internal/leader"
	"github.com/scrapline/auction-engine/internal/store"
	"github.com/scrapline/auction-engine/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/scrapline/auction-engine/internal/store/pgxstore"
	_ "github.com/scrapline/auction-engine/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open store using the configured driver (sqlx or pgx).
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Database.Driver))

	// The projector folds published events into the relational read model.
	bus := event.NewBus()
	projector := store.NewProjector(repos, clk, logger)
	projector.Subscribe(bus)

	engine := auction.NewEngine(repos.Events, bus, logger, tp.TracerProvider, clk, auction.Policy{
		DefaultIncrement: cfg.Auction.DefaultIncrement,
		DefaultExtension: cfg.Auction.DefaultExtension,
		AllowSelfOutbid:  cfg.Auction.AllowSelfOutbid,
	})

	// Setup health checks. The lifecycle check names the degraded aspect
	// when a replica is up but not the one driving auctions.
	var leading atomic.Bool
	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "database",
			Check: repos.Ping,
		},
		health.Checker{
			Name: "lifecycle",
			Check: func(context.Context) error {
				if !leading.Load() {
					return errors.New("not driving the auction lifecycle")
				}
				return nil
			},
		},
	)

	// The HTTP server runs on all replicas; readiness gates traffic to the
	// replica that holds the live auction state.
	apiHandler := api.NewHandler(engine, repos, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler())
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler())
	mux.Handle("/v1/", apiHandler.Router())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
		}
	}()

	// serve is the core work that only the leader should run.
	serve := func(ctx context.Context) {
		// Recover in-flight auctions from the event store so that they
		// survive restarts and leader failover.
		if n, recoverErr := engine.Recover(ctx); recoverErr != nil {
			logger.ErrorContext(ctx, "auction recovery failed", slog.Any("error", recoverErr))
			return
		} else if n > 0 {
			logger.InfoContext(ctx, "recovered open auctions", slog.Int("count", n))
		}

		leading.Store(true)
		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "auctiond is running", slog.String("version", version))

		ticker := time.NewTicker(cfg.Auction.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				leading.Store(false)
				healthHandler.SetReady(false)
				bus.Wait()
				return
			case <-ticker.C:
				if settled := engine.TickAll(ctx); settled > 0 {
					logger.InfoContext(ctx, "settled auctions", slog.Int("count", settled))
				}
			}
		}
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, serve, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		serve(ctx)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
