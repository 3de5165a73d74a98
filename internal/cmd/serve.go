package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zaymazone/marketplace/internal/auth"
	"github.com/zaymazone/marketplace/internal/config"
	"github.com/zaymazone/marketplace/internal/memstore"
	"github.com/zaymazone/marketplace/internal/messaging"
	"github.com/zaymazone/marketplace/internal/orders"
	"github.com/zaymazone/marketplace/internal/products"
	"github.com/zaymazone/marketplace/internal/server"
	"github.com/zaymazone/marketplace/internal/telemetry"
	"github.com/zaymazone/marketplace/internal/users"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := telemetry.Service{Name: serviceName, Component: telemetry.ComponentAPI, Environment: cfg.Telemetry.Environment}
	if cfg.Telemetry.Enabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, svc, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.SampleRatio)
		if err != nil {
			return fmt.Errorf("init tracer provider: %w", err)
		}
		defer shutdown(logger, "tracer provider", shutdownTracer)
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(svc)
	if err != nil {
		return fmt.Errorf("init meter provider: %w", err)
	}
	defer shutdown(logger, "meter provider", shutdownMeter)

	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	deps := server.Deps{
		Tokens:         tokens,
		Logger:         logger,
		Metrics:        metricsHandler,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		db := memstore.New()
		deps.Products, deps.Users, deps.Orders, deps.Pinger = db.Products(), db.Users(), db.Orders(), db
		logger.Warn("using in-memory store, data will not survive a restart")
	default:
		db, err := telemetry.OpenDB(cfg.Store.URL, cfg.Store.MaxOpenConns)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		deps.Products = products.NewProductRepository(db)
		deps.Users = users.NewUserRepository(db)
		deps.Orders = orders.NewOrderRepository(db)
		deps.Pinger = db
	}

	if cfg.KafkaEnabled() {
		producer := messaging.NewProducer(cfg.Kafka.Brokers)
		defer func() { _ = producer.Close() }()
		deps.Publisher = producer
	}

	handler, err := server.NewRouter(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting zaymazone api", "port", cfg.Server.Port, "store", cfg.Store.Driver, "kafka", cfg.KafkaEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

func shutdown(logger *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("shutdown failed", "component", name, "error", err)
	}
}
