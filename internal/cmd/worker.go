package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zaymazone/marketplace/internal/config"
	"github.com/zaymazone/marketplace/internal/domain"
	"github.com/zaymazone/marketplace/internal/messaging"
	"github.com/zaymazone/marketplace/internal/telemetry"
	"github.com/zaymazone/marketplace/internal/users"
	"github.com/zaymazone/marketplace/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume order events and maintain seller sales counters",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.KafkaEnabled() {
		return errors.New("kafka.brokers (or ZAYMAZONE_KAFKA_BROKERS) is required")
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return fmt.Errorf("the worker needs the postgres driver, got %q", cfg.Store.Driver)
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}
	if err := cfg.ValidateTelemetry(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		svc := telemetry.Service{Name: serviceName, Component: telemetry.ComponentSalesWorker, Environment: cfg.Telemetry.Environment}
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, svc, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.SampleRatio)
		if err != nil {
			return fmt.Errorf("init tracer provider: %w", err)
		}
		defer shutdown(logger, "tracer provider", shutdownTracer)
	}

	db, err := telemetry.OpenDB(cfg.Store.URL, cfg.Store.MaxOpenConns)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	topics := []string{domain.TopicOrderPlaced, domain.TopicOrderStatusChanged}
	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, topics,
		messaging.WithRetry(3, time.Second),
		messaging.WithLogger(logger),
	)
	defer func() { _ = consumer.Close() }()

	handler := worker.NewSalesHandler(users.NewUserRepository(db), logger)

	logger.Info("starting sales worker", "brokers", cfg.Kafka.Brokers, "group", cfg.Kafka.GroupID)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if ctx.Err() != nil {
			logger.Info("consumer stopped")
			return nil
		}
		return fmt.Errorf("consumer error: %w", err)
	}
	return nil
}
