package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/ezr-ondrej/insights-host-inventory/pkg/database/postgres"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/httpserver"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/inventory"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/messaging/kafka"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/migration"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/mqtrace"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/tracing"
	"github.com/ezr-ondrej/insights-host-inventory/pkg/worker"
)

type serviceConfig struct {
	DatabaseDSN      string   `envconfig:"INVENTORY_DB_DSN" required:"true"`
	RunMigrations    bool     `envconfig:"INVENTORY_RUN_MIGRATIONS" default:"false"`
	MigrationsSource string   `envconfig:"INVENTORY_MIGRATIONS_SOURCE" default:"file://migrations"`
	KafkaBrokers     []string `envconfig:"INVENTORY_KAFKA_BROKERS" default:"localhost:9092"`
	IngressTopic     string   `envconfig:"INVENTORY_INGRESS_TOPIC" default:"platform.inventory.host-ingress"`
	EventsTopic      string   `envconfig:"INVENTORY_EVENTS_TOPIC" default:"platform.inventory.events"`
	ConsumerGroup    string   `envconfig:"INVENTORY_CONSUMER_GROUP" default:"inventory-mq"`
	BatchSize        int      `envconfig:"INVENTORY_COMMIT_BATCH_SIZE" default:"50"`
	FlushSchedule    string   `envconfig:"INVENTORY_FLUSH_SCHEDULE" default:"@every 5s"`
	HTTPPort         string   `envconfig:"INVENTORY_HTTP_PORT" default:"9000"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := tracing.NewStdoutLogger()

	var svcCfg serviceConfig
	if err := envconfig.Process("", &svcCfg); err != nil {
		logger.Error(ctx, err, "failed to load service configuration")
		os.Exit(1)
	}

	traceCfg, err := tracing.LoadConfig()
	if err != nil {
		logger.Error(ctx, err, "failed to load tracing configuration")
		os.Exit(1)
	}

	if traceCfg.LogEndpoint != "" {
		otlpLogger, shutdownLogs, err := tracing.NewLogger(ctx, traceCfg)
		if err != nil {
			logger.Error(ctx, err, "log export setup failed, continuing with stderr logging")
		} else {
			logger = otlpLogger
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = shutdownLogs(shutdownCtx)
			}()
		}
	}

	tracer, shutdownTracing, err := tracing.NewProvider(ctx, traceCfg, tracing.WithProviderLogger(logger))
	if err != nil {
		// A broken tracing setup must not take the service down.
		logger.Error(ctx, err, "tracing setup failed, continuing without tracing")
		tracer, shutdownTracing = tracing.NewNoOpTracer(), tracing.NopShutdown
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "tracing shutdown incomplete", tracing.Error(err))
		}
	}()

	if svcCfg.RunMigrations {
		if err := runMigrations(ctx, svcCfg, logger); err != nil {
			logger.Error(ctx, err, "database migration failed")
			os.Exit(1)
		}
	}

	dbCfg := postgres.DefaultConfig(svcCfg.DatabaseDSN, traceCfg.ServiceName)
	dbCfg.InstrumentQueries = traceCfg.Enabled && traceCfg.InstrumentDatabase
	dbManager, err := postgres.NewDBManager(ctx, dbCfg)
	if err != nil {
		logger.Error(ctx, err, "failed to connect to database")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := dbManager.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "database shutdown incomplete", tracing.Error(err))
		}
	}()

	kafkaTracer := tracer
	if !traceCfg.InstrumentKafka {
		kafkaTracer = tracing.NewNoOpTracer()
	}

	eventsCfg, err := kafka.NewConfig(
		kafka.WithBrokers(svcCfg.KafkaBrokers...),
		kafka.WithTopic(svcCfg.EventsTopic),
	)
	if err != nil {
		logger.Error(ctx, err, "invalid events topic configuration")
		os.Exit(1)
	}
	publisher, err := kafka.NewPublisher(eventsCfg, kafkaTracer)
	if err != nil {
		logger.Error(ctx, err, "failed to create events publisher")
		os.Exit(1)
	}
	defer publisher.Close()

	store := postgres.NewHostStore(dbManager.DB(), logger)
	processor := inventory.NewProcessor(store, publisher, tracer, logger,
		inventory.WithBatchSize(svcCfg.BatchSize))

	ingressCfg, err := kafka.NewConfig(
		kafka.WithBrokers(svcCfg.KafkaBrokers...),
		kafka.WithTopic(svcCfg.IngressTopic),
		kafka.WithGroupID(svcCfg.ConsumerGroup),
		kafka.WithStartOffset(-2),
	)
	if err != nil {
		logger.Error(ctx, err, "invalid ingress topic configuration")
		os.Exit(1)
	}
	consumer, err := kafka.NewConsumer(ingressCfg, logger)
	if err != nil {
		logger.Error(ctx, err, "failed to create ingress consumer")
		os.Exit(1)
	}
	defer consumer.Close()

	consumer.RegisterHandler(mqtrace.WrapHandler(mqtrace.Config{
		Tracer:    kafkaTracer,
		Logger:    logger,
		Operation: "process",
		Attrs: []tracing.ExtractionRule{
			inventory.MessageHostAttrs(),
			inventory.MessageIdentityAttrs(),
		},
	}, processor.HandleMessage))

	// Time-based flush so a quiet topic never strands staged rows.
	scheduler := worker.NewScheduler(logger)
	flushJob := worker.NewFuncJob("batch-flush", svcCfg.FlushSchedule, func(ctx context.Context) error {
		return processor.Flush(ctx)
	})
	if err := scheduler.RegisterJobs(flushJob); err != nil {
		logger.Error(ctx, err, "invalid flush schedule")
		os.Exit(1)
	}
	if err := scheduler.Start(ctx); err != nil {
		logger.Error(ctx, err, "failed to start flush scheduler")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := scheduler.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "scheduler shutdown incomplete", tracing.Error(err))
		}
	}()

	opsShutdown := startOpsServer(svcCfg, traceCfg, tracer, dbManager, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := opsShutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "http server shutdown incomplete", tracing.Error(err))
		}
	}()

	logger.Info(ctx, "inventory-mq started",
		tracing.String("ingress_topic", svcCfg.IngressTopic),
		tracing.String("events_topic", svcCfg.EventsTopic),
		tracing.String("http_port", svcCfg.HTTPPort))

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error(ctx, err, "consumer stopped")
	}

	// Drain staged rows before the deferred shutdowns run.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := processor.Flush(flushCtx); err != nil {
		logger.Error(flushCtx, err, "final flush failed")
	}
}

func runMigrations(ctx context.Context, cfg serviceConfig, logger tracing.Logger) error {
	migrator, err := migration.New(migration.Config{
		DSN:    cfg.DatabaseDSN,
		Source: cfg.MigrationsSource,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn(ctx, "failed to close migrator", tracing.Error(err))
		}
	}()
	return migrator.Up(ctx)
}

// startOpsServer serves the liveness and readiness probes.
func startOpsServer(svcCfg serviceConfig, traceCfg tracing.Config, tracer tracing.Tracer, dbManager *postgres.DBManager, logger tracing.Logger) httpserver.Shutdown {
	var middlewares []httpserver.Middleware
	middlewares = append(middlewares, httpserver.RequestID)
	if traceCfg.Enabled && traceCfg.InstrumentHTTP {
		middlewares = append(middlewares, httpserver.Tracing(tracer))
	}

	srv := httpserver.New(
		httpserver.WithPort(svcCfg.HTTPPort),
		httpserver.WithMiddlewares(middlewares...),
		httpserver.WithRoutes(
			httpserver.LivenessRoute(),
			httpserver.ReadinessRoute(map[string]httpserver.ReadinessCheck{
				"database": dbManager.Ping,
			}),
		),
	)

	shutdown := srv.Run()
	go func() {
		if err := <-srv.ShutdownListener(); err != nil {
			logger.Error(context.Background(), err, "http server stopped")
		}
	}()
	return shutdown
}
