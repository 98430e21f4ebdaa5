package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kestrelhq/jobworker/internal/applog"
	"github.com/kestrelhq/jobworker/internal/config"
	"github.com/kestrelhq/jobworker/internal/events"
	"github.com/kestrelhq/jobworker/internal/executor"
	"github.com/kestrelhq/jobworker/internal/handlers/echo"
	"github.com/kestrelhq/jobworker/internal/registry"
	"github.com/kestrelhq/jobworker/internal/store"
	"github.com/kestrelhq/jobworker/internal/supervisor"
	"github.com/kestrelhq/jobworker/shared/postgresql"
	"github.com/kestrelhq/jobworker/shared/rabbitmq"
)

// Exit codes per spec §6/§7: 0 clean, 1 unexpected crash, 2 config error.
const (
	exitOK         = 0
	exitCrash      = 1
	exitConfigFail = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables or flags")
	}

	once := flag.Bool("once", false, "claim and run a single batch, then exit")
	interval := flag.Int("interval", 0, "override the poll interval in seconds")
	configPath := flag.String("config", defaultConfigPath(), "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return exitConfigFail
	}

	config.ApplyEnvOverlay(cfg)
	if *interval > 0 {
		cfg.Worker.PollInterval = time.Duration(*interval) * time.Second
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		log.Printf("invalid config: %v", err)
		return exitConfigFail
	}

	appLogger, err := applog.New(&applog.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableSource,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		log.Printf("failed to initialize logger: %v", err)
		return exitConfigFail
	}

	if err := mainWithLogger(cfg, appLogger, *once); err != nil {
		appLogger.Error("worker exited with error", slog.Any("error", err))
		return exitCrash
	}
	return exitOK
}

func mainWithLogger(cfg *config.Config, appLogger *applog.Logger, once bool) error {
	appLogger.Info("starting worker",
		slog.String("worker_id", cfg.Worker.ID),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, appLogger.Logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.RabbitMQ.Host,
		Port:               cfg.RabbitMQ.Port,
		User:               cfg.RabbitMQ.User,
		Password:           cfg.RabbitMQ.Password,
		VHost:              cfg.RabbitMQ.VHost,
		ExchangeName:       cfg.RabbitMQ.Exchange.Name,
		ExchangeType:       cfg.RabbitMQ.Exchange.Type,
		ExchangeDurable:    cfg.RabbitMQ.Exchange.Durable,
		ExchangeAutoDelete: cfg.RabbitMQ.Exchange.AutoDelete,
		QueueName:          cfg.RabbitMQ.Queue.Name,
		QueueDurable:       cfg.RabbitMQ.Queue.Durable,
		QueueAutoDelete:    cfg.RabbitMQ.Queue.AutoDelete,
		QueueExclusive:     cfg.RabbitMQ.Queue.Exclusive,
		RoutingKey:         cfg.RabbitMQ.RoutingKey,
		RetryAttempts:      cfg.RabbitMQ.Connection.RetryAttempts,
		RetryInterval:      cfg.RabbitMQ.Connection.RetryInterval,
		Heartbeat:          cfg.RabbitMQ.Connection.Heartbeat,
		ConnectionTimeout:  cfg.RabbitMQ.Connection.ConnectionTimeout,
		PublishRetries:     cfg.RabbitMQ.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.RabbitMQ.Publish.RetryInterval,
		PublishBackoffMult: cfg.RabbitMQ.Publish.BackoffMultiplier,
	}, appLogger.Logger.Logger)
	var publisher events.Publisher
	if err != nil {
		appLogger.Warn("rabbitmq unavailable, terminal events will not be published", slog.Any("error", err))
		publisher = events.NoopPublisher{}
	} else {
		defer rabbitClient.Close()
		publisher = events.NewRabbitPublisher(rabbitClient, appLogger)
	}

	st := store.NewPostgresStore(dbClient, appLogger)

	reg := registry.New()
	if err := reg.Register(echo.Registration()); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	reg.Seal()

	exec := executor.New(executor.Dependencies{
		Store:             st,
		Registry:          reg,
		Logger:            appLogger,
		WorkerID:          cfg.Worker.ID,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		DefaultTimeout:    cfg.Worker.JobTimeout,
		Events:            publisher,
	})

	sup := supervisor.New(supervisor.Config{
		WorkerID:      cfg.Worker.ID,
		PollInterval:  cfg.Worker.PollInterval,
		ClaimLimit:    cfg.Worker.ClaimLimit,
		MaxConcurrent: cfg.Worker.MaxConcurrent,
		ShutdownGrace: cfg.Worker.ShutdownGrace,
	}, st, exec, appLogger)

	if once {
		return sup.RunOnce(context.Background())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- sup.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("received signal, shutting down gracefully", slog.String("signal", sig.String()))
		cancel()
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("WORKER_CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/worker/config.yaml"
}
