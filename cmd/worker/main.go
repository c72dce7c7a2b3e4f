// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/stockbook/internal/app"
	"github.com/ammerola/stockbook/internal/pkg/config"
	"github.com/ammerola/stockbook/internal/pkg/logger"
	"github.com/ammerola/stockbook/internal/workers"
)

func main() {
	slogger := logger.SetupLogger("info", "json", "stdout")

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat, cfg.App.LogOutput)
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	ctx := context.Background()
	a, err := app.Bootstrap(ctx, cfg, slogger, app.Options{})
	if err != nil {
		slogger.Error("failed to bootstrap engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:              cfg.Asynq.Concurrency,
		Queues:                   cfg.Asynq.Queues,
		StrictPriority:           cfg.Asynq.StrictPriority,
		ErrorHandler:             asynq.ErrorHandlerFunc(handleError),
		RetryDelayFunc:           exponentialBackoff,
		ShutdownTimeout:          cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc:          healthCheck,
		HealthCheckInterval:      cfg.Asynq.HealthCheckInterval,
		DelayedTaskCheckInterval: cfg.Asynq.DelayedTaskCheckTime,
		Logger:                   newAsynqLogger(slogger),
	})

	mux := asynq.NewServeMux()
	workers.NewMaintenanceProcessor(a.Maintenance, cfg.Business.ArchiveRetentionDays, slogger).Register(mux)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   newAsynqLogger(slogger),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				slogger.Error("failed to enqueue scheduled task", slog.String("error", err.Error()))
				return
			}
			slogger.Info("scheduled task enqueued",
				slog.String("type", info.Type),
				slog.String("task_id", info.ID))
		},
	})
	entries, err := workers.RegisterSchedule(scheduler, workers.Schedule{
		Archive:       cfg.Business.ArchiveSchedule,
		Sweep:         cfg.Business.SweepSchedule,
		RetentionDays: cfg.Business.ArchiveRetentionDays,
	})
	if err != nil {
		slogger.Error("failed to register schedule", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(mux); err != nil {
		slogger.Error("failed to start worker server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slogger.Error("failed to start scheduler", slog.String("error", err.Error()))
		srv.Shutdown()
		os.Exit(1)
	}

	slogger.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues),
		slog.Int("scheduled", len(entries)))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdown
	slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

	scheduler.Shutdown()
	srv.Shutdown()
	slogger.Info("worker shutdown complete")
}

func handleError(ctx context.Context, task *asynq.Task, err error) {
	slog.ErrorContext(ctx, "task processing failed",
		slog.String("type", task.Type()),
		slog.String("payload", string(task.Payload())),
		slog.String("error", err.Error()))
}

func exponentialBackoff(n int, e error, t *asynq.Task) time.Duration {
	baseDelay := 30 * time.Second
	maxDelay := 30 * time.Minute
	delay := baseDelay * time.Duration(1<<uint(n))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay
}

func healthCheck(err error) {
	if err != nil {
		slog.Error("worker health check failed", slog.String("error", err.Error()))
	}
}

// asynqLogger adapts slog for Asynq
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
	}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
