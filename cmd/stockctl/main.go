// cmd/stockctl is the operator CLI. It boots the same engine as the API,
// runs one operation and exits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ammerola/stockbook/internal/app"
	"github.com/ammerola/stockbook/internal/pkg/config"
	"github.com/ammerola/stockbook/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{open: openFromEnv}
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openFromEnv loads configuration the way the API does. Logs go to stderr
// so command output stays pipeable.
func openFromEnv(ctx context.Context, opts app.Options) (*app.App, error) {
	slogger := logger.SetupLogger("warn", "text", "stderr")

	cfg, err := config.Load(slogger)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if cfg.App.Debug {
		level = cfg.App.LogLevel
	}
	slogger = logger.SetupLogger(level, "text", "stderr")

	return app.Bootstrap(ctx, cfg, slogger, opts)
}
