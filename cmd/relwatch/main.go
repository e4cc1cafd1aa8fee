// CLAUDE:SUMMARY Entry point for relwatch: one-shot release check by default, cron daemon with -schedule, -dry-run prints instead of posting.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hazyhaar/relwatch/watcher"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment (missing is fine)")
	logLevel := flag.String("log-level", "", "debug|info|warn|error (overrides log_level)")
	dryRun := flag.Bool("dry-run", false, "print the alert instead of posting it; never writes the cursor")
	daemon := flag.Bool("schedule", false, "keep running and check on schedule.cron")
	listen := flag.String("listen", "", "status server address in -schedule mode (overrides schedule.listen)")
	flag.Parse()

	if err := loadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "relwatch: %v\n", err)
		os.Exit(1)
	}

	cfg, err := watcher.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relwatch: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *listen != "" {
		cfg.Schedule.Listen = *listen
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var opts []watcher.Option
	if *dryRun {
		opts = append(opts, watcher.WithDryRun(os.Stdout))
	}

	runner, err := watcher.New(*cfg, logger, opts...)
	if err != nil {
		logger.Error("relwatch: init failed", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	if *daemon {
		if err := runner.Serve(ctx); err != nil {
			logger.Error("relwatch: daemon stopped", "error", err)
			runner.Close()
			os.Exit(1)
		}
		return
	}

	out, err := runner.RunOnce(ctx)
	if err != nil {
		logger.Error("relwatch: run failed", "error", err)
		runner.Close()
		os.Exit(1)
	}
	logger.Info("relwatch: run complete", "status", string(out.Status), "release_id", out.Entry.ID)
}

// loadEnv reads a dotenv file into the process environment without
// overriding variables that are already set.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
