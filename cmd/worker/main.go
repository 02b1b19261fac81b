package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/config"
	"github.com/xunlong/api/internal/orchestrator"
	"github.com/xunlong/api/internal/queue"
	"github.com/xunlong/api/internal/store"
	"github.com/xunlong/api/internal/worker"
)

// Standalone worker process. Run it with worker.embedded=false on the API
// server; only one worker may consume a given queue directory.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := newLogger(cfg.Server.LogLevel)

	st, err := store.New(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to open project store: %v", err)
	}
	q, err := queue.New(filepath.Join(cfg.Storage.Root, cfg.Storage.TasksDir))
	if err != nil {
		log.Fatalf("Failed to open task queue: %v", err)
	}

	llmClient := client.NewLLMClient(&cfg.LLM)
	if !llmClient.IsConfigured() {
		appLogger.Info("LLM not configured, using mock generation")
	}
	searchClient := client.NewSearchClient(&cfg.Search)
	if !searchClient.IsConfigured() {
		appLogger.Info("search not configured, using mock results")
	}

	orch := orchestrator.New(st, llmClient, searchClient, cfg.Worker.Concurrency)
	w := worker.New(q, st, orch, time.Duration(cfg.Worker.PollInterval)*time.Second, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Worker error: %v", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
