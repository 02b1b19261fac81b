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

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/config"
	"github.com/xunlong/api/internal/handler"
	"github.com/xunlong/api/internal/middleware"
	"github.com/xunlong/api/internal/orchestrator"
	"github.com/xunlong/api/internal/queue"
	"github.com/xunlong/api/internal/service"
	"github.com/xunlong/api/internal/store"
	ws "github.com/xunlong/api/internal/websocket"
	"github.com/xunlong/api/internal/worker"
	"github.com/xunlong/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := newLogger(cfg.Server.LogLevel)

	// Storage: project store plus the task queue directory
	st, err := store.New(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to open project store: %v", err)
	}
	q, err := queue.New(filepath.Join(cfg.Storage.Root, cfg.Storage.TasksDir))
	if err != nil {
		log.Fatalf("Failed to open task queue: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// External collaborators; unconfigured clients fall back to mocks
	llmClient := client.NewLLMClient(&cfg.LLM)
	if !llmClient.IsConfigured() {
		appLogger.Info("LLM not configured, using mock generation")
	}
	searchClient := client.NewSearchClient(&cfg.Search)
	if !searchClient.IsConfigured() {
		appLogger.Info("search not configured, using mock results")
	}

	// Initialize WebSocket hub
	hub := ws.NewHub(q, appLogger)
	go hub.Run()

	// Initialize services and handlers
	taskService := service.NewTaskService(q, st, appLogger)
	taskHandler := handler.NewTaskHandler(taskService, validate)

	rateLimiter := middleware.NewRateLimiter()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024, // 1MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"llm":    llmClient.IsConfigured(),
				"search": searchClient.IsConfigured(),
			},
			"worker": fiber.Map{
				"embedded": cfg.Worker.Embedded,
			},
		})
	})

	// API routes
	api := app.Group("/api/v1")

	tasks := api.Group("/tasks")
	tasks.Post("/report", rateLimiter.CreateLimit(cfg.RateLimit.CreatePerHour), taskHandler.CreateReport)
	tasks.Post("/fiction", rateLimiter.CreateLimit(cfg.RateLimit.CreatePerHour), taskHandler.CreateFiction)
	tasks.Post("/ppt", rateLimiter.CreateLimit(cfg.RateLimit.CreatePerHour), taskHandler.CreatePPT)
	tasks.Get("/", rateLimiter.QueryLimit(cfg.RateLimit.QueryPerMin), taskHandler.List)
	tasks.Get("/:id", taskHandler.Status)
	tasks.Get("/:id/result", taskHandler.Result)
	tasks.Get("/:id/download", taskHandler.Download)
	tasks.Delete("/:id", taskHandler.Cancel)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/tasks/:id", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("id"))
	}))

	// Embedded worker: single consumer of the queue in this process
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if cfg.Worker.Embedded {
		orch := orchestrator.New(st, llmClient, searchClient, cfg.Worker.Concurrency)
		w := worker.New(q, st, orch, time.Duration(cfg.Worker.PollInterval)*time.Second, appLogger)
		go func() {
			if err := w.Run(workerCtx); err != nil && err != context.Canceled {
				appLogger.Error("worker stopped", "error", err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		appLogger.Info("shutting down server")
		stopWorker()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			appLogger.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	appLogger.Info("server starting", "addr", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
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

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    response.CodeServiceError,
			"message": message,
		},
	})
}
