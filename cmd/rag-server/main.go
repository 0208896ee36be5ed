// Package main provides the MCP server entry point for the labor-law RAG service.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/futurenest-rag/internal/app"
	"github.com/bull/futurenest-rag/internal/config"
	mcpserver "github.com/bull/futurenest-rag/internal/mcp"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $"+config.PathEnv+")")
	flag.Parse()

	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// stdout carries the MCP stream in stdio mode, so logs go to stderr.
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize service: %v", err)
	}
	defer a.Close()

	a.AutoIngest(ctx)

	server := mcpserver.NewServer(&mcpserver.Config{Service: a.Service})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(a.Service, a.Index.BackendName()))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, &mcpserver.HTTPHandlerOptions{Stateless: true}))
	mux.HandleFunc("/", mcpserver.NewLandingHandler(cfg.Server.Port))

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.Mode == "http" {
		go func() {
			<-ctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			httpServer.Shutdown(shutdownCtx)
		}()

		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	// Stdio mode: MCP over stdin/stdout, health endpoint in the background.
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting labor-law RAG MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		a.Close()
		os.Exit(1)
	}
	httpServer.Close()
}
