// Command main is the entry point for the Inkwell blog API server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/observability"
	"inkwell/internal/server"
)

// @title Inkwell API
// @version 1.0
// @description Blogging API with posts, threaded comments, likes, categories and tags.

// @contact.name API Support
// @contact.email support@inkwell.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitLogger(cfg.Env, os.Stdout)

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:        cfg.TracingEnabled,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.TracingEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error("server shutdown error", "error", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			middleware.Logger.Error("tracing shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
