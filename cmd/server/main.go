// Command main is the entry point for the Inkwell blog API.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inkwell/internal/bootstrap"
	"inkwell/internal/config"
	"inkwell/internal/mail"
	"inkwell/internal/middleware"
	"inkwell/internal/oauth"
	"inkwell/internal/observability"
	"inkwell/internal/search"
	"inkwell/internal/server"
)

// @title Inkwell API
// @version 1.0
// @description Blogging backend with posts, threaded comments, moderation and email/Google sign-in
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@inkwell.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
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

	middleware.SetLogger(middleware.NewLogger(cfg.Env, os.Getenv("LOG_LEVEL")))
	observability.UseLogger(middleware.Logger)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "inkwell-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SeedAdmin: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	opts := server.Options{
		Mailer: mail.NewMailer(cfg),
		Google: oauth.NewGoogle(cfg),
	}
	if cfg.ElasticAddr != "" {
		client, err := search.NewClient(search.Options{
			Addresses: strings.Split(cfg.ElasticAddr, ","),
			Username:  cfg.ElasticUsername,
			Password:  cfg.ElasticPassword,
			Index:     cfg.ElasticIndex,
		})
		if err == nil {
			err = client.EnsureIndex(ctx)
		}
		if err != nil {
			middleware.Logger.Warn("Search disabled", slog.String("error", err.Error()))
		} else {
			opts.Search = client
		}
	}

	srv, err := server.NewServer(cfg, db, rdb, opts)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	app := srv.App()

	errCh := make(chan error, 1)
	go func() {
		middleware.Logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("env", cfg.Env))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		middleware.Logger.Info("Shutting down server", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			middleware.Logger.Error("Server stopped", slog.String("error", err.Error()))
		}
	}

	timeout := time.Duration(cfg.GracefulShutdownTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err = errors.Join(srv.Shutdown(shutdownCtx), shutdownTracing(shutdownCtx))
	if err != nil {
		middleware.Logger.Error("Shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
