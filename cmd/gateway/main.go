package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/flightdeck/extractor-gateway/internal/config"
	"github.com/flightdeck/extractor-gateway/internal/handlers"
	"github.com/flightdeck/extractor-gateway/internal/identity"
	"github.com/flightdeck/extractor-gateway/internal/proxy"
	"github.com/flightdeck/extractor-gateway/internal/ratelimit"
	"github.com/flightdeck/extractor-gateway/internal/server"
	"github.com/flightdeck/extractor-gateway/internal/telemetry"
	"github.com/flightdeck/extractor-gateway/internal/upload"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("XGW_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.Init("extractor-gateway", cfg.Telemetry.Enabled, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	var verifier identity.Verifier
	if cfg.Identity.JWKSURL != "" {
		verifier, err = identity.NewJWKSVerifier(context.Background(),
			cfg.Identity.JWKSURL, cfg.Identity.Issuer, cfg.Identity.Audience)
		if err != nil {
			log.Fatalf("Failed to initialize identity verifier: %v", err)
		}
	} else {
		logger.Warn("no identity provider configured; authenticated routes will reject all requests")
		verifier = identity.StaticVerifier{}
	}

	limiter := ratelimit.New(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassUpload:  {Window: cfg.RateLimit.Upload.Window, Max: cfg.RateLimit.Upload.Max},
		ratelimit.ClassResults: {Window: cfg.RateLimit.Results.Window, Max: cfg.RateLimit.Results.Max},
		ratelimit.ClassAuth:    {Window: cfg.RateLimit.Auth.Window, Max: cfg.RateLimit.Auth.Max},
		ratelimit.ClassDefault: {Window: cfg.RateLimit.Default.Window, Max: cfg.RateLimit.Default.Max},
	})

	validator := upload.NewValidator(cfg.Upload.MaxSize)
	forwarder := proxy.New(cfg.Upstream.BaseURL)
	h := handlers.New(logger, cfg, validator, forwarder, verifier)

	// The server-level timeout must outlast the longest upstream call.
	srv := server.New(cfg.Server.Port, cfg.Upstream.UploadTimeout+15*time.Second, logger)
	mountRoutes(srv.Router, h, limiter, verifier, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("gateway shutdown complete")
}
