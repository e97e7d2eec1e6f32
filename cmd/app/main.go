// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-callbacks/internal/config"
	"payment-callbacks/internal/domain/ports/adapter"
	payAdapters "payment-callbacks/internal/infra/adapters/payment"
	"payment-callbacks/internal/infra/api"
	pg "payment-callbacks/internal/infra/db/postgres"
	"payment-callbacks/internal/infra/logging"
	"payment-callbacks/internal/infra/metrics"
	red "payment-callbacks/internal/infra/redis"
	"payment-callbacks/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Str("dsn", logging.Redact(cfg.Database.URL, cfg.Runtime.Dev)).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	txManager := pg.NewTxManager(pool)
	payRepo := pg.NewPaymentRepo(pool)
	deliveryRepo := pg.NewCallbackDeliveryRepo(pool)

	// ---- Redis (event idempotency) ----
	var claims adapter.EventClaimer = red.NoopClaims{}
	if cfg.Redis.Enabled {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		claims = red.NewEventClaims(redisClient)
	} else {
		logger.Warn().Msg("redis disabled: duplicate stripe events are not detected")
	}

	// ---- Providers ----
	registry, err := payAdapters.NewRegistry(cfg.Providers, payAdapters.DefaultFactories(), payAdapters.Deps{
		Payments:   payRepo,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("providers")
	}
	logger.Info().Strs("variants", registry.Variants()).Msg("payment providers ready")

	// ---- Use cases ----
	callbackUC := usecase.NewCallbackUseCase(registry, payRepo, txManager, claims, cfg.Redis.ClaimTTL, logger)

	// ---- HTTP ----
	srv := api.NewServer(callbackUC, logger, api.Options{
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		HandlerTimeout: cfg.Server.HandlerTimeout,
		Deliveries:     deliveryRepo,
		Health:         pool,
	})
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("callback server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
		os.Exit(1)
	}
}
