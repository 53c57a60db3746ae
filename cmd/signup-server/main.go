// Command signup-server runs the registration engine behind its HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	goSignup "github.com/MrEthical07/goSignup"
	"github.com/MrEthical07/goSignup/httpapi"
	"github.com/MrEthical07/goSignup/metrics/export/prometheus"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loadServerConfig(), goSignup.ConfigFromEnv(), logger); err != nil {
		logger.Error("signup-server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, engineCfg goSignup.Config, logger *slog.Logger) error {
	rdb, closeRedis, err := openRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	accounts, closeAccounts, err := openAccounts(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAccounts()

	deliverer, err := buildDeliverer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	engineCfg.Audit.Enabled = engineCfg.Audit.Enabled || cfg.Audit
	builder := goSignup.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithMaterializer(accounts).
		WithDeliverer(deliverer).
		WithLogger(logger)
	if engineCfg.Audit.Enabled {
		builder = builder.WithAuditSink(goSignup.NewSlogSink(logger.With(slog.String("stream", "audit"))))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(engine, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
		TenantHeader:   cfg.TenantHeader,
		Metrics:        prometheus.NewExporter(engine).Handler(),
		Health: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.Addr),
			slog.String("materializer", cfg.Materializer),
			slog.String("deliverer", cfg.Deliverer),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = engine.Close(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	httpErr := srv.Shutdown(shutdownCtx)
	// Queued codes are still delivered unless the timeout runs out.
	engineErr := engine.Close(shutdownCtx)
	return errors.Join(httpErr, engineErr)
}
