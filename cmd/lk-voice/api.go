package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chriscow/lk-voice/internal/config"
	"github.com/chriscow/lk-voice/internal/httpapi"
	"github.com/chriscow/lk-voice/internal/observability"
	"github.com/chriscow/lk-voice/pkg/session"
	"github.com/chriscow/lk-voice/pkg/version"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "HTTP API commands",
}

var apiServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session and token API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.BindAddr = addr
		}

		logger := setupLogger()
		logger.Info("Starting API server",
			slog.String("service", "lk-voice"),
			slog.String("version", version.Version),
			slog.String("addr", cfg.BindAddr),
			slog.String("store", cfg.StoreBackend))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runAPI(ctx, cfg, logger)
	},
}

func runAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := session.OpenStore(ctx, cfg.StoreConfig())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("Closing session store failed", slog.String("error", err.Error()))
		}
	}()

	svc, err := session.NewService(session.ServiceConfig{Store: store, Logger: logger})
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	api := httpapi.New(svc, cfg.Issuer(), metrics, logger)

	srv := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, cfg.ShutdownTimeout, logger)
}

// serve runs srv until ctx ends, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logger.Info("Shutting down HTTP server", slog.String("addr", srv.Addr))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func init() {
	apiServeCmd.Flags().String("addr", "", "Listen address (overrides APP_BIND_ADDR)")
	apiCmd.AddCommand(apiServeCmd)
}
