package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clinigraph/internal/engine"
	"clinigraph/internal/handler"
	"clinigraph/internal/hub"
	"clinigraph/internal/metrics"
	"clinigraph/internal/repository/sqlite"
	"clinigraph/internal/service"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, SSE change stream and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if dbPath != "" {
				a.cfg.Database.Path = dbPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	logger := a.logger
	logger.Info("starting clinigraph server", zap.String("config", a.cfg.Summary()))

	repo, err := sqlite.New(a.cfg.Database.Path)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.Info("database opened", zap.String("path", a.cfg.Database.Path))

	collector := metrics.NewCollector("clinigraph")
	manager := engine.NewManager(a.engineOptions(collector))
	defer manager.CleanupAll()

	svc := service.NewSessionService(manager, repo, collector, logger)

	// SSE hub fed by every engine change
	sseHub := hub.New(logger, a.cfg.Server.Keepalive.Duration())
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go sseHub.Run(hubCtx)

	changes, unsubscribe := manager.Subscribe(256)
	defer unsubscribe()
	go sseHub.Forward(hubCtx, changes)

	h := handler.New(svc, logger)
	server := &http.Server{
		Addr: a.cfg.Server.Addr,
		Handler: h.Routes(handler.RouterOptions{
			Events:     sseHub,
			Metrics:    collector.Handler(),
			Middleware: []func(http.Handler) http.Handler{collector.Middleware},
		}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", a.cfg.Server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	// SSE streams never finish on their own
	hubCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
