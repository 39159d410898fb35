// Command server runs the statement extraction HTTP API and, when an inbox
// directory is configured, the scheduled inbox sweep.
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

	"github.com/FACorreiaa/statement-extractor/pkg/config"
	"github.com/FACorreiaa/statement-extractor/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := InitDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	if deps.Scheduler != nil {
		if err := deps.Scheduler.Start(); err != nil {
			return err
		}
		defer func() { <-deps.Scheduler.Stop().Done() }()
		deps.Scheduler.RunNow()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           deps.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
