package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/scheduler"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/session"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the pipeline in background daemon mode",
	Long:  `Runs harvest cycles on the configured schedule and exposes a health endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		deps, err := buildRuntime(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to build pipeline: %w", err)
		}
		defer deps.cleanup()

		sched, err := scheduler.New(deps.pipeline, cfg.Scheduler)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}

		srv, err := newHealthServer(cfg.Server, deps.cache, sched)
		if err != nil {
			return err
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		srvErr := make(chan error, 1)
		go func() {
			slog.Info("Fluffy daemon starting up...", "port", cfg.Server.Port, "schedule", cfg.Scheduler.Schedule)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-srvErr:
			stop()
			slog.Error("Health server failed", "error", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Health server shutdown failed", "error", err)
		}
		if err := sched.Stop(shutdownCtx); err != nil {
			slog.Warn("Scheduler shutdown failed", "error", err)
		}

		slog.Info("Fluffy daemon stopped gracefully")
		return nil
	},
}

func newHealthServer(cfg config.ServerConfig, cache *session.RedisCache, sched *scheduler.Scheduler) (*http.Server, error) {
	readTimeout, err := config.DurationOrDefault(cfg.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse server write timeout: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := cache.Ping(pingCtx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["cache"] = err.Error()
		}
		if !sched.IsRunning() {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["scheduler"] = "not running"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}, nil
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
