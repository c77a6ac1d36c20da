package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/manutenzioni/internal/jobs"
	"github.com/dukerupert/manutenzioni/internal/server"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/google/subcommands"
)

type serveCmd struct {
	port string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP server" }
func (*serveCmd) Usage() string {
	return `manutenzioni serve [-port <port>]

  Serves the JSON API and the /ws change feed. Settings come from the
  MANUTENZIONI_* environment variables and an optional .env file.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "Port to listen on. Overrides MANUTENZIONI_PORT.")
}

func (c *serveCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	port := e.cfg.Port
	if c.port != "" {
		port = c.port
	}

	blobs := storage.New(e.cfg.S3, e.logger)
	if !blobs.Enabled() {
		slog.Warn("object storage not configured, image and avatar uploads are disabled")
	}

	srv, err := server.New(e.db, e.cfg, blobs, e.logger)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		return subcommands.ExitFailure
	}

	scheduler := jobs.NewScheduler(srv.SessionStore(), srv.RateLimiter(), e.logger.With("component", "jobs"))
	if err := scheduler.Start(e.cfg.CleanupSchedule); err != nil {
		slog.Error("failed to start cleanup", "error", err)
		return subcommands.ExitFailure
	}
	defer scheduler.Stop()
	if e.cfg.Backup.Schedule != "" {
		if !blobs.Enabled() {
			slog.Warn("backup schedule ignored, object storage not configured")
		} else if err := scheduler.ScheduleBackups(e.cfg.Backup.Schedule, srv.Backups(), e.cfg.Backup.Retention); err != nil {
			slog.Error("failed to schedule backups", "error", err)
			return subcommands.ExitFailure
		}
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("manutenzioni starting", "addr", ":"+port, "timezone", e.cfg.TimeZone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		slog.Error("server error", "error", err)
		return subcommands.ExitFailure
	}

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
