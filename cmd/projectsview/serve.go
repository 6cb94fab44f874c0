package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/projectsview/internal/config"
	"github.com/wesm/projectsview/internal/server"
	"github.com/wesm/projectsview/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive over a read-only JSON API",
		Long: `Serve the archive over a read-only JSON API under /api/v1. The input
files are watched and the archive is reloaded when they change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
	config.RegisterServeFlags(cmd.Flags())
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	e, err := a.loadEngine()
	if err != nil {
		return err
	}

	port := server.FindAvailablePort(a.cfg.Host, a.cfg.Port)
	if port != a.cfg.Port {
		fmt.Fprintf(a.out, "Port %d in use, using %d\n", a.cfg.Port, port)
	}
	a.cfg.Port = port

	srv := server.New(a.cfg, e,
		server.WithLoader(a.loadEngine),
		server.WithLogger(a.logger),
		server.WithVersion(server.VersionInfo{
			Version:   version,
			Commit:    commit,
			BuildDate: buildDate,
		}),
	)

	stopWatcher := a.startReloadWatcher(srv)
	defer stopWatcher()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Fprintf(a.out, "projectsview %s listening at http://%s:%d\n",
		version, a.cfg.Host, a.cfg.Port)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-shutdownCtx.Done():
	}
	return nil
}

// startReloadWatcher reloads srv when an input file changes. A
// watcher failure only disables reloading.
func (a *app) startReloadWatcher(srv *server.Server) func() {
	w, err := watcher.New(watcherDebounce, func(_ []string) {
		_ = srv.Reload()
	})
	if err != nil {
		a.logger.Warn("file watcher unavailable", "error", err)
		return func() {}
	}
	w.SetLogger(a.logger)
	if err := w.WatchFiles(
		a.cfg.ProjectsFile, a.cfg.ConversationsFile,
	); err != nil {
		a.logger.Warn("file watcher unavailable", "error", err)
		w.Stop()
		return func() {}
	}
	w.Start()
	return w.Stop
}
