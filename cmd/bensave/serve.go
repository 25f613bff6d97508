package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bensave/wallet/api"
)

var (
	flagPort      int
	flagStaticDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and serve the widget",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, runServe)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "HTTP server port (overrides config)")
	serveCmd.Flags().StringVar(&flagStaticDir, "static", "", "Directory with the widget's static files")
	rootCmd.AddCommand(serveCmd)
}

// runServe starts the server and shuts down gracefully on SIGINT/SIGTERM:
// stop accepting connections, drain requests (30s), then let pending
// transfers resolve before the database closes.
func runServe(ctx context.Context, a *app) error {
	port := a.cfg.Server.Port
	if flagPort != 0 {
		port = flagPort
	}
	staticDir := a.cfg.Server.StaticDir
	if flagStaticDir != "" {
		staticDir = flagStaticDir
	}

	handler := api.NewHandler(a.session, a.log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		StaticDir:      staticDir,
		Logger:         a.log,
	})

	scheduler := api.NewRolloverScheduler(a.session, a.log)
	scheduler.CheckInterval = a.cfg.Server.RolloverCheck.Duration
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("BenSave server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := a.session.Close(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("Pending transfers not applied")
	}
	a.log.Info("Server stopped")
	return nil
}
