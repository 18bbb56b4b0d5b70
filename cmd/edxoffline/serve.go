package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/openedx/edxoffline/internal/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the download queue with the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer shutdown(a)

			e := echo.New()
			api.RegisterRoutes(e, a)

			srv := &http.Server{
				Addr:              ":" + a.Config.Port,
				Handler:           e,
				ReadHeaderTimeout: 10 * time.Second,
				WriteTimeout:      0, // event streams stay open
				IdleTimeout:       60 * time.Second,
			}

			runErr := make(chan error, 1)
			go func() { runErr <- a.Run(ctx) }()

			serveErr := make(chan error, 1)
			go func() {
				a.Logger.Info("edxoffline listening on %s (out=%s, workers=%d)", srv.Addr, a.Config.Download.OutDir, a.Config.Download.Workers)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			select {
			case <-ctx.Done():
				a.Logger.Info("Shutdown signal received, draining...")
			case err := <-serveErr:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Logger.Warn("HTTP shutdown: %v", err)
			}
			return <-runErr
		},
	}
}
