package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openedx/edxoffline/internal/app"
	"github.com/openedx/edxoffline/internal/infra/config"
	"github.com/openedx/edxoffline/internal/infra/logger"
)

var (
	configPath string
	ephemeral  bool
)

func main() {
	root := &cobra.Command{
		Use:           "edxoffline",
		Short:         "Download course content for offline use",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	root.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep the ledger in memory for this run only")

	root.AddCommand(
		newServeCmd(),
		newDownloadCmd(),
		newStatusCmd(),
		newRemoveCmd(),
		newListCmd(),
	)

	// Cancelled on Ctrl+C so in-flight transfers stop cleanly
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads config, opens the log and wires the app.
func bootstrap(ctx context.Context) (*app.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if ephemeral {
		cfg.Store.Driver = "memory"
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", cfg.Log.Path, err)
	}

	a, err := app.NewContext(ctx, cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}
	return a, nil
}

func shutdown(a *app.Context) {
	if err := a.Close(); err != nil {
		a.Logger.Error("Close store: %v", err)
	}
	a.Logger.Close()
}
