package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bensave/wallet/internal/config"
	"github.com/bensave/wallet/internal/logging"
	"github.com/bensave/wallet/rates"
	"github.com/bensave/wallet/session"
	"github.com/bensave/wallet/store/sqlite"
)

var (
	flagConfig   string
	flagDBPath   string
	flagLogLevel string
	flagYes      bool
)

var rootCmd = &cobra.Command{
	Use:           "bensave",
	Short:         "Weekly budget and savings wallet",
	Long:          "Track a weekly budget, log expenses, save towards a goal and move money with mobile money.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		renderError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default "+config.ConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path, \":memory:\" for a throwaway wallet")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "Answer yes to confirmation prompts")
}

// app bundles what every command needs.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	store   *sqlite.Store
	session *session.Session
}

// openApp is the shared startup path used by all commands.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDBPath != "" {
		cfg.Storage.DBPath = flagDBPath
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	if cfg.Storage.DBPath != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := sqlite.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ratesCfg, err := cfg.RatesSourceConfig()
	if err != nil {
		store.Close()
		return nil, err
	}

	sess, err := session.Open(ctx, session.Options{
		Blobs:     store,
		Activity:  store,
		Rates:     rates.NewSource(ratesCfg, nil, log),
		Simulator: cfg.Simulator(),
		Logger:    log,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, store: store, session: sess}, nil
}

// Close waits for pending transfers and closes the database.
func (a *app) Close(ctx context.Context) {
	if err := a.session.Close(ctx); err != nil {
		a.log.WithError(err).Warn("Pending transfers not applied")
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close database")
	}
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	return fn(ctx, a)
}
