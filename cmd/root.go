// Package cmd implements the tracegraph CLI: cycle validation, hierarchy
// queries, coverage matrices, gap analysis, impact analysis, linking
// search, and link management against a local store.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlasreq/tracegraph/core/config"
	"github.com/atlasreq/tracegraph/core/engine"
	"github.com/atlasreq/tracegraph/core/search"
	"github.com/atlasreq/tracegraph/core/store"
)

var (
	cfgPath string
	orgID   string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tracegraph",
	Short: "Traceability graph engine",
	Long: `tracegraph manages typed, directed traceability links between
engineering artifacts: cycle-safe link creation, hierarchy queries,
coverage matrices, gap analysis, and change impact estimation.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&orgID, "org", "", "organization id (required)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withEngine opens the store and index, assembles the engine, runs fn, and
// tears everything down.
func withEngine(fn func(ctx context.Context, eng *engine.Engine) error) error {
	if orgID == "" {
		return fmt.Errorf("--org is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	st, err := store.Open(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	idx, err := search.NewIndex(cfg.Search, logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	eng, err := engine.New(engine.Options{
		Store:  st,
		Index:  idx,
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	return fn(context.Background(), eng)
}

// printJSON renders any response as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
