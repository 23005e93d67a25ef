package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/config"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/tracker"
	"github.com/spf13/cobra"
)

// #region commands
var (
	dbPath     string
	configPath string
	jsonOut    bool

	rootCmd = &cobra.Command{
		Use:           "inspect",
		Short:         "Inspect the city feedback ledger and weight states",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	citiesCmd = &cobra.Command{
		Use:   "cities [city]",
		Short: "Show weight state and approval statistics per city",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCities,
	}

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "List ledger events for a city or a case",
		RunE:  runEvents,
	}

	replayCmd = &cobra.Command{
		Use:   "replay",
		Short: "Rebuild city states from the ledger and diff them against stored state",
		RunE:  runReplay,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export ledger events and rebuilt states as a replay fixture",
		RunE:  runExport,
	}

	adjustCmd = &cobra.Command{
		Use:   "adjust",
		Short: "Ask a running controller to adjust a confidence score",
		RunE:  runAdjust,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to adaptive_feedback.db (defaults to the config value)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yml", "path to YAML config")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")

	eventsCmd.Flags().String("city", "", "filter by city")
	eventsCmd.Flags().String("case", "", "filter by case id")

	replayCmd.Flags().String("fixture", "", "replay a fixture file instead of the database")
	replayCmd.Flags().Bool("verbose", false, "print one line per event")

	exportCmd.Flags().String("city", "", "export a single city")
	exportCmd.Flags().String("out", "fixture.json", "output path")
	exportCmd.Flags().String("description", "exported from ledger", "fixture description")

	adjustCmd.Flags().String("addr", "localhost:50052", "controller gRPC address")
	adjustCmd.Flags().Float64("base", 0, "base confidence in [0, 1]")
	adjustCmd.Flags().String("city", "", "city name")
	adjustCmd.Flags().StringSlice("hint", nil, "applied rule identifiers")
	_ = adjustCmd.MarkFlagRequired("base")
	_ = adjustCmd.MarkFlagRequired("city")

	rootCmd.AddCommand(citiesCmd, eventsCmd, replayCmd, exportCmd, adjustCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
// #endregion commands

// #region helpers
// loadConfig reads the config file when present and falls back to defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func openStore(cfg *config.Config) (*state.Store, error) {
	path := dbPath
	if path == "" {
		path = cfg.Database.Path
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	return state.NewStore(path)
}

// openTracker opens the store read-side through a Tracker configured like the
// controller, so statistics match what the service reports.
func openTracker() (*tracker.Tracker, *state.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	t, err := tracker.New(store, tracker.Options{Update: cfg.Update, Policy: cfg.Policy})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return t, store, nil
}
// #endregion helpers
