package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"library-simulation/library"
	"library-simulation/simulation"
)

const defaultStoreFile = "library.db"

// rootOptions holds the flags shared by every command plus the simulation
// tunables consumed when the root command itself runs.
type rootOptions struct {
	storePath string
	logLevel  string

	dayStart          string
	dayEnd            string
	borrowProbability float64
	returnProbability float64
	tick              time.Duration
	dayPause          time.Duration
	maxDays           int
	seed              int64
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "libsim",
		Short: "Simulate day after day of library circulation",
		Long: `libsim loads a book catalog from a SQLite store and replays simulated
library days against it: each minute of the service day, due copies may come
back and one borrow attempt may fire. Events stream to stdout, one line per
borrow or return, and every day closes with a summary block.

The run continues day after day until interrupted (Ctrl-C) or until
--max-days days have completed. A --seed makes a whole run reproducible.

Example:
  libsim seed --file catalog.yml
  libsim --max-days 7 --tick 0 --day-pause 0 --seed 42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.storePath, "store", defaultStoreFile, "path to the SQLite catalog store")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.Flags().StringVar(&opts.dayStart, "day-start", simulation.FormatClock(simulation.DefaultDayStart), "opening time of the simulated day (HH:MM)")
	cmd.Flags().StringVar(&opts.dayEnd, "day-end", simulation.FormatClock(simulation.DefaultDayEnd), "closing time of the simulated day (HH:MM)")
	cmd.Flags().Float64Var(&opts.borrowProbability, "borrow-probability", simulation.DefaultBorrowProbability, "per-minute chance of a borrow attempt")
	cmd.Flags().Float64Var(&opts.returnProbability, "return-probability", simulation.DefaultReturnProbability, "chance a due copy actually comes back")
	cmd.Flags().DurationVar(&opts.tick, "tick", simulation.DefaultTickInterval, "real time per simulated minute (0 runs full speed)")
	cmd.Flags().DurationVar(&opts.dayPause, "day-pause", simulation.DefaultDayPause, "real-time pause between simulated days")
	cmd.Flags().IntVar(&opts.maxDays, "max-days", 0, "stop after this many days (0 runs until interrupted)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed (0 derives one from the clock)")

	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newFindCommand(opts))

	return cmd
}

func runSimulation(cmd *cobra.Command, opts *rootOptions) error {
	log, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync failure is not actionable

	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	seed := opts.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // Weak random OK for simulation
	dice := simulation.NewChance(cfg.BorrowProbability, cfg.ReturnProbability, rng)

	// A store that cannot be opened or read is reported, not fatal: the run
	// proceeds with an empty catalog and every persistence attempt fails.
	// copyStore stays a nil interface in that case so the simulator's
	// missing-store guard sees it as absent.
	var records []library.BookRecord
	var copyStore simulation.CopyStore
	store, err := library.Open(cfg.StorePath)
	if err != nil {
		log.Error("catalog store unavailable, continuing with an empty catalog",
			zap.String("path", cfg.StorePath),
			zap.Error(err),
		)
	} else {
		defer store.Close()
		copyStore = store
		if records, err = store.Load(); err != nil {
			log.Error("catalog unreadable, continuing with an empty catalog",
				zap.String("path", cfg.StorePath),
				zap.Error(err),
			)
			records = nil
		}
	}

	inv := library.NewInventory(records)
	if inv.Len() == 0 {
		log.Warn("catalog has no copies, days will pass without borrows",
			zap.String("hint", "run 'libsim seed' to load a catalog"),
		)
	}
	log.Info("catalog loaded",
		zap.Int("titles", len(records)),
		zap.Int("copies", inv.Len()),
		zap.Int64("seed", seed),
	)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	sim := simulation.New(copyStore, inv, dice, cfg, log, cmd.OutOrStdout())
	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("simulation: %w", err)
	}

	log.Info("simulation stopped")
	return nil
}

// buildConfig turns flag values into a validated simulation config.
func buildConfig(opts *rootOptions) (simulation.Config, error) {
	dayStart, err := simulation.ParseClock(opts.dayStart)
	if err != nil {
		return simulation.Config{}, fmt.Errorf("--day-start: %w", err)
	}
	dayEnd, err := simulation.ParseClock(opts.dayEnd)
	if err != nil {
		return simulation.Config{}, fmt.Errorf("--day-end: %w", err)
	}

	cfg := simulation.Config{
		StorePath:         opts.storePath,
		DayStart:          dayStart,
		DayEnd:            dayEnd,
		BorrowProbability: opts.borrowProbability,
		ReturnProbability: opts.returnProbability,
		TickInterval:      opts.tick,
		DayPause:          opts.dayPause,
		MaxDays:           opts.maxDays,
	}
	if err := cfg.Validate(); err != nil {
		return simulation.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the structured logger. Diagnostics go to stderr so event
// lines on stdout stay clean.
func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	var zl zapcore.Level
	switch level {
	case "debug":
		zl = zapcore.DebugLevel
	case "info":
		zl = zapcore.InfoLevel
	case "warn":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	config.Level = zap.NewAtomicLevelAt(zl)

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	config.InitialFields = map[string]interface{}{
		"service": "libsim",
	}

	return config.Build()
}
