package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"library-simulation/library"
)

// seedOptions holds flags for the seed command.
type seedOptions struct {
	*rootOptions
	file string
}

func newSeedCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &seedOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML catalog into the store, replacing its contents",
		Long: `seed reads a YAML catalog file and rewrites the store with it in one
transaction. Whatever the store held before is gone afterwards, so reseeding
always starts the next run from a known catalog.

Example:
  libsim seed --file catalog.yml --store library.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "catalog.yml", "YAML catalog file to load")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *seedOptions) error {
	records, err := library.ReadCatalogFile(opts.file)
	if err != nil {
		return err
	}

	store, err := library.Open(opts.storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ReplaceAll(records); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	copies := 0
	for _, r := range records {
		copies += r.AvailableCopies
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d titles (%d copies) into %s\n", len(records), copies, opts.storePath)
	return nil
}
