package main

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"library-simulation/library"
)

// findOptions holds flags for the find command.
type findOptions struct {
	*rootOptions
	title  string
	author string
	year   int
	format string
}

func newFindCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &findOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Look up catalog records by title, author, or publication year",
		Long: `find queries the catalog store by exactly one field and prints the
matching records. Matches are exact, not fuzzy; no match prints an empty
result rather than an error.

Example:
  libsim find --author "Frank Herbert"
  libsim find --year 1965 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "exact title to look up")
	cmd.Flags().StringVar(&opts.author, "author", "", "exact author to look up")
	cmd.Flags().IntVar(&opts.year, "year", 0, "publication year to look up")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format (text|json)")

	return cmd
}

func runFind(cmd *cobra.Command, opts *findOptions) error {
	set := 0
	for _, name := range []string{"title", "author", "year"} {
		if cmd.Flags().Changed(name) {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of --title, --author, --year must be set")
	}
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", opts.format)
	}

	store, err := library.Open(opts.storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	var records []library.BookRecord
	switch {
	case cmd.Flags().Changed("title"):
		records, err = store.FindByTitle(opts.title)
	case cmd.Flags().Changed("author"):
		records, err = store.FindByAuthor(opts.author)
	default:
		records, err = store.FindByYear(opts.year)
	}
	if err != nil {
		return fmt.Errorf("query store: %w", err)
	}

	if opts.format == "json" {
		data, err := jsoniter.ConfigFastest.Marshal(records)
		if err != nil {
			return fmt.Errorf("encode records: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching records.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-40s %-25s %-6s %s\n", "Title", "Author", "Year", "Copies")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, r := range records {
		fmt.Fprintf(out, "%-40s %-25s %-6d %d\n",
			truncateString(r.Title, 40),
			truncateString(r.Author, 25),
			r.PublicationYear,
			r.AvailableCopies)
	}
	return nil
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:maxLength-3] + "..."
}
