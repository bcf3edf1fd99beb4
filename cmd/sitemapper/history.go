package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/history"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/report"
	"github.com/spf13/cobra"
)

// errNotEnoughRuns is returned when a comparison needs more stored runs.
var errNotEnoughRuns = errors.New("at least two runs are needed for a comparison")

// NewHistoryCmd creates the history command.
// It reads the runs recorded by "sitemapper crawl".
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [root-url]",
		Short: "Show stored runs and compare discovered URLs",
		Long: `History shows the runs recorded by 'sitemapper crawl' and compares the
URL sets of two runs of the same root:
- URLs discovered by the newer run only (added)
- URLs that the newer run no longer found (removed)
- the number of URLs found by both

By default the two latest runs are compared.

Examples:
  # Compare the latest two runs of a site
  sitemapper history https://example.com/

  # List all runs of a site
  sitemapper history --list https://example.com/

  # Compare the latest run with a specific run by ID
  sitemapper history --with-run-id 5 https://example.com/

  # Output the comparison as JSON
  sitemapper history --json https://example.com/

  # List every root URL in the database
  sitemapper history --list-roots`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false,
		"List the runs of the specified root URL")
	cmd.Flags().BoolP("list-roots", "L", false,
		"List all root URLs in the database")
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare the latest run with the run of this ID (see --list)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the comparison in Markdown format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listRoots, err := cmd.Flags().GetBool("list-roots")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var root string
	if !listRoots {
		if len(args) == 0 {
			return errors.New("root URL is required (use --list-roots to see stored roots)")
		}
		root = args[0]
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown are mutually exclusive")
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := history.Open(dbDir, history.Options{EnableWAL: true})
	if err != nil {
		if errors.Is(err, history.ErrDatabaseNotFound) {
			return fmt.Errorf("%w (run 'sitemapper crawl' first)", err)
		}
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if listRoots {
		return listStoredRoots(ctx, out, db)
	}

	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if list {
		return listStoredRuns(ctx, out, db, root)
	}

	withRunID, err := cmd.Flags().GetInt64("with-run-id")
	if err != nil {
		return err
	}

	format := config.ReportText
	switch {
	case jsonOutput:
		format = config.ReportJSON
	case markdownOutput:
		format = config.ReportMarkdown
	}
	return compareRuns(ctx, out, db, root, withRunID, format)
}

// listStoredRoots prints every root URL with stored runs.
func listStoredRoots(ctx context.Context, out io.Writer, db *history.DB) error {
	roots, err := db.ListRoots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roots: %w", err)
	}

	if len(roots) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'sitemapper crawl <root-url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled roots (%d):\n\n", len(roots))
	for _, root := range roots {
		fmt.Fprintf(out, "  • %s\n", root)
	}
	fmt.Fprintln(out, "\nUse 'sitemapper history --list <root-url>' to see the runs of a root.")
	return nil
}

// listStoredRuns prints the runs of root, newest first.
func listStoredRuns(ctx context.Context, out io.Writer, db *history.DB, root string) error {
	runs, err := db.ListRuns(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs found for %s\n", root)
		fmt.Fprintln(out, "\nUse 'sitemapper crawl' to crawl this root.")
		return nil
	}

	fmt.Fprintf(out, "Runs of %s (%d):\n\n", root, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-10s  %6s  %8s\n", "ID", "Date", "Status", "URLs", "Skipped")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, run := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-10s  %6d  %8d\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Status,
			run.URLCount,
			run.FailureCount,
		)
	}
	return nil
}

// compareRuns writes the difference between two runs of root. With a run
// ID the latest run is compared against that run, otherwise against the
// run before it.
func compareRuns(ctx context.Context, out io.Writer, db *history.DB, root string, withRunID int64, format string) error {
	latest, err := db.LatestRuns(ctx, root, 2)
	if err != nil {
		return fmt.Errorf("failed to load runs: %w", err)
	}
	if len(latest) == 0 {
		return fmt.Errorf("no runs found for %s", root)
	}

	current := latest[0]
	var previous *model.CrawlReport
	if withRunID > 0 {
		previous, err = db.GetRun(ctx, withRunID)
		if err != nil {
			return err
		}
		if previous.Root != root {
			return fmt.Errorf("run %d belongs to %s, not %s", withRunID, previous.Root, root)
		}
	} else {
		if len(latest) < 2 {
			return fmt.Errorf("%w: %s has one run", errNotEnoughRuns, root)
		}
		previous = latest[1]
	}

	w, err := report.New(format, out, getVersion())
	if err != nil {
		return err
	}
	_, err = w.WriteDiff(history.Diff(previous, current))
	return err
}
