package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/log"
	"github.com/nao1215/sitemapper/internal/sitemap"
	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	exitOK          = 0
	exitError       = 1
	exitInvalidRoot = 2
	exitFetchFailed = 3
	exitWriteFailed = 4
)

// NewRootCmd creates the root command for sitemapper.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemapper",
		Short: "Crawl a website and write its XML sitemap",
		Long: `sitemapper crawls a website starting from a root URL, follows every
link that carries a scheme and a host and has no fragment, and writes the
discovered pages as a sitemap (http://www.sitemaps.org/schemas/sitemap/0.9).

Pages are rendered in headless Chrome by default so that links inserted by
client-side scripts are found. Use --fetcher http for static sites.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with the code matching the error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, crawler.ErrInvalidRoot):
		return exitInvalidRoot
	case errors.Is(err, crawler.ErrFetchFailed):
		return exitFetchFailed
	case errors.Is(err, sitemap.ErrWriteFailed):
		return exitWriteFailed
	default:
		return exitError
	}
}

// getBoolFlag retrieves a boolean flag from the command or the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		value, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return value
}

// setupLogger creates the redacting logger for a command. Logs go to w,
// normally stderr, so that reports on stdout stay machine-readable.
func setupLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	verbose := getBoolFlag(cmd, "verbose")
	if getBoolFlag(cmd, "log-json") {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}
