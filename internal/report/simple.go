package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitemapper/internal/history"
	"github.com/nao1215/sitemapper/internal/model"
)

// ruleWidth is the width of the section separators in text output.
const ruleWidth = 70

// SimpleWriter outputs plain text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every discovered URL.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every discovered URL in the report.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeHosts(&sb, report)
	w.writeFailures(&sb, report)
	if w.verbose {
		w.writeURLs(&sb, report)
	}
	writeRule(&sb, "=")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	writeRule(sb, "=")
	sb.WriteString("                       SITEMAPPER CRAWL REPORT\n")
	writeRule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Root:           %s\n", report.Root)
	fmt.Fprintf(sb, "Run ID:         %s\n", report.ID)
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Duration:       %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Pages fetched:  %d\n", report.PagesFetched)
	fmt.Fprintf(sb, "URLs found:     %d\n", len(report.URLs))

	switch report.Status() {
	case model.StatusFailed:
		fmt.Fprintf(sb, "Status:         FAILED - %s\n", report.ErrorMessage)
	case model.StatusPartial:
		fmt.Fprintf(sb, "Status:         PARTIAL (%d page(s) skipped)\n", len(report.Failures))
	default:
		sb.WriteString("Status:         SUCCEEDED\n")
	}

	if report.SitemapPath != "" {
		fmt.Fprintf(sb, "Sitemap:        %s (%d bytes)\n", report.SitemapPath, report.SitemapBytes)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHosts(sb *strings.Builder, report *model.CrawlReport) {
	hosts := report.HostCounts()
	if len(hosts) == 0 {
		return
	}

	writeSection(sb, "HOSTS")
	for _, h := range hosts {
		fmt.Fprintf(sb, "  %-50s %6d\n", h.Host, h.Count)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Failures) == 0 {
		return
	}

	writeSection(sb, "SKIPPED PAGES")
	for _, f := range report.Failures {
		fmt.Fprintf(sb, "  [-] %s\n", f.URL)
		if f.Error != "" {
			fmt.Fprintf(sb, "      %s\n", f.Error)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeURLs(sb *strings.Builder, report *model.CrawlReport) {
	writeSection(sb, "DISCOVERED URLS")
	if len(report.URLs) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, u := range report.URLs {
		fmt.Fprintf(sb, "  %s\n", u)
	}
	sb.WriteString("\n")
}

// WriteDiff outputs a comparison of two runs.
func (w *SimpleWriter) WriteDiff(diff *history.RunDiff) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run comparison: %s\n", diff.Root)
	writeRule(&sb, "=")
	fmt.Fprintf(&sb, "\nPrevious run: %s  %s  %d URL(s)\n",
		diff.Previous.StartedAt.Format(timeLayout), diff.Previous.Status, diff.Previous.URLCount)
	fmt.Fprintf(&sb, "Current run:  %s  %s  %d URL(s)\n",
		diff.Current.StartedAt.Format(timeLayout), diff.Current.Status, diff.Current.URLCount)

	if !diff.Changed() {
		fmt.Fprintf(&sb, "\nNo changes: %d URL(s) unchanged\n", diff.Unchanged)
		return io.WriteString(w.output, sb.String())
	}

	if len(diff.Added) > 0 {
		fmt.Fprintf(&sb, "\nAdded (%d):\n", len(diff.Added))
		for _, u := range diff.Added {
			fmt.Fprintf(&sb, "  [+] %s\n", u)
		}
	}
	if len(diff.Removed) > 0 {
		fmt.Fprintf(&sb, "\nRemoved (%d):\n", len(diff.Removed))
		for _, u := range diff.Removed {
			fmt.Fprintf(&sb, "  [-] %s\n", u)
		}
	}
	fmt.Fprintf(&sb, "\nUnchanged: %d URL(s)\n", diff.Unchanged)

	return io.WriteString(w.output, sb.String())
}

func writeRule(sb *strings.Builder, char string) {
	sb.WriteString(strings.Repeat(char, ruleWidth))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	writeRule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	writeRule(sb, "-")
	sb.WriteString("\n")
}
