package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitemapper/internal/history"
	"github.com/nao1215/sitemapper/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxChartHosts caps the slices of the host pie chart; the remaining hosts
// are folded into "other".
const maxChartHosts = 8

// MarkdownWriter outputs reports in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeHosts(md, report)
	w.writeFailures(md, report)
	w.writeURLs(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Sitemap Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Root", "`" + report.Root + "`"},
		{"Run ID", report.ID.String()},
		{"Started", report.StartedAt.Format(timeLayout)},
		{"Duration", report.Duration().String()},
		{"Pages Fetched", strconv.Itoa(report.PagesFetched)},
		{"URLs Discovered", strconv.Itoa(len(report.URLs))},
		{"Status", statusText(report)},
	}
	if report.SitemapPath != "" {
		rows = append(rows, []string{"Sitemap", "`" + report.SitemapPath + "` (" + strconv.Itoa(report.SitemapBytes) + " bytes)"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch report.Status() {
	case model.StatusFailed:
		md.Cautionf("The run failed and no sitemap was written: %s", report.ErrorMessage)
	case model.StatusPartial:
		md.Warningf("%d page(s) could not be fetched and are missing from the sitemap.", len(report.Failures))
	default:
		md.Tip("Every reachable page was fetched.")
	}
	md.PlainText("")
}

// statusText renders the status as a title-cased label, e.g. "✅ Succeeded".
func statusText(report *model.CrawlReport) string {
	label := cases.Title(language.English).String(strings.ToLower(report.Status().String()))
	switch report.Status() {
	case model.StatusFailed:
		return "❌ " + label
	case model.StatusPartial:
		return "⚠️ " + label
	default:
		return "✅ " + label
	}
}

func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, report *model.CrawlReport) {
	hosts := report.HostCounts()
	if len(hosts) == 0 {
		return
	}

	md.H2("Hosts")
	md.PlainText("")

	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		rows[i] = []string{"`" + h.Host + "`", strconv.Itoa(h.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "URLs"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(hosts) > 1 {
		w.writePieChart(md, hosts)
	}
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, hosts []model.HostCount) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Discovered URLs by Host"),
		piechart.WithShowData(true),
	)

	other := 0
	for i, h := range hosts {
		if i >= maxChartHosts {
			other += h.Count
			continue
		}
		chart.LabelAndIntValue(h.Host, uint64(h.Count)) //nolint:gosec // counts are non-negative
	}
	if other > 0 {
		chart.LabelAndIntValue("other", uint64(other)) //nolint:gosec // counts are non-negative
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Failures) == 0 {
		return
	}

	md.H2("Skipped Pages")
	md.PlainText("")

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		rows[i] = []string{f.URL, truncateString(f.Error, 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeURLs(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Discovered URLs")
	md.PlainText("")

	if len(report.URLs) == 0 {
		md.PlainText("No URLs were discovered.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.URLs))
	for i, u := range report.URLs {
		rows[i] = []string{strconv.Itoa(i + 1), u}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "URL"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitemapper](https://github.com/nao1215/sitemapper)*")
}

// WriteDiff outputs the comparison of two runs in Markdown format.
func (w *MarkdownWriter) WriteDiff(diff *history.RunDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Run Comparison: " + diff.Root)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current"},
		Rows: [][]string{
			{"Started", diff.Previous.StartedAt.Format(timeLayout), diff.Current.StartedAt.Format(timeLayout)},
			{"Status", diff.Previous.Status.String(), diff.Current.Status.String()},
			{"URLs", strconv.Itoa(diff.Previous.URLCount), strconv.Itoa(diff.Current.URLCount)},
			{"Skipped Pages", strconv.Itoa(diff.Previous.Failures), strconv.Itoa(diff.Current.Failures)},
		},
	})
	md.PlainText("")

	if !diff.Changed() {
		md.Note("The discovered URL set did not change.")
		md.PlainText("")
	}

	if len(diff.Added) > 0 {
		md.H2("Added (" + strconv.Itoa(len(diff.Added)) + ")")
		md.PlainText("")
		md.BulletList(diff.Added...)
		md.PlainText("")
	}
	if len(diff.Removed) > 0 {
		md.H2("Removed (" + strconv.Itoa(len(diff.Removed)) + ")")
		md.PlainText("")
		removed := make([]string, len(diff.Removed))
		for i, u := range diff.Removed {
			removed[i] = "~~" + u + "~~"
		}
		md.BulletList(removed...)
		md.PlainText("")
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*%d URL(s) unchanged*", diff.Unchanged)

	return len(md.String()), md.Build()
}
