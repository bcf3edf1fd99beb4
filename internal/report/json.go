package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitemapper/internal/history"
	"github.com/nao1215/sitemapper/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string

	// version is stamped on run reports when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the sitemapper version in run reports.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// Output is compact unless an indent option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a run report with derived fields that are not stored
// on the report itself.
type JSONReport struct {
	// Version is the sitemapper version that produced the report.
	Version string `json:"version,omitempty"`

	// Status is SUCCEEDED, PARTIAL or FAILED.
	Status model.Status `json:"status"`

	// DurationMS is the run time in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// Hosts groups the discovered URLs by host.
	Hosts []model.HostCount `json:"hosts"`

	// Report is the run report.
	Report *model.CrawlReport `json:"report"`
}

// NewJSONReport wraps report for JSON output.
func NewJSONReport(report *model.CrawlReport, version string) *JSONReport {
	return &JSONReport{
		Version:    version,
		Status:     report.Status(),
		DurationMS: report.Duration().Milliseconds(),
		Hosts:      report.HostCounts(),
		Report:     report,
	}
}

// Write outputs the run report wrapped in a JSONReport.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}

// WriteDiff outputs the comparison as JSON.
func (w *JSONWriter) WriteDiff(diff *history.RunDiff) (int, error) {
	return w.writeJSON(diff)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
