// Package report renders crawl run summaries and run comparisons.
//
// Three formats are supported: plain text for terminals, JSON for tools,
// and Markdown (with a Mermaid host chart) for sharing. Every writer
// implements Writer, so callers pick a format once and reuse it for
// single runs and history diffs alike.
package report
