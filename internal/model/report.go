package model

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CrawlReport is the outcome of crawling one root URL and writing its sitemap.
type CrawlReport struct {
	// ID identifies the run. It is generated when the report is created and
	// used as the key in the history database.
	ID uuid.UUID `json:"id"`

	// Root is the URL the crawl started from.
	Root string `json:"root"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last step completed.
	FinishedAt time.Time `json:"finished_at"`

	// URLs holds the discovered URLs in discovery order, root first.
	URLs []string `json:"urls"`

	// Failures lists pages that could not be fetched. Only populated when
	// the crawl runs with the skip failure policy.
	Failures []FetchFailure `json:"failures,omitempty"`

	// PagesFetched is the number of fetch attempts made.
	PagesFetched int `json:"pages_fetched"`

	// SitemapPath is where the sitemap document was written.
	SitemapPath string `json:"sitemap_path,omitempty"`

	// SitemapBytes is the size of the written document.
	SitemapBytes int `json:"sitemap_bytes"`

	// PerformedSteps lists the pipeline steps that completed.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error contains the error that stopped the run, if any.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// FetchFailure records a page that could not be fetched.
type FetchFailure struct {
	// URL is the page that failed.
	URL string `json:"url"`

	// Error describes why the fetch failed.
	Error string `json:"error"` //nolint:tagliatelle // error is conventional
}

// NewCrawlReport creates a new report for the given root URL.
func NewCrawlReport(root string) *CrawlReport {
	return &CrawlReport{
		ID:        uuid.New(),
		Root:      root,
		StartedAt: time.Now(),
		URLs:      make([]string, 0),
	}
}

// SetError records err as the reason the run stopped.
func (r *CrawlReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// AddFailure records a page that could not be fetched.
func (r *CrawlReport) AddFailure(pageURL string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.Failures = append(r.Failures, FetchFailure{URL: pageURL, Error: msg})
}

// Duration returns how long the run took. It is zero until FinishedAt is set.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status summarizes the run.
func (r *CrawlReport) Status() Status {
	switch {
	case r.ErrorMessage != "" || r.Error != nil:
		return StatusFailed
	case len(r.Failures) > 0:
		return StatusPartial
	default:
		return StatusSucceeded
	}
}

// HostCount is the number of discovered URLs on one host.
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// HostCounts groups the discovered URLs by lowercased host, largest first.
// Ties are ordered by host name.
func (r *CrawlReport) HostCounts() []HostCount {
	counts := make(map[string]int)
	for _, raw := range r.URLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		counts[strings.ToLower(u.Host)]++
	}

	result := make([]HostCount, 0, len(counts))
	for host, n := range counts {
		result = append(result, HostCount{Host: host, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Host < result[j].Host
	})
	return result
}
