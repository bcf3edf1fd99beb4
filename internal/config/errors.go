package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and allow callers to use
// errors.Is() for programmatic handling while keeping readable messages.
var (
	// ErrNoTarget is returned when no root URL is specified.
	ErrNoTarget = errors.New("no target specified: provide a root URL including its scheme")

	// ErrInvalidTimeout is returned when the per-page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidSettleDelay is returned when the settle delay is negative.
	// Use 0 to read anchors immediately after the page is ready.
	ErrInvalidSettleDelay = errors.New("invalid settle delay: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidPriority is returned when the sitemap priority is outside [0.0, 1.0].
	ErrInvalidPriority = errors.New("invalid priority: must be between 0.0 and 1.0")

	// ErrInvalidChangeFreq is returned when the change frequency is not one of
	// the values defined by the sitemap protocol.
	ErrInvalidChangeFreq = errors.New("invalid changefreq: must be one of always, hourly, daily, weekly, monthly, yearly, never")

	// ErrUnknownFetcher is returned when the fetcher kind is neither browser nor http.
	ErrUnknownFetcher = errors.New("unknown fetcher: must be browser or http")

	// ErrUnknownFailurePolicy is returned when the fetch failure policy is neither abort nor skip.
	ErrUnknownFailurePolicy = errors.New("unknown failure policy: must be abort or skip")

	// ErrUnknownScope is returned when the crawl scope is not any, host or site.
	ErrUnknownScope = errors.New("unknown scope: must be any, host or site")

	// ErrUnknownReportFormat is returned when the report format is not text, json or markdown.
	ErrUnknownReportFormat = errors.New("unknown report format: must be text, json or markdown")

	// ErrConflictingProxies is returned when both --tor and --proxy are given.
	ErrConflictingProxies = errors.New("conflicting proxy settings: --tor and --proxy cannot be used together")

	// ErrEmptyOutputPath is returned when the sitemap output path is empty.
	ErrEmptyOutputPath = errors.New("invalid output path: must not be empty")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
