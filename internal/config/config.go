package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/sitemapper/internal/sitemap"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemapper"

	// DefaultOutputPath is where the sitemap document is written when
	// --output is not given.
	DefaultOutputPath = "sitemap.xml"

	// DefaultChangeFreq is the changefreq value stamped on every entry.
	DefaultChangeFreq = "monthly"

	// DefaultPriority is the priority value stamped on every entry.
	DefaultPriority = 0.8

	// DefaultSettleDelay is how long the browser fetcher waits after the
	// page body is ready before reading anchors. Client-side scripts often
	// insert navigation links after the load event.
	DefaultSettleDelay = 2 * time.Second

	// DefaultTimeout bounds the fetch of a single page.
	DefaultTimeout = 60 * time.Second

	// DefaultBatchSize of 1 processes several roots one after another.
	DefaultBatchSize = 1

	// DefaultUserAgent identifies sitemapper in HTTP requests.
	// The browser fetcher keeps Chrome's own User-Agent unless one is set.
	DefaultUserAgent = "sitemapper/1.0 (+https://github.com/nao1215/sitemapper)"

	// DefaultMaxBodySize limits the response body read by the HTTP fetcher.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Fetcher kinds.
const (
	FetcherBrowser = "browser"
	FetcherHTTP    = "http"
)

// Fetch failure policies.
const (
	// FailureAbort stops the crawl at the first page that cannot be fetched.
	FailureAbort = "abort"
	// FailureSkip records the failing page and continues with the rest.
	FailureSkip = "skip"
)

// Crawl scopes.
const (
	ScopeAny  = "any"
	ScopeHost = "host"
	ScopeSite = "site"
)

// Report formats.
const (
	ReportText     = "text"
	ReportJSON     = "json"
	ReportMarkdown = "markdown"
)

// Config holds all configuration options for a sitemapper run.
// It is populated from CLI flags and the optional YAML file and then
// passed down explicitly; nothing reads it from global state.
type Config struct {
	// Targets is the list of root URLs to crawl. Each root must carry a
	// scheme and a host.
	Targets []string

	// OutputPath is the sitemap document path. When more than one root is
	// crawled, each run writes <host>.sitemap.xml in the directory of
	// OutputPath instead.
	OutputPath string

	// AppendOutput appends the document to an existing file instead of
	// replacing it. Repeated runs produce a file with several XML
	// documents, which sitemap consumers reject.
	AppendOutput bool

	// ChangeFreq is the <changefreq> value of every entry.
	ChangeFreq string

	// Priority is the <priority> value of every entry, in [0.0, 1.0].
	Priority float64

	// Fetcher selects how pages are loaded: "browser" renders the page
	// in headless Chrome, "http" downloads and parses the raw HTML.
	Fetcher string

	// SettleDelay is the wait between page load and anchor extraction.
	// Only the browser fetcher uses it.
	SettleDelay time.Duration

	// Timeout bounds the fetch of a single page.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// Cookie is sent with every request, e.g. "session=abc".
	Cookie string

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// ChromePath is the Chrome or Chromium executable. When empty,
	// chromedp searches the usual install locations.
	ChromePath string

	// ChromeProfileDir is the Chrome profile directory. When empty, each
	// run gets a fresh temporary profile. With several roots every run
	// uses a numbered subdirectory so that concurrent browsers never
	// share a profile.
	ChromeProfileDir string

	// NoHeadless shows the browser window. Useful when debugging pages
	// that behave differently under automation.
	NoHeadless bool

	// FailurePolicy is "abort" or "skip".
	FailurePolicy string

	// Scope restricts which discovered links are followed: "any" follows
	// every absolute link, "host" stays on the root's host and "site" on
	// its registrable domain.
	Scope string

	// AllowedHosts extends the host and site scopes with extra hosts.
	AllowedHosts []string

	// IgnorePatterns are path patterns that are never crawled.
	IgnorePatterns []string

	// FollowPatterns, when set, limit the crawl to matching paths.
	FollowPatterns []string

	// Normalize canonicalizes URLs before the visited check so that
	// trivially different spellings of one page are crawled once.
	Normalize bool

	// ProxyAddress is a SOCKS5 proxy in "host:port" format. Empty means
	// direct connections.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes every fetch through it.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap. Only used when UseTor is true.
	TorStartupTimeout time.Duration

	// MaxBodySize is the maximum response body size in bytes the HTTP
	// fetcher reads. Set to 0 to use the default (5MB).
	MaxBodySize int64

	// BatchSize is the number of roots crawled concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// ReportFormat is "text", "json" or "markdown".
	ReportFormat string

	// ReportFile is the output file path for the run report.
	// When empty, the report is written to stdout.
	ReportFile string

	// DBDir is the directory holding the SQLite history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB records every run in the history database.
	SaveToDB bool

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputPath:        DefaultOutputPath,
		ChangeFreq:        DefaultChangeFreq,
		Priority:          DefaultPriority,
		Fetcher:           FetcherBrowser,
		SettleDelay:       DefaultSettleDelay,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		FailurePolicy:     FailureAbort,
		Scope:             ScopeAny,
		TorStartupTimeout: DefaultTorStartupTimeout,
		MaxBodySize:       DefaultMaxBodySize,
		BatchSize:         DefaultBatchSize,
		ReportFormat:      ReportText,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for sitemapper.
// On Linux: ~/.local/share/sitemapper
// On macOS: ~/Library/Application Support/sitemapper
// On Windows: %LOCALAPPDATA%\sitemapper
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitemapper.
// On Linux: ~/.config/sitemapper
// On macOS: ~/Library/Application Support/sitemapper
// On Windows: %APPDATA%\sitemapper
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.OutputPath == "" {
		return ErrEmptyOutputPath
	}

	if !sitemap.IsValidChangeFreq(c.ChangeFreq) {
		return ErrInvalidChangeFreq
	}

	if !sitemap.IsValidPriority(c.Priority) {
		return ErrInvalidPriority
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.SettleDelay < 0 {
		return ErrInvalidSettleDelay
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if !slices.Contains([]string{FetcherBrowser, FetcherHTTP}, c.Fetcher) {
		return ErrUnknownFetcher
	}

	if !slices.Contains([]string{FailureAbort, FailureSkip}, c.FailurePolicy) {
		return ErrUnknownFailurePolicy
	}

	if !slices.Contains([]string{ScopeAny, ScopeHost, ScopeSite}, c.Scope) {
		return ErrUnknownScope
	}

	if !slices.Contains([]string{ReportText, ReportJSON, ReportMarkdown}, c.ReportFormat) {
		return ErrUnknownReportFormat
	}

	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxies
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
