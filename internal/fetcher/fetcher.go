package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// LinkFetcher returns the anchor targets found on a page.
type LinkFetcher interface {
	// FetchLinks loads pageURL and returns the href of every <a> element,
	// deduplicated within the page, in document order.
	FetchLinks(ctx context.Context, pageURL string) ([]string, error)
}

var (
	// ErrUnexpectedStatus is wrapped by FetchError when the server answers
	// with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is wrapped by FetchError when a response exceeds the
	// configured body size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrClosed is returned by a BrowserFetcher after Close.
	ErrClosed = errors.New("fetcher closed")
)

// FetchError describes a page that could not be loaded.
type FetchError struct {
	// URL is the page that failed.
	URL string
	// StatusCode is the HTTP status, when a response was received.
	StatusCode int
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Default values shared by the fetchers.
const (
	// DefaultTimeout bounds a single page load.
	DefaultTimeout = 60 * time.Second

	// DefaultSettleDelay is how long the browser waits after the body is
	// ready before reading anchors.
	DefaultSettleDelay = 2 * time.Second

	// DefaultMaxBodySize limits the HTTP response body read.
	DefaultMaxBodySize = 5 * 1024 * 1024
)

// options holds the settings accepted by both fetchers. Each fetcher reads
// only the fields that apply to it.
type options struct {
	timeout     time.Duration
	settleDelay time.Duration
	userAgent   string
	cookie      string
	headers     map[string]string
	maxBodySize int64
	logger      *slog.Logger

	// HTTP only
	client *http.Client

	// browser only
	proxyServer string
	execPath    string
	headless    bool
	userDataDir string
}

func defaultOptions() options {
	return options{
		timeout:     DefaultTimeout,
		settleDelay: DefaultSettleDelay,
		maxBodySize: DefaultMaxBodySize,
		headless:    true,
		logger:      slog.Default(),
		headers:     make(map[string]string),
	}
}

// Option configures a fetcher.
type Option func(*options)

// WithTimeout bounds a single page load.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSettleDelay sets how long the browser waits after the page body is
// ready before reading anchors. Zero reads them immediately.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.settleDelay = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithCookie sends the given cookie string with every request.
// Format: "name=value" or "name1=value1; name2=value2"
func WithCookie(cookie string) Option {
	return func(o *options) {
		o.cookie = cookie
	}
}

// WithHeaders adds custom HTTP headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithMaxBodySize limits the response body read by the HTTP fetcher.
func WithMaxBodySize(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.maxBodySize = size
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient sets the client used by the HTTP fetcher, for example one
// that dials through a SOCKS5 proxy.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithProxyServer routes the browser through the given proxy, e.g.
// "socks5://127.0.0.1:9050".
func WithProxyServer(proxy string) Option {
	return func(o *options) {
		o.proxyServer = proxy
	}
}

// WithExecPath sets the Chrome executable used by the browser fetcher.
func WithExecPath(path string) Option {
	return func(o *options) {
		o.execPath = path
	}
}

// WithHeadless toggles headless mode of the browser fetcher.
func WithHeadless(headless bool) Option {
	return func(o *options) {
		o.headless = headless
	}
}

// WithUserDataDir sets the Chrome profile directory. When empty, chromedp
// creates a temporary profile.
func WithUserDataDir(dir string) Option {
	return func(o *options) {
		o.userDataDir = dir
	}
}

// requestHeaders returns the extra headers to send, cookie included.
func (o *options) requestHeaders() map[string]string {
	headers := make(map[string]string, len(o.headers)+1)
	for k, v := range o.headers {
		headers[k] = v
	}
	if o.cookie != "" {
		headers["Cookie"] = o.cookie
	}
	return headers
}

// dedupe removes repeated links, keeping the first occurrence.
func dedupe(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	result := make([]string, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		result = append(result, l)
	}
	return result
}
