package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// HTTPFetcher implements LinkFetcher with a plain HTTP client.
type HTTPFetcher struct {
	client *http.Client
	opts   options
}

// NewHTTPFetcher creates an HTTPFetcher. Without WithHTTPClient it uses a
// client with the configured timeout and no proxy.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	client := o.client
	if client == nil {
		client = &http.Client{Timeout: o.timeout}
	}

	return &HTTPFetcher{client: client, opts: o}
}

// FetchLinks downloads pageURL and extracts its anchors. Redirects are
// followed and relative links are resolved against the final URL.
// Responses that are not HTML yield no links.
func (f *HTTPFetcher) FetchLinks(ctx context.Context, pageURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Cause: err}
	}

	if f.opts.userAgent != "" {
		req.Header.Set("User-Agent", f.opts.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range f.opts.requestHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status),
		}
	}

	if !isHTML(resp.Header.Get("Content-Type")) {
		f.opts.logger.Debug("skipping non-HTML response",
			"url", pageURL,
			"content_type", resp.Header.Get("Content-Type"),
		)
		return []string{}, nil
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Cause: err}
	}

	base := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	links, err := ExtractAnchors(bytes.NewReader(body), base)
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Cause: err}
	}

	f.opts.logger.Debug("fetched page", "url", pageURL, "status", resp.StatusCode, "links", len(links))
	return links, nil
}

// readBody decodes the response body according to Content-Encoding and
// enforces the size limit.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.opts.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.opts.maxBodySize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, f.opts.maxBodySize)
	}
	return body, nil
}

// isHTML reports whether a Content-Type header names an HTML document.
// A missing header is treated as HTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
