package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// anchorsScript collects the resolved href property of every anchor, the
// same value a user agent would navigate to.
const anchorsScript = `Array.from(document.querySelectorAll('a'), a => a.href)
	.filter(h => typeof h === 'string' && h !== '')`

// BrowserFetcher implements LinkFetcher with headless Chrome.
//
// The browser process is started on the first fetch and reused for every
// page; each page is loaded in a fresh tab. Call Close to stop the browser.
type BrowserFetcher struct {
	opts options

	mu            sync.Mutex
	browserCtx    context.Context //nolint:containedctx // owns the browser process for the fetcher's lifetime
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	closed        bool
}

// NewBrowserFetcher creates a BrowserFetcher. No browser is started until
// the first call to FetchLinks.
func NewBrowserFetcher(opts ...Option) *BrowserFetcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &BrowserFetcher{opts: o}
}

// FetchLinks opens pageURL in a new tab, waits for the body to be ready,
// waits the settle delay, and returns the href of every anchor.
// Pages answering with a non-2xx status are reported as *FetchError.
func (f *BrowserFetcher) FetchLinks(ctx context.Context, pageURL string) ([]string, error) {
	browserCtx, err := f.browser()
	if err != nil {
		return nil, &FetchError{URL: pageURL, Cause: err}
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, f.opts.timeout)
	defer cancel()

	setup := []chromedp.Action{network.Enable()}
	if headers := f.opts.requestHeaders(); len(headers) > 0 {
		h := make(network.Headers, len(headers))
		for k, v := range headers {
			h[k] = v
		}
		setup = append(setup, network.SetExtraHTTPHeaders(h))
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		return nil, &FetchError{URL: pageURL, Cause: f.cause(ctx, err)}
	}

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(pageURL))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Cause: f.cause(ctx, err)}
	}
	if resp != nil && (resp.Status < 200 || resp.Status > 299) {
		return nil, &FetchError{
			URL:        pageURL,
			StatusCode: int(resp.Status),
			Cause:      fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.Status, resp.StatusText),
		}
	}

	var links []string
	actions := []chromedp.Action{chromedp.WaitReady("body", chromedp.ByQuery)}
	if f.opts.settleDelay > 0 {
		actions = append(actions, chromedp.Sleep(f.opts.settleDelay))
	}
	actions = append(actions, chromedp.Evaluate(anchorsScript, &links))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, &FetchError{URL: pageURL, Cause: f.cause(ctx, err)}
	}

	links = dedupe(links)
	f.opts.logger.Debug("rendered page", "url", pageURL, "links", len(links))
	return links, nil
}

// Close stops the browser. It is safe to call more than once.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.browserCancel != nil {
		f.browserCancel()
		f.browserCancel = nil
	}
	if f.allocCancel != nil {
		f.allocCancel()
		f.allocCancel = nil
	}
	f.browserCtx = nil
	return nil
}

// browser returns the browser context, starting Chrome if needed.
func (f *BrowserFetcher) browser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if f.browserCtx != nil {
		return f.browserCtx, nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), f.allocatorOptions()...)
	logger := f.opts.logger
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug("chromedp: " + fmt.Sprintf(format, args...))
		}),
	)

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Debug("browser started", "headless", f.opts.headless, "proxy", f.opts.proxyServer)

	f.browserCtx = browserCtx
	f.browserCancel = browserCancel
	f.allocCancel = allocCancel
	return browserCtx, nil
}

// allocatorOptions builds the Chrome command line.
func (f *BrowserFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", f.opts.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if f.opts.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.opts.userAgent))
	}
	if f.opts.proxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(f.opts.proxyServer))
	}
	if f.opts.execPath != "" {
		opts = append(opts, chromedp.ExecPath(f.opts.execPath))
	}
	if f.opts.userDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(f.opts.userDataDir))
	}
	return opts
}

// cause prefers the caller's context error over the tab's, so that a
// cancelled crawl is reported as context.Canceled rather than a browser
// error.
func (f *BrowserFetcher) cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
