package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/sitemapper/internal/fetcher"
	"github.com/nao1215/sitemapper/internal/model"
)

// FailurePolicy decides what happens when a page cannot be fetched.
type FailurePolicy int

const (
	// FailAbort stops the crawl at the first fetch failure.
	FailAbort FailurePolicy = iota

	// FailSkip records the failure, leaves the page out of the result and
	// continues. The root page is never skipped.
	FailSkip
)

// String returns the policy name as accepted by ParseFailurePolicy.
func (p FailurePolicy) String() string {
	switch p {
	case FailAbort:
		return "abort"
	case FailSkip:
		return "skip"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy converts "abort" or "skip" into a FailurePolicy.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "abort":
		return FailAbort, nil
	case "skip":
		return FailSkip, nil
	default:
		return FailAbort, fmt.Errorf("%w: %q", ErrUnknownFailurePolicy, name)
	}
}

// Result is the outcome of one crawl.
type Result struct {
	// URLs holds every discovered URL in discovery order. The root is
	// always first. No URL appears twice.
	URLs []string

	// Failures lists the pages skipped under FailSkip.
	Failures []model.FetchFailure

	// Fetched is the number of fetch attempts made.
	Fetched int

	// Duration is the wall time of the crawl.
	Duration time.Duration
}

// Crawler discovers the pages reachable from a root URL.
// A Crawler only holds configuration; every call to Crawl owns its own
// visited set, so one Crawler may run several crawls concurrently.
type Crawler struct {
	fetcher        fetcher.LinkFetcher
	policy         FailurePolicy
	scope          Scope
	allowedHosts   []string
	normalize      bool
	ignorePatterns []string
	followPatterns []string
	logger         *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithFailurePolicy sets what happens when a page cannot be fetched.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(c *Crawler) {
		c.policy = p
	}
}

// WithScope restricts which links are followed.
func WithScope(s Scope) Option {
	return func(c *Crawler) {
		c.scope = s
	}
}

// WithAllowedHosts adds hosts that are in scope regardless of the root.
// Entries may include a port ("localhost:8080") or not ("cdn.example.com").
func WithAllowedHosts(hosts ...string) Option {
	return func(c *Crawler) {
		c.allowedHosts = append(c.allowedHosts, hosts...)
	}
}

// WithNormalize enables URL normalization before the visited check.
func WithNormalize(enabled bool) Option {
	return func(c *Crawler) {
		c.normalize = enabled
	}
}

// WithIgnorePatterns sets URL path patterns that are never visited, e.g.
// "/admin" (the path and everything below it), "/logout*" (prefix) or
// "*.pdf" (suffix).
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.ignorePatterns = patterns
	}
}

// WithFollowPatterns limits the crawl to links whose path matches at
// least one pattern. The root is fetched regardless.
func WithFollowPatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.followPatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Crawler that loads pages with f.
func New(f fetcher.LinkFetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher: f,
		policy:  FailAbort,
		scope:   ScopeAny,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// frame is one page whose links are being expanded.
type frame struct {
	links []string
	next  int
}

// run holds the state of a single crawl.
type run struct {
	visited map[string]struct{}
	result  *Result
	scope   scopeFilter
	paths   pathFilter
}

// Crawl discovers every page reachable from root.
//
// The root must be followable, otherwise ErrInvalidRoot is returned. When
// the crawl stops early, because a fetch failed under FailAbort or ctx was
// cancelled, the returned Result holds what was discovered so far together
// with the error; callers must not treat it as a complete site.
func (c *Crawler) Crawl(ctx context.Context, root string) (*Result, error) {
	if !IsFollowable(root) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoot, root)
	}

	start := root
	if c.normalize {
		start = Normalize(root)
	}
	rootURL, err := url.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoot, root)
	}

	began := time.Now()
	r := &run{
		visited: map[string]struct{}{start: {}},
		result:  &Result{URLs: []string{start}},
		scope:   newScopeFilter(c.scope, rootURL, c.allowedHosts),
		paths:   pathFilter{ignore: c.ignorePatterns, follow: c.followPatterns},
	}
	defer func() { r.result.Duration = time.Since(began) }()

	c.logger.Debug("crawl started", "root", start, "scope", c.scope.String(), "on_error", c.policy.String())

	if err := ctx.Err(); err != nil {
		return r.result, err
	}
	links, err := c.fetch(ctx, r, start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.result, ctxErr
		}
		return r.result, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	stack := []frame{{links: links}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return r.result, err
		}

		top := &stack[len(stack)-1]
		if top.next >= len(top.links) {
			stack = stack[:len(stack)-1]
			continue
		}
		href := top.links[top.next]
		top.next++

		candidate, ok := c.admit(r, href)
		if !ok {
			continue
		}
		if _, seen := r.visited[candidate]; seen {
			continue
		}
		r.visited[candidate] = struct{}{}
		r.result.URLs = append(r.result.URLs, candidate)
		c.logger.Debug("discovered url", "url", candidate, "depth", len(stack))

		links, err := c.fetch(ctx, r, candidate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.result, ctxErr
			}
			if c.policy == FailAbort {
				return r.result, fmt.Errorf("%w: %w", ErrFetchFailed, err)
			}
			// The failing URL was appended last; it stays visited so it is
			// never fetched again.
			r.result.URLs = r.result.URLs[:len(r.result.URLs)-1]
			r.result.Failures = append(r.result.Failures, model.FetchFailure{URL: candidate, Error: err.Error()})
			c.logger.Warn("skipping page that could not be fetched", "url", candidate, "error", err)
			continue
		}
		stack = append(stack, frame{links: links})
	}

	c.logger.Info("crawl completed",
		"root", start,
		"urls", len(r.result.URLs),
		"fetched", r.result.Fetched,
		"failures", len(r.result.Failures),
		"elapsed", time.Since(began).String(),
	)
	return r.result, nil
}

// fetch loads a page and counts the attempt.
func (c *Crawler) fetch(ctx context.Context, r *run, pageURL string) ([]string, error) {
	r.result.Fetched++
	return c.fetcher.FetchLinks(ctx, pageURL)
}

// admit applies classification, normalization, scope and path patterns to
// a link. It returns the URL to record and whether the link is followed.
func (c *Crawler) admit(r *run, href string) (string, bool) {
	if !IsFollowable(href) {
		return "", false
	}

	candidate := href
	if c.normalize {
		candidate = Normalize(href)
	}

	if r.scope.scope == ScopeAny && len(r.paths.ignore) == 0 && len(r.paths.follow) == 0 {
		return candidate, true
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	if !r.scope.allows(u) || !r.paths.allows(u) {
		return "", false
	}
	return candidate, true
}
