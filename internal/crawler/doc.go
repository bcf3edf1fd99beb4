// Package crawler discovers the pages of a site by following anchor links
// from a root URL.
//
// # Traversal
//
// The Crawler performs a depth-first traversal: every newly discovered URL
// is expanded before the next sibling link of the page it was found on.
// The traversal is driven by an explicit stack, so deep link chains do not
// grow the goroutine stack. A URL is fetched at most once per run; the
// visited set is the only cycle protection and the crawl ends when every
// reachable followable URL has been expanded.
//
// # Filtering
//
// A link is followed only when IsFollowable accepts it: it must carry a
// scheme and a host and must not contain '#'. By default any such link is
// followed, including links to other domains. Scope, allowed hosts and
// path patterns narrow the crawl; Normalize merges trivially different
// spellings of one URL.
//
// # Failures
//
// With FailAbort (the default) the first page that cannot be fetched stops
// the run. With FailSkip the page is recorded in Result.Failures, left out
// of Result.URLs and the crawl continues. A root that cannot be fetched
// always stops the run.
//
// # Usage
//
//	c := crawler.New(fetcher.NewHTTPFetcher(), crawler.WithScope(crawler.ScopeHost))
//	result, err := c.Crawl(ctx, "https://example.com/")
package crawler
