// Package fetcher loads a page and returns the targets of its anchor
// elements.
//
// Two implementations of LinkFetcher are provided:
//   - BrowserFetcher renders the page in headless Chrome through chromedp,
//     waits for client-side scripts to settle, and reads the resolved href
//     of every <a> element. Links inserted by JavaScript are found.
//   - HTTPFetcher downloads the raw HTML with net/http and extracts anchors
//     with goquery. It needs no browser and is much faster, but only sees
//     links present in the served markup.
//
// Both return absolute URLs, deduplicated within the page, in document
// order. Failures are reported as *FetchError.
package fetcher
