// Package model defines the data structures shared by the crawl pipeline,
// the report writers and the history store.
//
// This package contains the following main types:
//   - CrawlReport: the outcome of crawling one root URL
//   - FetchFailure: a page that could not be fetched
//   - Status: the overall result of a run
//
// The models are serializable to JSON for report output and database storage.
package model
