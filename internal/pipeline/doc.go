// Package pipeline runs the stages of a sitemap run in sequence.
//
// A run for one root URL crawls the site, serializes and writes the
// sitemap document, and optionally records the run in the history
// database. Each stage is a Step that updates a shared model.CrawlReport.
// The pipeline stops at the first failing step, so a failed crawl never
// produces a sitemap file.
//
// Several roots are handled by BatchProcessor, which gives every root its
// own pipeline and bounds concurrency with errgroup.
package pipeline
