// Package main provides the entry point for the sitemapper CLI.
//
// sitemapper crawls a website from one or more root URLs, following every
// followable link depth-first, and writes the discovered pages as an XML
// sitemap.
//
// Usage:
//
//	sitemapper crawl https://example.com/
//	sitemapper crawl --fetcher http --scope host -o public/sitemap.xml https://example.com/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
