// Package config provides configuration structures and utilities for sitemapper.
// It defines the options for a crawl run, the sitemap metadata applied to
// every entry, fetcher settings, and the optional per-site YAML file.
package config
