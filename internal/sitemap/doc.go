// Package sitemap renders a list of URLs as a sitemap document following
// the protocol published at https://www.sitemaps.org/protocol.html and
// writes it to disk.
//
// Every entry of one document carries the same lastmod, changefreq and
// priority values. The serializer is deterministic: the same URLs and
// Options always produce the same bytes.
package sitemap
