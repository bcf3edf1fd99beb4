// Package history stores completed crawl runs in a SQLite database so that
// later runs of the same root can be listed and compared.
//
// Each run keeps its discovered URLs in discovery order together with the
// pages that failed. The database is a single file in the XDG data
// directory, opened through the CGO-free modernc.org/sqlite driver.
package history
