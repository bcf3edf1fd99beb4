// Package tor routes crawls through a SOCKS5 proxy such as a Tor daemon.
//
// A Client wraps an existing proxy, verifies that it speaks SOCKS5, and
// builds HTTP clients that dial through it. EmbeddedTor starts a private
// Tor daemon with tornago when no proxy is running.
package tor
