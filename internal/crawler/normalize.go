package crawler

import (
	"net/url"
	"strings"
)

// Normalize returns a canonical spelling of raw:
//   - scheme and host are lowercased
//   - the default port (80 for http, 443 for https) is dropped
//   - an empty path becomes "/"
//   - one trailing slash is removed from any other path
//
// The query is kept verbatim. Strings that do not parse are returned unchanged.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		host := u.Hostname()
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	}

	switch {
	case u.Path == "":
		u.Path = "/"
		u.RawPath = ""
	case u.Path != "/" && strings.HasSuffix(u.Path, "/"):
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = strings.TrimSuffix(u.RawPath, "/")
	}

	return u.String()
}

// hostKey returns the lowercased host without port, brackets removed.
func hostKey(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}
