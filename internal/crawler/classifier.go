package crawler

import (
	"net/url"
	"strings"
)

// IsFollowable reports whether candidate is a URL the crawler may fetch.
//
// A followable URL parses, has a non-empty scheme and a non-empty host, and
// contains no '#' anywhere in its text. The '#' check is applied to the raw
// string, so a '#' in the query or path excludes the URL as well. No scheme
// or domain restriction is applied here.
//
// Parsing is net/url's, which rejects invalid percent escapes, non-numeric
// ports and spaces in the host. Such hrefs could not be requested anyway.
func IsFollowable(candidate string) bool {
	if strings.Contains(candidate, "#") {
		return false
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
