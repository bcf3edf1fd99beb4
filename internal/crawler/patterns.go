package crawler

import (
	"net/url"
	"strings"
)

// pathFilter applies ignore and follow patterns to URL paths.
type pathFilter struct {
	ignore []string
	follow []string
}

// allows reports whether u passes the filter. An ignore match always
// rejects; a non-empty follow list rejects paths matching none of its
// entries. An empty path is matched as "/".
func (p pathFilter) allows(u *url.URL) bool {
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range p.ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(p.follow) > 0 {
		for _, pattern := range p.follow {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern reports whether path matches pattern:
//   - "*" matches every path
//   - "/logout*" (trailing star) matches paths starting with "/logout"
//   - "*.pdf" (leading star) matches paths ending in ".pdf"
//   - "*admin*" (both) matches paths containing "admin"
//   - "/admin" matches "/admin" itself and everything below "/admin/"
//
// A star anywhere else is literal.
func matchPattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}
	if pattern == "*" {
		return true
	}

	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*")
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")

	switch {
	case leading && trailing:
		return strings.Contains(path, core)
	case trailing:
		return strings.HasPrefix(path, core)
	case leading:
		return strings.HasSuffix(path, core)
	}

	if path == pattern {
		return true
	}
	dir := strings.TrimSuffix(pattern, "/")
	return strings.HasPrefix(path, dir+"/")
}
