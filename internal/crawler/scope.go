package crawler

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope restricts which followable links the crawler expands.
type Scope int

const (
	// ScopeAny follows every followable link, other domains included.
	ScopeAny Scope = iota

	// ScopeHost follows links whose host (port included) equals the
	// root's host, compared case-insensitively.
	ScopeHost

	// ScopeSite follows links sharing the root's registrable domain, so
	// that www.example.com and docs.example.com belong to one crawl.
	ScopeSite
)

// String returns the scope name as accepted by ParseScope.
func (s Scope) String() string {
	switch s {
	case ScopeAny:
		return "any"
	case ScopeHost:
		return "host"
	case ScopeSite:
		return "site"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ParseScope converts "any", "host" or "site" into a Scope.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any":
		return ScopeAny, nil
	case "host":
		return ScopeHost, nil
	case "site":
		return ScopeSite, nil
	default:
		return ScopeAny, fmt.Errorf("%w: %q", ErrUnknownScope, name)
	}
}

// scopeFilter decides whether a URL belongs to the crawl of one root.
type scopeFilter struct {
	scope    Scope
	rootHost string
	rootSite string
	allowed  map[string]struct{}
}

func newScopeFilter(scope Scope, root *url.URL, allowedHosts []string) scopeFilter {
	f := scopeFilter{
		scope:    scope,
		rootHost: strings.ToLower(root.Host),
		rootSite: registrableDomain(hostKey(root)),
		allowed:  make(map[string]struct{}, len(allowedHosts)),
	}
	for _, h := range allowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			f.allowed[h] = struct{}{}
		}
	}
	return f
}

// allows reports whether u is in scope.
func (f scopeFilter) allows(u *url.URL) bool {
	if f.scope == ScopeAny {
		return true
	}

	host := strings.ToLower(u.Host)
	if _, ok := f.allowed[host]; ok {
		return true
	}
	if _, ok := f.allowed[hostKey(u)]; ok {
		return true
	}

	switch f.scope {
	case ScopeHost:
		return host == f.rootHost
	case ScopeSite:
		return registrableDomain(hostKey(u)) == f.rootSite
	default:
		return true
	}
}

// registrableDomain returns the eTLD+1 of host, e.g. "example.co.uk" for
// "www.example.co.uk". Hosts without one, such as IP addresses and
// "localhost", are returned unchanged.
func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
