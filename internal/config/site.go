package config

import (
	"net/url"
	"strings"
	"time"
)

// SiteConfig holds settings for a single site, keyed by host in the
// configuration file.
type SiteConfig struct {
	// ChangeFreq overrides the <changefreq> value for this site.
	ChangeFreq string `yaml:"changefreq,omitempty"`

	// Priority overrides the <priority> value for this site.
	// A pointer distinguishes an explicit 0.0 from an unset value.
	Priority *float64 `yaml:"priority,omitempty"`

	// SettleDelay overrides the browser settle delay for this site.
	SettleDelay time.Duration `yaml:"settleDelay,omitempty"`

	// UserAgent overrides the User-Agent header for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// AllowedHosts are extra hosts treated as in scope for this site.
	AllowedHosts []string `yaml:"allowedHosts,omitempty"`

	// Scope overrides the crawl scope for this site.
	Scope string `yaml:"scope,omitempty"`

	// IgnorePatterns are path patterns that are never crawled.
	// Examples: "/admin/*", "*.pdf"
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, limit the crawl to matching paths.
	// The root is always fetched.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .sitemapper configuration file.
type File struct {
	// Sites maps hosts to their site-specific configurations.
	// Keys are hosts without the scheme (e.g., "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a root URL or host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(target string) SiteConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.Sites[SiteKey(target)]
	if !ok {
		return result
	}

	if siteConfig.ChangeFreq != "" {
		result.ChangeFreq = siteConfig.ChangeFreq
	}
	if siteConfig.Priority != nil {
		result.Priority = siteConfig.Priority
	}
	if siteConfig.SettleDelay != 0 {
		result.SettleDelay = siteConfig.SettleDelay
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.AllowedHosts) > 0 {
		result.AllowedHosts = siteConfig.AllowedHosts
	}
	if siteConfig.Scope != "" {
		result.Scope = siteConfig.Scope
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}

// SiteKey returns the key used to look up a target in File.Sites.
// Root URLs are reduced to their lowercased host; anything that does not
// parse as an absolute URL is used as is.
func SiteKey(target string) string {
	u, err := url.Parse(target)
	if err == nil && u.Host != "" {
		return strings.ToLower(u.Hostname())
	}
	return strings.ToLower(strings.TrimSpace(target))
}
