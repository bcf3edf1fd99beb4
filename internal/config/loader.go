package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sitemapper"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .sitemapper in the current directory
// 3. Look for .sitemapper in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}

// ApplySite copies the values of a merged SiteConfig into c for every field
// the caller did not set explicitly. The explicit callback reports whether a
// flag with the given name was set on the command line.
func (c *Config) ApplySite(sc SiteConfig, explicit func(flag string) bool) {
	if explicit == nil {
		explicit = func(string) bool { return false }
	}
	if sc.ChangeFreq != "" && !explicit("changefreq") {
		c.ChangeFreq = sc.ChangeFreq
	}
	if sc.Priority != nil && !explicit("priority") {
		c.Priority = *sc.Priority
	}
	if sc.SettleDelay != 0 && !explicit("settle-delay") {
		c.SettleDelay = sc.SettleDelay
	}
	if sc.UserAgent != "" && !explicit("user-agent") {
		c.UserAgent = sc.UserAgent
	}
	if sc.Scope != "" && !explicit("scope") {
		c.Scope = sc.Scope
	}
	if len(sc.AllowedHosts) > 0 && !explicit("allow-host") {
		c.AllowedHosts = append([]string(nil), sc.AllowedHosts...)
	}
	if len(sc.IgnorePatterns) > 0 && !explicit("ignore") {
		c.IgnorePatterns = append([]string(nil), sc.IgnorePatterns...)
	}
	if len(sc.FollowPatterns) > 0 && !explicit("follow") {
		c.FollowPatterns = append([]string(nil), sc.FollowPatterns...)
	}
	if sc.Cookie != "" && !explicit("cookie") {
		c.Cookie = sc.Cookie
	}
	if len(sc.Headers) > 0 {
		merged := make(map[string]string, len(sc.Headers)+len(c.Headers))
		for k, v := range sc.Headers {
			merged[k] = v
		}
		for k, v := range c.Headers {
			merged[k] = v
		}
		c.Headers = merged
	}
}
