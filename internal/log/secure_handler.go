package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces an attribute whose key or value is sensitive.
const MaskValue = "***REDACTED***"

// urlMask replaces secrets inside a URL. It matches what url.URL.Redacted
// writes for passwords, so one log line never mixes two styles.
const urlMask = "xxxxx"

// secretNames are attribute keys and query parameter names masked on an
// exact, case-insensitive match. The crawl command logs the --cookie and
// --header values under these keys, and sites put the session ones in
// links.
var secretNames = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"set-cookie":          {},
	"x-api-key":           {},
	"x-auth-token":        {},
	"api_key":             {},
	"apikey":              {},
	"api-key":             {},
	"session":             {},
	"session_id":          {},
	"sessionid":           {},
	"sid":                 {},
	"jsessionid":          {},
	"phpsessid":           {},
	"signature":           {},
	"sig":                 {},
}

// secretKeywords mask any key containing them. A bare "key" is left out:
// it would hit names like "site_key".
var secretKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential",
}

// secretValues mask a string attribute whatever its key.
var secretValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`), // AWS access key
}

// SecureHandler is an slog.Handler that scrubs credentials before the
// wrapped handler sees a record.
//
// Keys naming a secret (cookie, authorization, *token*, ...) and values
// shaped like one (bearer, basic, JWT) are replaced by MaskValue. URL
// values keep their shape: the userinfo password and secret query
// parameters are replaced by "xxxxx", see RedactURL. Crawled links and
// proxy addresses stay readable in the logs that way.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler, or slog's default handler when nil.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle scrubs the record's attributes and forwards it.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	scrubbed := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		scrubbed.AddAttrs(scrub(a))
		return true
	})
	return h.handler.Handle(ctx, scrubbed)
}

// WithAttrs scrubs attrs once, when they are bound to the logger.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = scrub(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(scrubbed)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// scrub returns a with secrets masked. Groups are scrubbed recursively.
func scrub(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		members := a.Value.Group()
		scrubbed := make([]slog.Attr, len(members))
		for i, m := range members {
			scrubbed[i] = scrub(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(scrubbed...)}
	}

	if isSecretName(a.Key) {
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() != slog.KindString {
		return a
	}

	s := a.Value.String()
	if isSensitiveValue(s) {
		return slog.String(a.Key, MaskValue)
	}
	if redacted, ok := RedactURL(s); ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isSecretName(name string) bool {
	name = strings.ToLower(name)
	if _, ok := secretNames[name]; ok {
		return true
	}
	return containsSensitiveKeyword(name)
}

// containsSensitiveKeyword reports whether key contains one of secretKeywords.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range secretKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, re := range secretValues {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactURL masks the secrets of an absolute URL: the userinfo password
// and the values of secret query parameters such as "token" or "sid".
// Parameter order and the rest of the URL are kept.
// The second result is false when nothing was masked, in which case value
// is returned unchanged.
func RedactURL(value string) (string, bool) {
	if !strings.Contains(value, "://") {
		return value, false
	}
	if !strings.Contains(value, "@") && !strings.Contains(value, "?") {
		return value, false
	}
	u, err := url.Parse(value)
	if err != nil {
		return value, false
	}

	changed := false
	if u.User != nil {
		if _, has := u.User.Password(); has {
			changed = true
		}
	}
	if query, ok := redactQuery(u.RawQuery); ok {
		u.RawQuery = query
		changed = true
	}
	if !changed {
		return value, false
	}
	return u.Redacted(), true
}

// redactQuery masks the values of secret parameters in a raw query.
func redactQuery(raw string) (string, bool) {
	if raw == "" {
		return raw, false
	}

	params := strings.Split(raw, "&")
	changed := false
	for i, p := range params {
		name, _, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		decoded, err := url.QueryUnescape(name)
		if err != nil {
			decoded = name
		}
		if isSecretName(decoded) {
			params[i] = name + "=" + urlMask
			changed = true
		}
	}
	return strings.Join(params, "&"), changed
}

// NewSecureLogger returns a text logger writing to w through a
// SecureHandler. verbose selects Debug, otherwise only warnings and
// errors are written.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with one JSON object per line,
// for "--log-json".
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
