package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Namespace is the XML namespace of a sitemap urlset.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// DateLayout is the layout of <lastmod>.
const DateLayout = "2006-01-02"

// ChangeFrequencies lists the values allowed in <changefreq>.
var ChangeFrequencies = []string{
	"always",
	"hourly",
	"daily",
	"weekly",
	"monthly",
	"yearly",
	"never",
}

// IsValidChangeFreq reports whether s is an allowed <changefreq> value.
func IsValidChangeFreq(s string) bool {
	return slices.Contains(ChangeFrequencies, s)
}

// IsValidPriority reports whether p lies in [0.0, 1.0]. NaN is not valid.
func IsValidPriority(p float64) bool {
	return p >= 0 && p <= 1
}

// Options holds the metadata stamped on every entry.
type Options struct {
	// ChangeFreq is the <changefreq> of every entry.
	ChangeFreq string
	// Priority is the <priority> of every entry, in [0.0, 1.0].
	Priority float64
	// Today is the date written as <lastmod>. The zero value means time.Now().
	Today time.Time
}

// Entry is one <url> element.
type Entry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// URLSet is the root element of a sitemap document.
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNs   string   `xml:"xmlns,attr"`
	URLs    []Entry  `xml:"url"`
}

// Entries builds one Entry per URL, in input order.
func Entries(urls []string, opts Options) ([]Entry, error) {
	if !IsValidChangeFreq(opts.ChangeFreq) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChangeFreq, opts.ChangeFreq)
	}
	if !IsValidPriority(opts.Priority) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPriority, opts.Priority)
	}

	today := opts.Today
	if today.IsZero() {
		today = time.Now()
	}
	lastMod := today.Format(DateLayout)
	priority := FormatPriority(opts.Priority)

	entries := make([]Entry, 0, len(urls))
	for _, u := range urls {
		entries = append(entries, Entry{
			Loc:        u,
			LastMod:    lastMod,
			ChangeFreq: opts.ChangeFreq,
			Priority:   priority,
		})
	}
	return entries, nil
}

// Serialize renders urls as a complete sitemap document, XML declaration
// included. Locations are XML-escaped and otherwise written verbatim.
func Serialize(urls []string, opts Options) ([]byte, error) {
	entries, err := Entries(urls, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(URLSet{XMLNs: Namespace, URLs: entries}); err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// FormatPriority renders p as the shortest decimal that keeps at least one
// fractional digit: 0.8 -> "0.8", 1 -> "1.0", 0.25 -> "0.25".
func FormatPriority(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
