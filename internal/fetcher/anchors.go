package fetcher

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractAnchors parses an HTML document and returns the href of every <a>
// element resolved against base, deduplicated, in document order.
//
// A <base href> element in the document overrides base, as it does in a
// browser. Fragments are kept so that the result matches what a browser
// reports for the anchor's href property.
func ExtractAnchors(r io.Reader, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok && base != nil {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		links = append(links, u.String())
	})

	return dedupe(links), nil
}
