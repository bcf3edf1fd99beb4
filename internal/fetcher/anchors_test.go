package fetcher

import (
	"net/url"
	"strings"
	"testing"
)

func TestExtractAnchors(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://example.com/docs/index.html")
	if err != nil {
		t.Fatalf("failed to parse base: %v", err)
	}

	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "absolute and relative links in document order",
			html: `<html><body>
				<a href="https://other.org/">other</a>
				<a href="guide.html">guide</a>
				<a href="/about">about</a>
				<a href="../up">up</a>
			</body></html>`,
			want: []string{
				"https://other.org/",
				"https://example.com/docs/guide.html",
				"https://example.com/about",
				"https://example.com/up",
			},
		},
		{
			name: "duplicates are removed keeping the first",
			html: `<a href="/a">1</a><a href="/b">2</a><a href="/a">3</a>`,
			want: []string{"https://example.com/a", "https://example.com/b"},
		},
		{
			name: "fragments are kept",
			html: `<a href="#top">top</a><a href="/page#s1">s1</a>`,
			want: []string{"https://example.com/docs/index.html#top", "https://example.com/page#s1"},
		},
		{
			name: "anchors without href or with empty href are skipped",
			html: `<a name="x">x</a><a href="">empty</a><a href="   ">blank</a><a href="/ok">ok</a>`,
			want: []string{"https://example.com/ok"},
		},
		{
			name: "non-http schemes are returned as is",
			html: `<a href="mailto:me@example.com">mail</a><a href="javascript:void(0)">js</a>`,
			want: []string{"mailto:me@example.com", "javascript:void(0)"},
		},
		{
			name: "base element overrides the document URL",
			html: `<html><head><base href="https://cdn.example.net/root/"></head>
				<body><a href="page">p</a></body></html>`,
			want: []string{"https://cdn.example.net/root/page"},
		},
		{
			name: "no anchors yields an empty list",
			html: `<p>nothing here</p>`,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractAnchors(strings.NewReader(tt.html), base)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d links %v, got %d %v", len(tt.want), tt.want, len(got), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("link %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	got := dedupe([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
}
