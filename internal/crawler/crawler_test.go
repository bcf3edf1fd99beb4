package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/sitemapper/internal/fetcher"
)

// graphFetcher serves links from an in-memory site graph and records the
// order in which pages were fetched.
type graphFetcher struct {
	mu      sync.Mutex
	graph   map[string][]string
	fail    map[string]error
	fetched []string
	onFetch func(pageURL string)
}

func (g *graphFetcher) FetchLinks(_ context.Context, pageURL string) ([]string, error) {
	g.mu.Lock()
	g.fetched = append(g.fetched, pageURL)
	onFetch := g.onFetch
	g.mu.Unlock()

	if onFetch != nil {
		onFetch(pageURL)
	}
	if err, ok := g.fail[pageURL]; ok {
		return nil, &fetcher.FetchError{URL: pageURL, Cause: err}
	}
	return g.graph[pageURL], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCrawler(f fetcher.LinkFetcher, opts ...Option) *Crawler {
	return New(f, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func assertURLs(t *testing.T, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("expected URLs\n  %v\ngot\n  %v", want, got)
	}
}

func TestCrawlEndToEndScenarios(t *testing.T) {
	t.Parallel()

	t.Run("fragment, non-http scheme and duplicate links are excluded", func(t *testing.T) {
		t.Parallel()

		g := &graphFetcher{graph: map[string][]string{
			"http://example.com": {
				"http://example.com/a",
				"http://example.com/a#frag",
				"javascript:void(0)",
				"http://example.com/a",
			},
		}}

		result, err := newTestCrawler(g).Crawl(context.Background(), "http://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertURLs(t, result.URLs, []string{"http://example.com", "http://example.com/a"})
		if result.Fetched != 2 {
			t.Errorf("expected 2 fetches, got %d", result.Fetched)
		}
	})

	t.Run("page linking only back to the root yields the root alone", func(t *testing.T) {
		t.Parallel()

		root := "https://example.com/"
		g := &graphFetcher{graph: map[string][]string{root: {root}}}

		result, err := newTestCrawler(g).Crawl(context.Background(), root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertURLs(t, result.URLs, []string{root})
		assertURLs(t, g.fetched, []string{root})
	})

	t.Run("root without followable links yields the root alone", func(t *testing.T) {
		t.Parallel()

		root := "https://example.com/"
		g := &graphFetcher{graph: map[string][]string{
			root: {"mailto:me@example.com", "/relative", "#top", ""},
		}}

		result, err := newTestCrawler(g).Crawl(context.Background(), root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertURLs(t, result.URLs, []string{root})
	})

	t.Run("cycle between two pages visits each once and terminates", func(t *testing.T) {
		t.Parallel()

		a, b := "https://example.com/a", "https://example.com/b"
		g := &graphFetcher{graph: map[string][]string{
			a: {b},
			b: {a},
		}}

		result, err := newTestCrawler(g).Crawl(context.Background(), a)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertURLs(t, result.URLs, []string{a, b})
		assertURLs(t, g.fetched, []string{a, b})
	})
}

func TestCrawlDepthFirstOrder(t *testing.T) {
	t.Parallel()

	// root -> a, b ; a -> a1, b ; a1 -> root ; b -> c
	g := &graphFetcher{graph: map[string][]string{
		"https://x.test/":   {"https://x.test/a", "https://x.test/b"},
		"https://x.test/a":  {"https://x.test/a1", "https://x.test/b"},
		"https://x.test/a1": {"https://x.test/"},
		"https://x.test/b":  {"https://x.test/c"},
	}}

	result, err := newTestCrawler(g).Crawl(context.Background(), "https://x.test/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"https://x.test/",
		"https://x.test/a",
		"https://x.test/a1",
		"https://x.test/b",
		"https://x.test/c",
	}
	assertURLs(t, result.URLs, want)
	assertURLs(t, g.fetched, want)
}

// recursiveOrder is the textbook recursive definition of the traversal.
func recursiveOrder(graph map[string][]string, root string) []string {
	visited := []string{root}
	seen := map[string]bool{root: true}
	var expand func(string)
	expand = func(u string) {
		for _, href := range graph[u] {
			if !IsFollowable(href) || seen[href] {
				continue
			}
			seen[href] = true
			visited = append(visited, href)
			expand(href)
		}
	}
	expand(root)
	return visited
}

func TestCrawlMatchesRecursiveDefinition(t *testing.T) {
	t.Parallel()

	// A dense graph where every page links to a handful of others.
	graph := make(map[string][]string)
	const n = 40
	for i := range n {
		page := fmt.Sprintf("https://g.test/%d", i)
		for _, j := range []int{(i * 7) % n, (i + 1) % n, (i * 3) % n, 0} {
			graph[page] = append(graph[page], fmt.Sprintf("https://g.test/%d", j))
		}
	}
	root := "https://g.test/0"

	result, err := newTestCrawler(&graphFetcher{graph: graph}).Crawl(context.Background(), root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertURLs(t, result.URLs, recursiveOrder(graph, root))
}

func TestCrawlDeepChain(t *testing.T) {
	t.Parallel()

	graph := make(map[string][]string)
	const depth = 20000
	for i := range depth {
		graph[fmt.Sprintf("https://chain.test/%d", i)] = []string{fmt.Sprintf("https://chain.test/%d", i+1)}
	}

	result, err := newTestCrawler(&graphFetcher{graph: graph}).Crawl(context.Background(), "https://chain.test/0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.URLs) != depth+1 {
		t.Errorf("expected %d URLs, got %d", depth+1, len(result.URLs))
	}
}

func TestCrawlInvalidRoot(t *testing.T) {
	t.Parallel()

	for _, root := range []string{"", "example.com", "/path", "https://example.com/#top", "mailto:me@example.com"} {
		t.Run(root, func(t *testing.T) {
			t.Parallel()

			g := &graphFetcher{}
			result, err := newTestCrawler(g).Crawl(context.Background(), root)
			if !errors.Is(err, ErrInvalidRoot) {
				t.Fatalf("expected ErrInvalidRoot, got %v", err)
			}
			if result != nil {
				t.Errorf("expected nil result, got %+v", result)
			}
			if len(g.fetched) != 0 {
				t.Errorf("expected no fetches, got %v", g.fetched)
			}
		})
	}
}

func TestCrawlFailurePolicy(t *testing.T) {
	t.Parallel()

	root := "https://example.com/"
	broken := "https://example.com/broken"
	after := "https://example.com/after"
	graph := map[string][]string{
		root:   {broken, after, broken},
		after:  {broken},
		broken: {"https://example.com/unreachable-through-broken"},
	}
	cause := errors.New("connection reset")

	t.Run("abort stops at the first failure", func(t *testing.T) {
		t.Parallel()

		g := &graphFetcher{graph: graph, fail: map[string]error{broken: cause}}
		result, err := newTestCrawler(g).Crawl(context.Background(), root)
		if !errors.Is(err, ErrFetchFailed) {
			t.Fatalf("expected ErrFetchFailed, got %v", err)
		}
		var fe *fetcher.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *fetcher.FetchError in chain, got %v", err)
		}
		if fe.URL != broken {
			t.Errorf("expected failing URL %q, got %q", broken, fe.URL)
		}
		if !errors.Is(err, cause) {
			t.Errorf("expected cause to be wrapped, got %v", err)
		}
		assertURLs(t, g.fetched, []string{root, broken})
		if result == nil {
			t.Fatal("expected partial result")
		}
	})

	t.Run("skip records the failure and continues", func(t *testing.T) {
		t.Parallel()

		g := &graphFetcher{graph: graph, fail: map[string]error{broken: cause}}
		result, err := newTestCrawler(g, WithFailurePolicy(FailSkip)).Crawl(context.Background(), root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertURLs(t, result.URLs, []string{root, after})
		assertURLs(t, g.fetched, []string{root, broken, after})

		if len(result.Failures) != 1 {
			t.Fatalf("expected 1 failure, got %v", result.Failures)
		}
		if result.Failures[0].URL != broken {
			t.Errorf("expected failure for %q, got %q", broken, result.Failures[0].URL)
		}
		if !strings.Contains(result.Failures[0].Error, "connection reset") {
			t.Errorf("expected failure message to carry the cause, got %q", result.Failures[0].Error)
		}
	})

	t.Run("root failure is fatal even when skipping", func(t *testing.T) {
		t.Parallel()

		g := &graphFetcher{graph: graph, fail: map[string]error{root: cause}}
		_, err := newTestCrawler(g, WithFailurePolicy(FailSkip)).Crawl(context.Background(), root)
		if !errors.Is(err, ErrFetchFailed) {
			t.Fatalf("expected ErrFetchFailed, got %v", err)
		}
	})
}

func TestCrawlContextCancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancelled before start", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		g := &graphFetcher{graph: map[string][]string{}}
		_, err := newTestCrawler(g).Crawl(ctx, "https://example.com/")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(g.fetched) != 0 {
			t.Errorf("expected no fetches, got %v", g.fetched)
		}
	})

	t.Run("cancelled between fetches", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		g := &graphFetcher{
			graph: map[string][]string{
				"https://example.com/":  {"https://example.com/a", "https://example.com/b"},
				"https://example.com/a": {},
			},
			onFetch: func(pageURL string) {
				if pageURL == "https://example.com/a" {
					cancel()
				}
			},
		}

		result, err := newTestCrawler(g, WithFailurePolicy(FailSkip)).Crawl(ctx, "https://example.com/")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		assertURLs(t, g.fetched, []string{"https://example.com/", "https://example.com/a"})
		if len(result.Failures) != 0 {
			t.Errorf("expected cancellation not to be recorded as failure, got %v", result.Failures)
		}
	})
}

func TestCrawlScope(t *testing.T) {
	t.Parallel()

	root := "https://www.example.com/"
	graph := map[string][]string{
		root: {
			"https://www.example.com/a",
			"https://docs.example.com/",
			"https://other.org/",
			"https://cdn.example.net/lib",
		},
	}

	tests := []struct {
		name string
		opts []Option
		want []string
	}{
		{
			name: "any follows off-domain links",
			opts: nil,
			want: []string{root, "https://www.example.com/a", "https://docs.example.com/", "https://other.org/", "https://cdn.example.net/lib"},
		},
		{
			name: "host stays on the root host",
			opts: []Option{WithScope(ScopeHost)},
			want: []string{root, "https://www.example.com/a"},
		},
		{
			name: "site stays on the registrable domain",
			opts: []Option{WithScope(ScopeSite)},
			want: []string{root, "https://www.example.com/a", "https://docs.example.com/"},
		},
		{
			name: "allowed hosts extend the host scope",
			opts: []Option{WithScope(ScopeHost), WithAllowedHosts("CDN.example.net")},
			want: []string{root, "https://www.example.com/a", "https://cdn.example.net/lib"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := newTestCrawler(&graphFetcher{graph: graph}, tt.opts...).Crawl(context.Background(), root)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertURLs(t, result.URLs, tt.want)
		})
	}
}

func TestCrawlNormalize(t *testing.T) {
	t.Parallel()

	graph := map[string][]string{
		"http://example.com/": {
			"HTTP://EXAMPLE.com:80/docs/",
			"http://example.com/docs",
			"http://example.com",
		},
	}

	t.Run("off by default", func(t *testing.T) {
		t.Parallel()

		result, err := newTestCrawler(&graphFetcher{graph: graph}).Crawl(context.Background(), "http://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.URLs) != 4 {
			t.Errorf("expected 4 distinct spellings, got %v", result.URLs)
		}
	})

	t.Run("merges equivalent spellings when enabled", func(t *testing.T) {
		t.Parallel()

		result, err := newTestCrawler(&graphFetcher{graph: graph}, WithNormalize(true)).Crawl(context.Background(), "http://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertURLs(t, result.URLs, []string{"http://example.com/", "http://example.com/docs"})
	})
}

func TestCrawlPathPatterns(t *testing.T) {
	t.Parallel()

	root := "https://example.com/"
	graph := map[string][]string{
		root: {
			"https://example.com/docs/intro",
			"https://example.com/admin/users",
			"https://example.com/files/report.pdf",
			"https://example.com/blog/post",
		},
	}

	t.Run("ignore patterns skip matching paths", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(&graphFetcher{graph: graph}, WithIgnorePatterns([]string{"/admin/*", "*.pdf"}))
		result, err := c.Crawl(context.Background(), root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertURLs(t, result.URLs, []string{root, "https://example.com/docs/intro", "https://example.com/blog/post"})
	})

	t.Run("follow patterns keep only matching paths", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(&graphFetcher{graph: graph}, WithFollowPatterns([]string{"/docs/*"}))
		result, err := c.Crawl(context.Background(), root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertURLs(t, result.URLs, []string{root, "https://example.com/docs/intro"})
	})
}

func TestCrawlerConcurrentCrawls(t *testing.T) {
	t.Parallel()

	graph := map[string][]string{
		"https://a.test/": {"https://a.test/1"},
		"https://b.test/": {"https://b.test/1", "https://b.test/2"},
	}
	c := newTestCrawler(&graphFetcher{graph: graph})

	var wg sync.WaitGroup
	results := make([][]string, 2)
	for i, root := range []string{"https://a.test/", "https://b.test/"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := c.Crawl(context.Background(), root)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = r.URLs
		}()
	}
	wg.Wait()

	assertURLs(t, results[0], []string{"https://a.test/", "https://a.test/1"})
	assertURLs(t, results[1], []string{"https://b.test/", "https://b.test/1", "https://b.test/2"})
}

func TestCrawlWithHTTPFetcher(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<a href="/about">about</a><a href="/blog/">blog</a><a href="#main">skip</a>`)
		case "/about":
			fmt.Fprint(w, `<a href="/">home</a>`)
		case "/blog/":
			fmt.Fprint(w, `<a href="first">first</a><a href="https://elsewhere.invalid/">out</a>`)
		case "/blog/first":
			fmt.Fprint(w, `<a href="/blog/">back</a>`)
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestCrawler(fetcher.NewHTTPFetcher(), WithScope(ScopeHost))
	result, err := c.Crawl(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		server.URL + "/",
		server.URL + "/about",
		server.URL + "/blog/",
		server.URL + "/blog/first",
	}
	assertURLs(t, result.URLs, want)
}

func TestParseFailurePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{"abort", FailAbort, false},
		{"", FailAbort, false},
		{"SKIP", FailSkip, false},
		{"retry", FailAbort, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseFailurePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if tt.wantErr && !errors.Is(err, ErrUnknownFailurePolicy) {
				t.Errorf("expected ErrUnknownFailurePolicy, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if FailSkip.String() != "skip" || FailAbort.String() != "abort" {
		t.Errorf("unexpected String() values: %q %q", FailAbort, FailSkip)
	}
}
