package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitemapper/internal/model"
)

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(nil)
		if bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(nil, WithConcurrency(4), WithBatchLogger(discardLogger()))
		if bp.concurrency != 4 {
			t.Errorf("expected concurrency 4, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(nil, WithConcurrency(0))
		if bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
	})
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("keeps input order and isolates failures", func(t *testing.T) {
		t.Parallel()

		roots := []string{"https://a.example/", "https://b.example/", "https://c.example/"}
		var completed atomic.Int32
		factory := func(root string, _ int) (*Pipeline, error) {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&closingStep{mockStep: &mockStep{
				name: "record",
				doFunc: func(_ context.Context, report *model.CrawlReport) error {
					if root == "https://b.example/" {
						return errors.New("unreachable")
					}
					report.URLs = append(report.URLs, root)
					return nil
				},
			}})
			return p, nil
		}

		bp := NewBatchProcessor(func(root string, i int) (*Pipeline, error) {
			p, err := factory(root, i)
			if err == nil {
				p.AddStep(&closingStep{mockStep: &mockStep{name: "count", doFunc: func(context.Context, *model.CrawlReport) error {
					completed.Add(1)
					return nil
				}}})
			}
			return p, err
		}, WithConcurrency(2), WithBatchLogger(discardLogger()))

		reports, err := bp.ProcessBatch(context.Background(), roots)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) != len(roots) {
			t.Fatalf("expected %d reports, got %d", len(roots), len(reports))
		}
		for i, root := range roots {
			if reports[i].Root != root {
				t.Errorf("expected report %d for %s, got %s", i, root, reports[i].Root)
			}
		}
		if reports[1].Status() != model.StatusFailed {
			t.Errorf("expected failed status for b, got %s", reports[1].Status())
		}
		if reports[0].Status() != model.StatusSucceeded || reports[2].Status() != model.StatusSucceeded {
			t.Error("expected other roots to succeed")
		}
		if completed.Load() != 2 {
			t.Errorf("expected 2 roots to reach the last step, got %d", completed.Load())
		}
	})

	t.Run("factory error is recorded", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func(string, int) (*Pipeline, error) {
			return nil, errors.New("no browser")
		}, WithBatchLogger(discardLogger()))

		reports, err := bp.ProcessBatch(context.Background(), []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reports[0].Error == nil {
			t.Error("expected factory error on the report")
		}
	})

	t.Run("bounded concurrency", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		factory := func(string, int) (*Pipeline, error) {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *model.CrawlReport) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			}})
			return p, nil
		}

		bp := NewBatchProcessor(factory, WithConcurrency(2), WithBatchLogger(discardLogger()))
		roots := []string{"https://1.example/", "https://2.example/", "https://3.example/", "https://4.example/", "https://5.example/"}
		if _, err := bp.ProcessBatch(context.Background(), roots); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent runs, got %d", peak.Load())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var built atomic.Int32
		bp := NewBatchProcessor(func(string, int) (*Pipeline, error) {
			built.Add(1)
			return New(), nil
		}, WithBatchLogger(discardLogger()))

		reports, err := bp.ProcessBatch(ctx, []string{"https://a.example/", "https://b.example/"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if built.Load() != 0 {
			t.Errorf("expected no pipelines built, got %d", built.Load())
		}
		for _, r := range reports {
			if r.Error == nil {
				t.Errorf("expected cancellation recorded for %s", r.Root)
			}
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		reports, err := NewBatchProcessor(nil).ProcessBatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) != 0 {
			t.Errorf("expected no reports, got %d", len(reports))
		}
	})
}

func TestOutputPaths(t *testing.T) {
	t.Parallel()

	t.Run("single root uses output", func(t *testing.T) {
		t.Parallel()

		got := OutputPaths("out/site.xml", []string{"https://example.com/"})
		if got[0] != "out/site.xml" {
			t.Errorf("expected out/site.xml, got %s", got[0])
		}
	})

	t.Run("several roots get host names", func(t *testing.T) {
		t.Parallel()

		got := OutputPaths(filepath.Join("out", "sitemap.xml"), []string{
			"https://Example.com/",
			"http://localhost:8080/",
			"https://example.com/blog",
		})
		want := []string{
			filepath.Join("out", "example.com.sitemap.xml"),
			filepath.Join("out", "localhost_8080.sitemap.xml"),
			filepath.Join("out", "example.com-2.sitemap.xml"),
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("expected %s, got %s", want[i], got[i])
			}
		}
	})
}
