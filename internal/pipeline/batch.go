package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/sitemapper/internal/model"
	"golang.org/x/sync/errgroup"
)

// Factory builds the pipeline for one root. index is the root's position
// in the batch.
type Factory func(root string, index int) (*Pipeline, error)

// BatchProcessor runs one pipeline per root with bounded concurrency.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of roots crawled at once.
// The default of 1 processes roots one after another.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. factory is called once
// per root so that no crawl state is shared between runs.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs every root and returns the reports in input order.
// A failing root does not stop the others; its error is recorded on its
// report. The returned error is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, roots []string) ([]*model.CrawlReport, error) {
	bp.logger.Debug("starting batch",
		"roots", len(roots),
		"concurrency", bp.concurrency,
	)
	started := time.Now()

	// Each goroutine writes only its own index.
	reports := make([]*model.CrawlReport, len(roots))
	for i, root := range roots {
		reports[i] = model.NewCrawlReport(root)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, root := range roots {
		g.Go(func() error {
			report := reports[i]
			if err := gctx.Err(); err != nil {
				report.SetError(err)
				report.FinishedAt = time.Now()
				return err
			}

			p, err := bp.factory(root, i)
			if err != nil {
				report.SetError(fmt.Errorf("failed to build pipeline: %w", err))
				report.FinishedAt = time.Now()
				return nil
			}
			defer func() {
				if err := p.Close(); err != nil {
					bp.logger.Warn("failed to release pipeline resources", "root", root, "error", err)
				}
			}()

			report.StartedAt = time.Now()
			if err := p.Execute(gctx, report); err != nil {
				bp.logger.Warn("run failed", "root", root, "error", err)
			}
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Debug("batch complete",
		"roots", len(roots),
		"elapsed", time.Since(started),
	)
	if err == nil {
		err = ctx.Err()
	}
	return reports, err
}

// OutputPaths returns the sitemap path of each root. A single root writes
// to output itself. Several roots write <host>.sitemap.xml in output's
// directory, numbered when two roots share a host.
func OutputPaths(output string, roots []string) []string {
	paths := make([]string, len(roots))
	if len(roots) == 1 {
		paths[0] = output
		return paths
	}

	dir := filepath.Dir(output)
	seen := make(map[string]int, len(roots))
	for i, root := range roots {
		name := hostFileName(root)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		paths[i] = filepath.Join(dir, name+".sitemap.xml")
	}
	return paths
}

// hostFileName turns the host of root into a safe file name.
func hostFileName(root string) string {
	host := root
	if u, err := url.Parse(root); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, host)
}
