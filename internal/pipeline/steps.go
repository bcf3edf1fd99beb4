package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/fetcher"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/sitemap"
)

// Step names.
const (
	StepCrawl   = "crawl"
	StepSitemap = "sitemap"
	StepHistory = "history"
)

// CrawlStep discovers the URLs reachable from the report's root.
type CrawlStep struct {
	fetcher fetcher.LinkFetcher
	crawler *crawler.Crawler
	logger  *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*crawlStepConfig)

type crawlStepConfig struct {
	crawlerOpts []crawler.Option
	logger      *slog.Logger
}

// WithCrawlerOptions passes options to the underlying crawler.
func WithCrawlerOptions(opts ...crawler.Option) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.crawlerOpts = append(c.crawlerOpts, opts...)
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(c *crawlStepConfig) {
		c.logger = logger
	}
}

// NewCrawlStep creates a crawl step that loads pages with f.
func NewCrawlStep(f fetcher.LinkFetcher, opts ...CrawlStepOption) *CrawlStep {
	cfg := &crawlStepConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	crawlerOpts := append([]crawler.Option{crawler.WithLogger(cfg.logger)}, cfg.crawlerOpts...)
	return &CrawlStep{
		fetcher: f,
		crawler: crawler.New(f, crawlerOpts...),
		logger:  cfg.logger,
	}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do crawls report.Root. Whatever was discovered before an error is kept
// on the report.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	result, err := s.crawler.Crawl(ctx, report.Root)
	if result != nil {
		report.URLs = result.URLs
		report.Failures = append(report.Failures, result.Failures...)
		report.PagesFetched = result.Fetched
	}
	if err != nil {
		return err
	}

	s.logger.Info("crawl finished",
		"root", report.Root,
		"urls", len(report.URLs),
		"skipped", len(report.Failures),
	)
	return nil
}

// Close closes the fetcher when it holds resources, such as a browser.
func (s *CrawlStep) Close() error {
	if c, ok := s.fetcher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// SitemapStep serializes the discovered URLs and writes the document.
type SitemapStep struct {
	path   string
	mode   sitemap.WriteMode
	opts   sitemap.Options
	logger *slog.Logger
}

// SitemapStepOption configures a SitemapStep.
type SitemapStepOption func(*SitemapStep)

// WithWriteMode selects overwrite or append.
func WithWriteMode(mode sitemap.WriteMode) SitemapStepOption {
	return func(s *SitemapStep) {
		s.mode = mode
	}
}

// WithEntryOptions sets the changefreq, priority and date of every entry.
func WithEntryOptions(opts sitemap.Options) SitemapStepOption {
	return func(s *SitemapStep) {
		s.opts = opts
	}
}

// WithSitemapLogger sets a custom logger for the sitemap step.
func WithSitemapLogger(logger *slog.Logger) SitemapStepOption {
	return func(s *SitemapStep) {
		s.logger = logger
	}
}

// NewSitemapStep creates a step writing the sitemap to path.
func NewSitemapStep(path string, opts ...SitemapStepOption) *SitemapStep {
	s := &SitemapStep{
		path: path,
		mode: sitemap.ModeOverwrite,
		opts: sitemap.Options{
			ChangeFreq: config.DefaultChangeFreq,
			Priority:   config.DefaultPriority,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SitemapStep) Name() string {
	return StepSitemap
}

// Do writes the document for report.URLs.
func (s *SitemapStep) Do(_ context.Context, report *model.CrawlReport) error {
	doc, err := sitemap.Serialize(report.URLs, s.opts)
	if err != nil {
		return fmt.Errorf("failed to serialize sitemap: %w", err)
	}

	n, err := sitemap.WriteFile(s.path, doc, s.mode)
	if err != nil {
		return err
	}

	report.SitemapPath = s.path
	report.SitemapBytes = n
	s.logger.Info("sitemap written",
		"path", s.path,
		"entries", len(report.URLs),
		"bytes", n,
		"mode", s.mode.String(),
	)
	return nil
}

// RunStore persists finished runs. *history.DB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// HistoryStep records the run in the history database.
type HistoryStep struct {
	store  RunStore
	logger *slog.Logger
}

// NewHistoryStep creates a step saving runs to store.
func NewHistoryStep(store RunStore, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return StepHistory
}

// Do saves the report.
func (s *HistoryStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if report.FinishedAt.IsZero() {
		report.FinishedAt = time.Now()
	}
	id, err := s.store.SaveRun(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to save run history: %w", err)
	}
	s.logger.Debug("run saved", "root", report.Root, "id", id)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// OutputPath is where the sitemap is written.
	OutputPath string

	// Mode selects overwrite or append.
	Mode sitemap.WriteMode

	// Entry holds the changefreq, priority and date of every entry.
	Entry sitemap.Options

	// CrawlerOptions configure the traversal (scope, failure policy, ...).
	CrawlerOptions []crawler.Option

	// History, when set, records the run.
	History RunStore
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineOutput sets the sitemap path and write mode.
func WithPipelineOutput(path string, mode sitemap.WriteMode) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.OutputPath = path
		c.Mode = mode
	}
}

// WithPipelineEntry sets the entry metadata.
func WithPipelineEntry(opts sitemap.Options) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Entry = opts
	}
}

// WithPipelineCrawlerOptions adds crawler options.
func WithPipelineCrawlerOptions(opts ...crawler.Option) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CrawlerOptions = append(c.CrawlerOptions, opts...)
	}
}

// WithPipelineHistory records runs in store.
func WithPipelineHistory(store RunStore) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.History = store
	}
}

// DefaultPipeline builds the crawl, sitemap and (optional) history steps.
// The first variadic parameter accepts pipeline options (WithLogger, etc).
func DefaultPipeline(f fetcher.LinkFetcher, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		OutputPath: config.DefaultOutputPath,
		Mode:       sitemap.ModeOverwrite,
		Entry: sitemap.Options{
			ChangeFreq: config.DefaultChangeFreq,
			Priority:   config.DefaultPriority,
		},
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddSteps(
		NewCrawlStep(f,
			WithCrawlLogger(p.logger),
			WithCrawlerOptions(cfg.CrawlerOptions...),
		),
		NewSitemapStep(cfg.OutputPath,
			WithWriteMode(cfg.Mode),
			WithEntryOptions(cfg.Entry),
			WithSitemapLogger(p.logger),
		),
	)
	if cfg.History != nil {
		p.AddStep(NewHistoryStep(cfg.History, p.logger))
	}
	return p
}
