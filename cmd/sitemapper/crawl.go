package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/fetcher"
	"github.com/nao1215/sitemapper/internal/history"
	"github.com/nao1215/sitemapper/internal/pipeline"
	"github.com/nao1215/sitemapper/internal/report"
	"github.com/nao1215/sitemapper/internal/sitemap"
	"github.com/nao1215/sitemapper/internal/tor"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <root-url>...",
		Short: "Crawl a website and write its sitemap",
		Long: `Crawl starts at each root URL, follows links depth-first and writes every
discovered page to an XML sitemap.

Links are resolved against their page the way a browser does. A link is
followed when it has a scheme and a host and contains no '#', so in-page
anchors are never followed. Each page is fetched once per run.

Examples:
  # Crawl a site rendered by JavaScript (default: headless Chrome)
  sitemapper crawl https://example.com/

  # Crawl a static site without a browser, staying on its host
  sitemapper crawl --fetcher http --scope host https://example.com/

  # Keep going when a page cannot be fetched
  sitemapper crawl --on-error skip -o public/sitemap.xml https://example.com/

  # Crawl an onion service through the embedded Tor daemon
  sitemapper crawl --tor --fetcher http http://exampleonion.onion/

  # Crawl several sites, two at a time; each gets <host>.sitemap.xml
  sitemapper crawl -b 2 -o out/sitemap.xml https://a.example/ https://b.example/

Configuration file (.sitemapper) example:
  defaults:
    changefreq: weekly
  sites:
    example.com:
      priority: 0.5
      cookie: "session_id=abc123"
      ignorePatterns:
        - "/admin/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Sitemap flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputPath,
		"Sitemap output path")
	cmd.Flags().Bool("append", false,
		"Append to the output file instead of replacing it")
	cmd.Flags().String("changefreq", config.DefaultChangeFreq,
		"<changefreq> of every entry (always, hourly, daily, weekly, monthly, yearly, never)")
	cmd.Flags().Float64("priority", config.DefaultPriority,
		"<priority> of every entry, between 0.0 and 1.0")

	// Fetcher flags
	cmd.Flags().String("fetcher", config.FetcherBrowser,
		"How pages are loaded: browser (headless Chrome) or http")
	cmd.Flags().Duration("settle-delay", config.DefaultSettleDelay,
		"Wait after page load before reading links (browser fetcher)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().String("cookie", "",
		"Cookie sent with every request (e.g. \"session=abc\")")
	cmd.Flags().StringArray("header", nil,
		"Extra request header in \"Name: value\" form (repeatable)")
	cmd.Flags().String("chrome-path", "",
		"Chrome or Chromium executable (default: search the usual locations)")
	cmd.Flags().String("chrome-profile", "",
		"Chrome profile directory kept between runs (default: fresh temporary profile)")
	cmd.Flags().Bool("no-headless", false,
		"Show the browser window")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes read by the http fetcher")

	// Traversal flags
	cmd.Flags().String("on-error", config.FailureAbort,
		"What to do when a page cannot be fetched: abort or skip")
	cmd.Flags().String("scope", config.ScopeAny,
		"Which links are followed: any, host or site")
	cmd.Flags().StringArray("allow-host", nil,
		"Extra host treated as in scope (repeatable)")
	cmd.Flags().StringArray("ignore", nil,
		"Path pattern that is never crawled (repeatable)")
	cmd.Flags().StringArray("follow", nil,
		"Only crawl paths matching this pattern (repeatable)")
	cmd.Flags().Bool("normalize", false,
		"Treat trivially different spellings of a URL as one page")

	// Proxy flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g. 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of root URLs crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemapper in current or home directory)")

	// Report flags
	cmd.Flags().String("report", config.ReportText,
		"Run report format: text, json or markdown")
	cmd.Flags().String("report-file", "",
		"Also write the run report to this file")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	for _, root := range cfg.Targets {
		if !crawler.IsFollowable(root) {
			return fmt.Errorf("%w: %q", crawler.ErrInvalidRoot, root)
		}
	}

	roots, err := rootConfigs(cfg, cmd.Flags().Changed)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, roots, logger)
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.OutputPath, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.AppendOutput, err = flags.GetBool("append"); err != nil {
		return nil, err
	}
	if cfg.ChangeFreq, err = flags.GetString("changefreq"); err != nil {
		return nil, err
	}
	if cfg.Priority, err = flags.GetFloat64("priority"); err != nil {
		return nil, err
	}
	if cfg.Fetcher, err = flags.GetString("fetcher"); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = flags.GetDuration("settle-delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
		return nil, err
	}

	rawHeaders, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	if cfg.Headers, err = parseHeaders(rawHeaders); err != nil {
		return nil, err
	}

	if cfg.ChromePath, err = flags.GetString("chrome-path"); err != nil {
		return nil, err
	}
	if cfg.ChromeProfileDir, err = flags.GetString("chrome-profile"); err != nil {
		return nil, err
	}
	if cfg.NoHeadless, err = flags.GetBool("no-headless"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.FailurePolicy, err = flags.GetString("on-error"); err != nil {
		return nil, err
	}
	if cfg.Scope, err = flags.GetString("scope"); err != nil {
		return nil, err
	}
	if cfg.AllowedHosts, err = flags.GetStringArray("allow-host"); err != nil {
		return nil, err
	}
	if cfg.IgnorePatterns, err = flags.GetStringArray("ignore"); err != nil {
		return nil, err
	}
	if cfg.FollowPatterns, err = flags.GetStringArray("follow"); err != nil {
		return nil, err
	}
	if cfg.Normalize, err = flags.GetBool("normalize"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ReportFormat, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.Targets = args

	return cfg, nil
}

// parseHeaders turns repeated "Name: value" flags into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// rootConfigs returns one configuration per root with the matching site
// settings from the configuration file applied. explicit reports flags set
// on the command line, which keep precedence over the file.
func rootConfigs(cfg *config.Config, explicit func(string) bool) ([]*config.Config, error) {
	out := make([]*config.Config, len(cfg.Targets))
	for i, root := range cfg.Targets {
		rc := *cfg
		rc.Targets = []string{root}
		if cfg.ChromeProfileDir != "" && len(cfg.Targets) > 1 {
			rc.ChromeProfileDir = filepath.Join(cfg.ChromeProfileDir, strconv.Itoa(i))
		}
		if cfg.SiteConfigs != nil {
			rc.ApplySite(cfg.SiteConfigs.GetSiteConfig(root), explicit)
		}
		if err := rc.Validate(); err != nil {
			return nil, fmt.Errorf("configuration error for %s: %w", root, err)
		}
		out[i] = &rc
	}
	return out, nil
}

// runCrawl executes the crawl of every root and writes the run reports to
// stdout. Progress messages go to progress.
func runCrawl(ctx context.Context, stdout, progress io.Writer, cfg *config.Config, roots []*config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"roots", cfg.Targets,
		"fetcher", cfg.Fetcher,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	writer, closeWriter, err := newReportWriter(cfg, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeWriter(); err != nil {
			logger.Error("failed to close report file", "error", err)
		}
	}()

	var db *history.DB
	if cfg.SaveToDB {
		db, err = history.Open(cfg.DBDir, history.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		logger.Info("history database opened", "path", db.Path())
	}

	proxyAddr, stopProxy, err := setupProxy(ctx, cfg, progress, logger)
	if err != nil {
		return err
	}
	defer stopProxy()

	outputs := pipeline.OutputPaths(cfg.OutputPath, cfg.Targets)
	factory := func(root string, i int) (*pipeline.Pipeline, error) {
		rc := roots[i]
		f, err := newFetcher(rc, proxyAddr, logger)
		if err != nil {
			return nil, err
		}
		configOpts, err := pipelineOptions(rc, outputs[i])
		if err != nil {
			return nil, err
		}
		if db != nil {
			configOpts = append(configOpts, pipeline.WithPipelineHistory(db))
		}

		fmt.Fprintf(progress, "Crawling %s...\n", root)
		return pipeline.DefaultPipeline(f, []pipeline.Option{pipeline.WithLogger(logger)}, configOpts...), nil
	}

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	started := time.Now()
	reports, batchErr := bp.ProcessBatch(ctx, cfg.Targets)
	if len(reports) > 1 {
		fmt.Fprintf(progress, "Crawled %d roots in %s\n\n", len(reports), time.Since(started).Round(time.Millisecond))
	}

	var errs []error
	for _, r := range reports {
		if _, err := writer.Write(r); err != nil {
			logger.Error("failed to write report", "root", r.Root, "error", err)
		}
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Root, r.Error))
		}
	}
	if len(errs) == 0 && batchErr != nil {
		errs = append(errs, batchErr)
	}
	return errors.Join(errs...)
}

// pipelineOptions translates a root's configuration into pipeline options.
func pipelineOptions(rc *config.Config, output string) ([]pipeline.DefaultPipelineOption, error) {
	policy, err := crawler.ParseFailurePolicy(rc.FailurePolicy)
	if err != nil {
		return nil, err
	}
	scope, err := crawler.ParseScope(rc.Scope)
	if err != nil {
		return nil, err
	}

	mode := sitemap.ModeOverwrite
	if rc.AppendOutput {
		mode = sitemap.ModeAppend
	}

	return []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineOutput(output, mode),
		pipeline.WithPipelineEntry(sitemap.Options{
			ChangeFreq: rc.ChangeFreq,
			Priority:   rc.Priority,
		}),
		pipeline.WithPipelineCrawlerOptions(
			crawler.WithFailurePolicy(policy),
			crawler.WithScope(scope),
			crawler.WithAllowedHosts(rc.AllowedHosts...),
			crawler.WithNormalize(rc.Normalize),
			crawler.WithIgnorePatterns(rc.IgnorePatterns),
			crawler.WithFollowPatterns(rc.FollowPatterns),
		),
	}, nil
}

// newFetcher builds the page fetcher for one root.
func newFetcher(rc *config.Config, proxyAddr string, logger *slog.Logger) (fetcher.LinkFetcher, error) {
	opts := []fetcher.Option{
		fetcher.WithTimeout(rc.Timeout),
		fetcher.WithCookie(rc.Cookie),
		fetcher.WithHeaders(rc.Headers),
		fetcher.WithLogger(logger),
	}

	var client *tor.Client
	if proxyAddr != "" {
		var err error
		client, err = tor.NewClient(proxyAddr, rc.Timeout,
			tor.WithInsecureTLS(isOnionRoot(rc.Targets[0])),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy client: %w", err)
		}
	}

	switch rc.Fetcher {
	case config.FetcherHTTP:
		opts = append(opts,
			fetcher.WithUserAgent(rc.UserAgent),
			fetcher.WithMaxBodySize(rc.MaxBodySize),
		)
		if client != nil {
			opts = append(opts, fetcher.WithHTTPClient(client.NewHTTPClient()))
		}
		return fetcher.NewHTTPFetcher(opts...), nil
	default:
		// Chrome keeps its own User-Agent unless one was configured.
		if rc.UserAgent != config.DefaultUserAgent {
			opts = append(opts, fetcher.WithUserAgent(rc.UserAgent))
		}
		opts = append(opts,
			fetcher.WithSettleDelay(rc.SettleDelay),
			fetcher.WithExecPath(rc.ChromePath),
			fetcher.WithHeadless(!rc.NoHeadless),
			fetcher.WithUserDataDir(rc.ChromeProfileDir),
		)
		if client != nil {
			opts = append(opts, fetcher.WithProxyServer(client.ProxyURL()))
		}
		return fetcher.NewBrowserFetcher(opts...), nil
	}
}

// isOnionRoot reports whether root is a Tor hidden service. TLS
// certificates of hidden services are not verified.
func isOnionRoot(root string) bool {
	u, err := url.Parse(root)
	if err != nil {
		return false
	}
	return tor.IsOnionHost(u.Hostname())
}

// setupProxy verifies the configured SOCKS5 proxy or starts the embedded
// Tor daemon. It returns the proxy address, empty for direct connections,
// and a function releasing the daemon.
func setupProxy(ctx context.Context, cfg *config.Config, progress io.Writer, logger *slog.Logger) (string, func(), error) {
	noop := func() {}

	switch {
	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return "", noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if err := client.CheckConnection(ctx).Error(); err != nil {
			return "", noop, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				err, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return cfg.ProxyAddress, noop, nil

	case cfg.UseTor:
		return startEmbeddedTor(ctx, cfg, progress, logger)

	default:
		return "", noop, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago and checks
// its SOCKS5 port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, progress io.Writer, logger *slog.Logger) (string, func(), error) {
	fmt.Fprintln(progress, "Starting embedded Tor daemon...")
	fmt.Fprintf(progress, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return "", nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		stop()
		return "", nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if err := client.CheckConnection(ctx).Error(); err != nil {
		stop()
		return "", nil, fmt.Errorf("embedded Tor proxy check failed: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)
	fmt.Fprintf(progress, "SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())

	return client.ProxyAddress(), stop, nil
}

// newReportWriter returns the writer for the run reports and a function
// closing the report file, if any.
func newReportWriter(cfg *config.Config, stdout io.Writer) (report.Writer, func() error, error) {
	noop := func() error { return nil }

	w, err := report.New(cfg.ReportFormat, stdout, getVersion())
	if err != nil {
		return nil, noop, err
	}
	if cfg.ReportFile == "" {
		return w, noop, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, noop, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	// URLs in the report may carry session tokens.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create report file: %w", err)
	}

	fw, err := report.New(cfg.ReportFormat, f, getVersion())
	if err != nil {
		_ = f.Close()
		return nil, noop, err
	}
	return report.NewMultiWriter(w, fw), f.Close, nil
}
