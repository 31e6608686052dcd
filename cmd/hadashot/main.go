package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"hadashot/pkg/assets"
	"hadashot/pkg/classify"
	"hadashot/pkg/config"
	"hadashot/pkg/content"
	"hadashot/pkg/domain"
	"hadashot/pkg/fetcher"
	"hadashot/pkg/ingest"
	"hadashot/pkg/llm"
	"hadashot/pkg/pipeline"
	"hadashot/pkg/store"
)

// Opts with all CLI options
type Opts struct {
	Config   string `long:"config" env:"CONFIG" description:"config file path (built-in defaults when omitted)"`
	Category string `short:"c" long:"category" default:"all" description:"sector to process, or all"`
	NoSave   bool   `long:"no-save" description:"skip saving to database"`
	Top      int    `long:"top" description:"print the newest N stored articles after the run"`
	Schedule string `long:"schedule" env:"SCHEDULE" description:"cron spec for repeated runs (one batch when omitted)"`
	Verbose  bool   `short:"v" long:"verbose" description:"verbose mode"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	// .env is optional, used for NEWSAPI_KEY/OPENAI_API_KEY in dev setups
	_ = godotenv.Load()

	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug || opts.Verbose)

	log.Printf("[INFO] starting hadashot version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run loads configuration, wires components and executes the pipeline,
// once or on the cron schedule. Only configuration-level failures return
// an error; degraded collaborators are reported and tolerated.
func run(ctx context.Context, opts Opts) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}

	if cfg.NewsAPI.APIKey == "" {
		return fmt.Errorf("NewsAPI key is required, set NEWSAPI_KEY or newsapi.api_key in config")
	}

	sectors, err := resolveSectors(cfg, opts.Category)
	if err != nil {
		return err
	}

	pl, st, closer, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	runOnce := func() {
		res, err := pl.Run(ctx, sectors, !opts.NoSave)
		if err != nil {
			log.Printf("[ERROR] pipeline run failed: %v", err)
			return
		}
		printSummary(res)
		if opts.Top > 0 {
			showStored(ctx, st, sectors, opts.Top)
		}
	}

	if opts.Schedule == "" {
		runOnce()
		return nil
	}

	// scheduled mode: the core still runs one batch per invocation,
	// the cron loop lives entirely in the command layer
	c := cron.New()
	if _, err := c.AddFunc(opts.Schedule, runOnce); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", opts.Schedule, err)
	}
	log.Printf("[INFO] running on schedule %q", opts.Schedule)
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		log.Print("[WARN] cron jobs did not finish in time")
	}
	return nil
}

// loadConfig reads the config file, or falls back to built-in defaults
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		log.Print("[INFO] no config file, using built-in defaults")
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// resolveSectors maps the category flag to the sector list for this run
func resolveSectors(cfg *config.Config, category string) ([]domain.Sector, error) {
	if category == "" || category == "all" {
		sectors := make([]domain.Sector, 0, len(cfg.Sectors))
		for _, name := range cfg.SectorNames() {
			sectors = append(sectors, domain.Sector(name))
		}
		return sectors, nil
	}

	if _, ok := cfg.Sector(category); !ok {
		return nil, fmt.Errorf("unknown category %q, configured: %v", category, cfg.SectorNames())
	}
	return []domain.Sector{domain.Sector(category)}, nil
}

// buildPipeline constructs all collaborators, tolerating optional ones
// failing to initialize. The store is returned separately (nil when it
// failed to open) for the post-run read surface.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, *store.Store, func(), error) {
	limiter := fetcher.NewRateLimiter(cfg.RateLimit.MinDelay, cfg.RateLimit.DailyMax)
	newsapi := fetcher.NewNewsAPIClient(cfg.NewsAPI)
	feeds := fetcher.NewFeedFetcher(cfg.NewsAPI.Timeout, cfg.Extraction.UserAgent)
	pages := fetcher.NewPageFetcher(cfg.NewsAPI.Timeout, cfg.Extraction.UserAgent)
	ingestor := ingest.New(limiter, newsapi, feeds, pages, cfg.Sectors, cfg.NewsAPI.Country)

	router := classify.NewRouter(cfg.Sectors, domain.SectorGeneral)

	params := pipeline.Params{
		Ingestor:       ingestor,
		Router:         router,
		ResolveWorkers: cfg.Assets.MaxWorkers,
	}

	if cfg.LLM.Enabled() {
		params.Summarizer = llm.NewSummarizer(cfg.LLM)
	}

	if cfg.Extraction.Enabled {
		params.Extractor = content.NewExtractor(cfg.Extraction)
	}

	if resolver, err := assets.NewResolver(cfg.Assets); err != nil {
		log.Printf("[WARN] asset resolver init failed, images kept as-is: %v", err)
	} else {
		params.Resolver = resolver
	}

	closer := func() {}
	st, err := store.New(ctx, store.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		log.Printf("[WARN] store init failed, running without persistence: %v", err)
	} else {
		params.Store = st
		closer = func() {
			if err := st.Close(); err != nil {
				log.Printf("[WARN] close store: %v", err)
			}
		}
	}

	pl, err := pipeline.New(params)
	if err != nil {
		closer()
		return nil, nil, nil, fmt.Errorf("build pipeline: %w", err)
	}
	return pl, st, closer, nil
}

// showStored prints the newest stored articles, scoped to the category when
// exactly one was requested
func showStored(ctx context.Context, st *store.Store, sectors []domain.Sector, limit int) {
	if st == nil {
		log.Print("[WARN] store unavailable, nothing to show")
		return
	}

	var articles []domain.ProcessedArticle
	var err error
	if len(sectors) == 1 {
		articles, err = st.GetByCategory(ctx, sectors[0], limit)
	} else {
		articles, err = st.GetAll(ctx, limit)
	}
	if err != nil {
		log.Printf("[ERROR] read stored articles: %v", err)
		return
	}

	fmt.Printf("\nNewest %d stored articles:\n", len(articles))
	for _, a := range articles {
		fmt.Printf("[%-11s] %s\n              %s\n", a.Category, a.Title, a.URL)
	}
}

// printSummary renders the run record the way operators read it
func printSummary(res *pipeline.RunResult) {
	fmt.Println("\n========================================")
	fmt.Println("PIPELINE SUMMARY")
	fmt.Println("========================================")
	for cat, stats := range res.Categories {
		fmt.Printf("%-15s | Raw: %3d | Processed: %3d\n", cat, stats.RawCount, stats.ProcessedCount)
	}
	fmt.Println("----------------------------------------")
	fmt.Printf("%-15s | Raw: %3d | Processed: %3d\n", "TOTAL", res.TotalRaw, res.TotalProcessed)
	fmt.Printf("Saved: %d\n", res.TotalSaved)
	fmt.Printf("Duration: %.2fs\n", res.Duration.Seconds())
	if len(res.Errors) > 0 {
		fmt.Printf("Errors: %d (see log)\n", len(res.Errors))
	}
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
