package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/aluiziolira/go-scrape-sales/config"
	"github.com/aluiziolira/go-scrape-sales/models"
	"github.com/aluiziolira/go-scrape-sales/notify"
	"github.com/aluiziolira/go-scrape-sales/scraper"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Base URL of the assessment site")
	flag.StringVar(&cfg.County, "county", cfg.County, "County code submitted with the search")
	flag.StringVar(&cfg.CountyName, "county-name", cfg.CountyName, "County name used in reports")
	flag.IntVar(&cfg.MaxPages, "pages", cfg.MaxPages, "Maximum result pages to walk")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Concurrent detail page fetches (1-10)")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Detail pages per batch")
	delayMs := flag.Int("delay", int(cfg.RequestDelay/time.Millisecond), "Minimum delay between detail requests (milliseconds)")
	flag.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retries for transient network errors")
	retryBackoffMs := flag.Int("retry-backoff", int(cfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(cfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	minPrice := flag.Int64("min-price", cfg.MinSalePrice, "Minimum sale price in dollars")
	flag.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for output files")
	outputFormat := flag.String("format", cfg.OutputFormat, "Output format: csv, json, or dual")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flag.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "Cron expression for recurring runs (empty runs once)")
	from := flag.String("from", "", "Range start YYYY-MM-DD (defaults to last Monday-Sunday week)")
	to := flag.String("to", "", "Range end YYYY-MM-DD")
	noEmail := flag.Bool("no-email", false, "Skip the email report")

	flag.Parse()

	cfg.RequestDelay = time.Duration(*delayMs) * time.Millisecond
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.MinSalePrice = *minPrice
	cfg.OutputFormat = strings.ToLower(*outputFormat)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	fixedRange, err := parseRange(*from, *to)
	if err != nil {
		slog.Error("invalid date range", slog.Any("error", err))
		os.Exit(1)
	}
	if fixedRange != nil && cfg.Schedule != "" {
		slog.Error("-from/-to cannot be combined with -schedule")
		os.Exit(1)
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}
	s.OnProgress(func(done, total int) {
		if done == total || done%25 == 0 {
			slog.Info("detail progress", slog.Int("done", done), slog.Int("total", total))
		}
	})

	var mailer *notify.Mailer
	if !*noEmail {
		mailer = notify.NewMailer(cfg.Mail)
		if !mailer.Enabled() {
			slog.Info("smtp not configured, email report disabled")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}
	defer func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}()

	r := &runner{cfg: cfg, scraper: s, mailer: mailer}

	if cfg.Schedule == "" {
		rng := models.PreviousWeek(time.Now())
		if fixedRange != nil {
			rng = *fixedRange
		}
		result, outputs, err := r.run(ctx, rng)
		if err != nil {
			slog.Error("run failed", slog.Any("error", err))
			stop()
			os.Exit(1)
		}
		printSummary(result, outputs)
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Schedule, func() {
		result, outputs, err := r.run(ctx, models.PreviousWeek(time.Now()))
		if err != nil {
			slog.Error("scheduled run failed", slog.Any("error", err))
			return
		}
		printSummary(result, outputs)
	}); err != nil {
		slog.Error("invalid schedule", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
	slog.Info("scheduler started", slog.String("schedule", cfg.Schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("scheduler stopped")
}

func parseRange(from, to string) (*models.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("-from and -to must be set together")
	}
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return nil, fmt.Errorf("parse -from: %w", err)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return nil, fmt.Errorf("parse -to: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("-to %s is before -from %s", to, from)
	}
	rng := models.NewDateRange(start, end)
	return &rng, nil
}

func printSummary(result *models.RunResult, outputs []string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Printf("Sales run complete: %s County, %s\n", result.County, result.Range.Label)

	fmt.Printf("  Pages walked:  %d\n", result.PageCount)
	fmt.Printf("  Stubs:         %d\n", result.StubCount)
	fmt.Printf("  Raw records:   %d\n", result.RawCount)
	fmt.Printf("  Passed:        %d\n", result.PassedCount)
	fmt.Printf("  Filtered:      %d\n", result.FilteredCount)
	fmt.Printf("  Sales:         %d\n", result.SalesCount)
	if result.FilteredCount > 0 {
		for _, reason := range models.AllFilterReasons {
			if n := result.Reasons[reason]; n > 0 {
				fmt.Printf("    %-21s %d\n", reason+":", n)
			}
		}
	}
	if len(result.Outcomes) > 0 {
		fmt.Printf("  Enrichment:    %v\n", result.Outcomes)
	}
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	for _, path := range outputs {
		fmt.Printf("  Output file:   %s\n", path)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
