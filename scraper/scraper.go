package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-sales/config"
	"github.com/aluiziolira/go-scrape-sales/models"
	"github.com/aluiziolira/go-scrape-sales/parser"
)

// Scraper runs the search walk and detail enrichment for one county.
type Scraper struct {
	cfg       *config.Config
	searchURL string
	transport http.RoundTripper
	parser    parser.DetailParser
	progress  ProgressFunc
	Metrics   *Metrics
}

// Extraction is the output of one Extract call.
type Extraction struct {
	Records      []models.RawParcelRecord
	Walk         *WalkResult
	Enrichment   *EnrichResult
	RetryCount   int
	ErrorsByType map[string]int
	StartTime    time.Time
	EndTime      time.Time
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	search, err := url.Parse(cfg.SearchPath)
	if err != nil {
		return nil, fmt.Errorf("parse search path: %w", err)
	}

	return &Scraper{
		cfg:       cfg,
		searchURL: base.ResolveReference(search).String(),
		transport: NewTransport(cfg.Timeout),
		parser:    parser.HTMLDetailParser{},
		Metrics:   NewMetrics(),
	}, nil
}

// OnProgress registers fn to be called as detail pages complete.
func (s *Scraper) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

// Extract walks the search results for rng and enriches every parcel from
// its detail page. The session is closed before Extract returns.
func (s *Scraper) Extract(ctx context.Context, rng models.DateRange) (*Extraction, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ext := &Extraction{StartTime: time.Now()}

	session, err := OpenSession(s.cfg, s.transport, s.Metrics)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	retry := newRetryPolicy(s.cfg, s.Metrics)
	defer func() {
		ext.RetryCount = retry.TotalRetries()
		ext.ErrorsByType = retry.ErrorsByType()
		ext.EndTime = time.Now()
	}()

	slog.Info("starting search walk",
		slog.String("county", s.cfg.County),
		slog.String("range", rng.String()),
		slog.String("url", s.searchURL),
	)
	walker := newWalker(session, retry, s.Metrics, s.searchURL, s.cfg.MaxPages)
	walk, err := walker.Walk(ctx, s.cfg.County, rng)
	if err != nil {
		return nil, fmt.Errorf("search walk: %w", err)
	}
	ext.Walk = walk
	if len(walk.Stubs) == 0 {
		return ext, nil
	}

	enricher := newEnricher(detailClient{session: session, parser: s.parser}, retry, s.Metrics, EnricherOptions{
		Concurrency: s.cfg.Concurrency,
		BatchSize:   s.cfg.BatchSize,
		Limiter:     newLimiter(s.cfg.RequestDelay),
		Progress:    s.progress,
	})
	enriched, err := enricher.Enrich(ctx, walk.Stubs, walk.DetailURLs, rng)
	if err != nil {
		return nil, fmt.Errorf("detail enrichment: %w", err)
	}
	ext.Enrichment = enriched
	ext.Records = enriched.Records
	return ext, nil
}

// Fill copies extraction counts into result.
func (e *Extraction) Fill(result *models.RunResult) {
	if e == nil || result == nil {
		return
	}
	if e.Walk != nil {
		result.PageCount = e.Walk.Pages
		result.StubCount = len(e.Walk.Stubs)
	}
	if e.Enrichment != nil {
		result.Outcomes = e.Enrichment.OutcomeCounts()
	}
	result.RawCount = len(e.Records)
	result.RetryCount = e.RetryCount
	result.ErrorsByType = e.ErrorsByType
}

// newLimiter spaces request starts at least delay apart.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
