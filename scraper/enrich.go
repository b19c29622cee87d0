package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-sales/models"
	"github.com/aluiziolira/go-scrape-sales/parser"
)

// Outcome is the enrichment result for one parcel.
type Outcome int

const (
	// OutcomeEnriched means at least one in-range sale was read from the detail page.
	OutcomeEnriched Outcome = iota
	// OutcomeNoSalesInRange means the detail page lists sales, none inside the range.
	OutcomeNoSalesInRange
	// OutcomeFallbackNoSales means the detail page has no sales history.
	OutcomeFallbackNoSales
	// OutcomeFallbackFetchFailed means the detail page could not be fetched or parsed.
	OutcomeFallbackFetchFailed
)

// AllOutcomes lists outcomes in report order.
var AllOutcomes = []Outcome{
	OutcomeEnriched,
	OutcomeNoSalesInRange,
	OutcomeFallbackNoSales,
	OutcomeFallbackFetchFailed,
}

func (o Outcome) String() string {
	switch o {
	case OutcomeEnriched:
		return "enriched"
	case OutcomeNoSalesInRange:
		return "no_sales_in_range"
	case OutcomeFallbackNoSales:
		return "fallback_no_sales"
	case OutcomeFallbackFetchFailed:
		return "fallback_fetch_failed"
	default:
		return "unknown"
	}
}

// DetailFetcher loads the detail page for one parcel.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, url string) (*models.ParcelDetails, error)
}

// ProgressFunc is called after each detail fetch completes.
type ProgressFunc func(done, total int)

// ParcelResult records what enrichment did with one parcel.
type ParcelResult struct {
	ParcelID string
	URL      string
	Outcome  Outcome
	Records  []models.RawParcelRecord
	Err      error
}

// EnrichResult is the output of Enrich.
type EnrichResult struct {
	// Records is the final record set: the emitted records, or the original
	// stubs when enrichment produced none.
	Records   []models.RawParcelRecord
	Parcels   []ParcelResult
	Outcomes  map[Outcome]int
	UsedStubs bool
}

// OutcomeCounts returns outcome counts keyed by label.
func (r *EnrichResult) OutcomeCounts() map[string]int {
	counts := make(map[string]int, len(AllOutcomes))
	for _, o := range AllOutcomes {
		counts[o.String()] = r.Outcomes[o]
	}
	return counts
}

// Enricher fetches each parcel's detail page and replaces its stubs with
// records built from the in-range sales.
type Enricher struct {
	fetcher     DetailFetcher
	retry       *retryPolicy
	limiter     *rate.Limiter
	metrics     *Metrics
	concurrency int
	batchSize   int
	progress    ProgressFunc
}

// EnricherOptions configures an Enricher.
type EnricherOptions struct {
	Concurrency int
	BatchSize   int
	Limiter     *rate.Limiter
	Progress    ProgressFunc
}

func newEnricher(fetcher DetailFetcher, retry *retryPolicy, metrics *Metrics, opts EnricherOptions) *Enricher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = opts.Concurrency
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Enricher{
		fetcher:     fetcher,
		retry:       retry,
		limiter:     opts.Limiter,
		metrics:     metrics,
		concurrency: opts.Concurrency,
		batchSize:   opts.BatchSize,
		progress:    opts.Progress,
	}
}

type parcelGroup struct {
	id    string
	url   string
	stubs []models.RawParcelRecord
}

type fetchResult struct {
	details *models.ParcelDetails
	err     error
}

// Enrich fetches detail pages for the parcels in stubs. A parcel whose fetch
// fails keeps its stubs. Only context cancellation aborts the run.
func (e *Enricher) Enrich(ctx context.Context, stubs []models.RawParcelRecord, detailURLs map[string]string, rng models.DateRange) (*EnrichResult, error) {
	groups := groupStubs(stubs, detailURLs)

	var urls []string
	queued := make(map[string]bool)
	for _, g := range groups {
		if g.url == "" || queued[g.url] {
			continue
		}
		queued[g.url] = true
		urls = append(urls, g.url)
	}

	fetched, err := e.fetchAll(ctx, urls)
	if err != nil {
		return nil, err
	}

	result := &EnrichResult{Outcomes: make(map[Outcome]int, len(AllOutcomes))}
	for _, g := range groups {
		pr := reconcile(g, fetched, rng)
		result.Parcels = append(result.Parcels, pr)
		result.Outcomes[pr.Outcome]++
		result.Records = append(result.Records, pr.Records...)
		e.metrics.IncOutcome(pr.Outcome)

		if pr.Err != nil {
			slog.Warn("detail enrichment failed, keeping stub",
				slog.String("parcel", g.id),
				slog.String("url", g.url),
				slog.Any("error", pr.Err),
			)
		}
	}

	if len(result.Records) == 0 && len(stubs) > 0 {
		slog.Warn("enrichment produced no records, falling back to search stubs", slog.Int("stubs", len(stubs)))
		result.Records = append([]models.RawParcelRecord(nil), stubs...)
		result.UsedStubs = true
	}

	e.metrics.AddRecords("enriched", len(result.Records))
	slog.Info("detail enrichment complete",
		slog.Int("parcels", len(groups)),
		slog.Int("records", len(result.Records)),
		slog.Int("enriched", result.Outcomes[OutcomeEnriched]),
		slog.Int("no_sales_in_range", result.Outcomes[OutcomeNoSalesInRange]),
		slog.Int("fallback_no_sales", result.Outcomes[OutcomeFallbackNoSales]),
		slog.Int("fallback_fetch_failed", result.Outcomes[OutcomeFallbackFetchFailed]),
	)
	return result, nil
}

// fetchAll fetches urls in batches, at most concurrency at a time.
func (e *Enricher) fetchAll(ctx context.Context, urls []string) (map[string]fetchResult, error) {
	fetched := make(map[string]fetchResult, len(urls))
	var (
		mu   sync.Mutex
		done int
	)
	total := len(urls)

	for start := 0; start < total; start += e.batchSize {
		end := start + e.batchSize
		if end > total {
			end = total
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.concurrency)
		for _, u := range urls[start:end] {
			g.Go(func() error {
				details, err := e.fetch(gctx, u)
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}

				mu.Lock()
				fetched[u] = fetchResult{details: details, err: err}
				done++
				n := done
				mu.Unlock()

				if e.progress != nil {
					e.progress(n, total)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		slog.Debug("detail batch complete", slog.Int("done", end), slog.Int("total", total))
	}
	return fetched, nil
}

func (e *Enricher) fetch(ctx context.Context, url string) (*models.ParcelDetails, error) {
	var details *models.ParcelDetails
	err := e.retry.Do(ctx, "detail", func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		d, err := e.fetcher.FetchDetails(ctx, url)
		if err != nil {
			return err
		}
		details = d
		return nil
	})
	return details, err
}

func groupStubs(stubs []models.RawParcelRecord, detailURLs map[string]string) []*parcelGroup {
	var groups []*parcelGroup
	index := make(map[string]*parcelGroup)
	for _, stub := range stubs {
		id := parser.NormalizeParcelID(stub.ParcelID)
		g, ok := index[id]
		if !ok {
			g = &parcelGroup{id: id, url: detailURLs[id]}
			if g.url == "" {
				g.url = stub.SourceURL
			}
			index[id] = g
			groups = append(groups, g)
		}
		g.stubs = append(g.stubs, stub)
	}
	return groups
}

func reconcile(g *parcelGroup, fetched map[string]fetchResult, rng models.DateRange) ParcelResult {
	pr := ParcelResult{ParcelID: g.id, URL: g.url}

	if g.url == "" {
		pr.Outcome = OutcomeFallbackFetchFailed
		pr.Err = ErrNoDetailURL
		pr.Records = g.stubs
		return pr
	}

	res, ok := fetched[g.url]
	if !ok {
		res.err = fmt.Errorf("detail %s: not fetched", g.url)
	}
	if res.err == nil && res.details == nil {
		res.err = fmt.Errorf("detail %s: empty details", g.url)
	}
	if res.err != nil {
		pr.Outcome = OutcomeFallbackFetchFailed
		pr.Err = res.err
		pr.Records = g.stubs
		return pr
	}

	if len(res.details.Sales) == 0 {
		pr.Outcome = OutcomeFallbackNoSales
		for _, stub := range g.stubs {
			pr.Records = append(pr.Records, stub.WithSourceURL(g.url))
		}
		return pr
	}

	base := g.stubs[0]
	for _, sale := range res.details.Sales {
		when, err := parser.ParseDate(sale.Date)
		if err != nil || !rng.Contains(when) {
			continue
		}
		pr.Records = append(pr.Records, enrichedRecord(base, res.details, sale, g.url))
	}
	if len(pr.Records) == 0 {
		pr.Outcome = OutcomeNoSalesInRange
		return pr
	}
	pr.Outcome = OutcomeEnriched
	return pr
}

func enrichedRecord(stub models.RawParcelRecord, d *models.ParcelDetails, sale models.SaleRecord, url string) models.RawParcelRecord {
	r := stub
	r.OwnerName = firstNonEmpty(d.OwnerName, stub.OwnerName)
	r.OwnerMailingAddress = firstNonEmpty(d.OwnerMailingAddress, stub.OwnerMailingAddress)
	r.PropertyAddress = firstNonEmpty(d.PropertyAddress, stub.PropertyAddress)
	r.City = firstNonEmpty(d.City, stub.City)
	r.Zip = firstNonEmpty(d.Zip, stub.Zip)
	r.ClassCode = firstNonEmpty(d.ClassCode, stub.ClassCode)
	r.LandUse = firstNonEmpty(d.LandUse, stub.LandUse)
	r.SaleDate = sale.Date
	r.SalePrice = sale.Price
	r.DeedInstrument = sale.Instrument
	r.QualifiedSale = sale.Qualification
	r.SourceURL = url
	return r
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// detailClient fetches and parses detail pages through a session.
type detailClient struct {
	session *Session
	parser  parser.DetailParser
}

func (d detailClient) FetchDetails(ctx context.Context, url string) (*models.ParcelDetails, error) {
	page, err := d.session.Get(ctx, "detail", url)
	if err != nil {
		return nil, err
	}
	details, err := d.parser.ParseDetail(page.Body)
	if err != nil {
		return nil, fmt.Errorf("parse detail %s: %w", url, err)
	}
	return details, nil
}
