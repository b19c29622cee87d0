package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aluiziolira/go-scrape-sales/models"
	"github.com/aluiziolira/go-scrape-sales/parser"
)

// Search form field names the site expects.
const (
	fieldCounty   = "County"
	fieldDateFrom = "SaleDateFrom"
	fieldDateTo   = "SaleDateTo"
	formDate      = "01/02/2006"
)

// WalkResult holds every stub collected from the results pages.
type WalkResult struct {
	Stubs      []models.RawParcelRecord
	DetailURLs map[string]string // normalized parcel id -> detail page
	Pages      int
}

// Walker drives the sale search and its pagination one page at a time.
type Walker struct {
	session   *Session
	retry     *retryPolicy
	metrics   *Metrics
	searchURL string
	maxPages  int
}

func newWalker(session *Session, retry *retryPolicy, metrics *Metrics, searchURL string, maxPages int) *Walker {
	return &Walker{
		session:   session,
		retry:     retry,
		metrics:   metrics,
		searchURL: searchURL,
		maxPages:  maxPages,
	}
}

// Walk submits the search for county and rng and follows the next page
// link until the site reports no further page.
func (w *Walker) Walk(ctx context.Context, county string, rng models.DateRange) (*WalkResult, error) {
	formPage, err := w.fetch(ctx, "navigate", func(ctx context.Context) (*Page, error) {
		return w.session.Get(ctx, "navigate", w.searchURL)
	})
	if err != nil {
		return nil, fmt.Errorf("open search form: %w", err)
	}

	form, err := parser.ParseSearchForm(formPage.Body)
	if err != nil {
		return nil, fmt.Errorf("read search form: %w", err)
	}

	fields := make(map[string]string, len(form.Fields)+3)
	for k, v := range form.Fields {
		fields[k] = v
	}
	fields[fieldCounty] = county
	fields[fieldDateFrom] = rng.Start.Format(formDate)
	fields[fieldDateTo] = rng.End.Format(formDate)

	action := formPage.URL.String()
	if form.Action != "" {
		action = formPage.Resolve(form.Action)
	}

	page, err := w.fetch(ctx, "search", func(ctx context.Context) (*Page, error) {
		if form.Method == "GET" {
			return w.session.Get(ctx, "search", withQuery(action, fields))
		}
		return w.session.Post(ctx, "search", action, fields)
	})
	if err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}

	result := &WalkResult{DetailURLs: make(map[string]string)}
	for {
		parsed, err := parser.ParseResultsPage(page.Body)
		if err != nil {
			return nil, fmt.Errorf("read results page %d: %w", result.Pages+1, err)
		}
		result.Pages++
		w.metrics.IncPages()

		for _, row := range parsed.Rows {
			link := page.Resolve(row.DetailHref)
			result.Stubs = append(result.Stubs, stubFromRow(row, link))
			id := parser.NormalizeParcelID(row.ParcelID)
			if _, ok := result.DetailURLs[id]; !ok {
				result.DetailURLs[id] = link
			}
		}
		slog.Debug("results page read",
			slog.Int("page", result.Pages),
			slog.Int("rows", len(parsed.Rows)),
			slog.Int("total", len(result.Stubs)),
		)

		if result.Pages == 1 && len(parsed.Rows) == 0 {
			slog.Info("search returned no results", slog.String("county", county), slog.String("range", rng.String()))
			return result, nil
		}
		if !parsed.HasNext {
			break
		}
		if result.Pages >= w.maxPages {
			slog.Warn("max pages reached, stopping pagination", slog.Int("pages", result.Pages))
			break
		}

		next := page.Resolve(parsed.NextHref)
		page, err = w.fetch(ctx, "next-page", func(ctx context.Context) (*Page, error) {
			return w.session.Get(ctx, "next-page", next)
		})
		if err != nil {
			return nil, fmt.Errorf("open results page %d: %w", result.Pages+1, err)
		}
	}

	w.metrics.AddRecords("stubs", len(result.Stubs))
	slog.Info("search walk complete",
		slog.Int("pages", result.Pages),
		slog.Int("stubs", len(result.Stubs)),
		slog.Int("parcels", len(result.DetailURLs)),
	)
	return result, nil
}

func (w *Walker) fetch(ctx context.Context, op string, get func(ctx context.Context) (*Page, error)) (*Page, error) {
	var page *Page
	err := w.retry.Do(ctx, op, func(ctx context.Context) error {
		p, err := get(ctx)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}

func stubFromRow(row parser.ResultRow, detailURL string) models.RawParcelRecord {
	return models.RawParcelRecord{
		ParcelID:        row.ParcelID,
		OwnerName:       row.OwnerName,
		PropertyAddress: row.PropertyAddress,
		City:            row.City,
		Zip:             row.Zip,
		ClassCode:       row.ClassCode,
		LandUse:         row.LandUse,
		SaleDate:        row.SaleDate,
		QualifiedSale:   row.QualifiedSale,
		SourceURL:       detailURL,
	}
}

func withQuery(rawURL string, fields map[string]string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range fields {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return strings.TrimSuffix(u.String(), "?")
}
