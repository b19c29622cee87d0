package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aluiziolira/go-scrape-sales/config"
	"github.com/aluiziolira/go-scrape-sales/models"
	"github.com/aluiziolira/go-scrape-sales/notify"
	"github.com/aluiziolira/go-scrape-sales/pipeline"
	"github.com/aluiziolira/go-scrape-sales/scraper"
)

// runner executes one extraction and its post-processing.
type runner struct {
	cfg     *config.Config
	scraper *scraper.Scraper
	mailer  *notify.Mailer
}

func (r *runner) run(ctx context.Context, rng models.DateRange) (*models.RunResult, []string, error) {
	result := &models.RunResult{
		County:    r.cfg.CountyName,
		Range:     rng,
		StartTime: time.Now(),
		Reasons:   models.NewFilterReasons(),
	}
	slog.Info("starting sales run",
		slog.String("county", r.cfg.CountyName),
		slog.String("range", rng.String()),
		slog.Int("concurrency", r.cfg.Concurrency),
	)

	ext, err := r.scraper.Extract(ctx, rng)
	if err != nil {
		return nil, nil, err
	}
	ext.Fill(result)

	if len(ext.Records) == 0 {
		slog.Info("no sales found for range, nothing to write", slog.String("range", rng.String()))
		result.EndTime = time.Now()
		r.scraper.Metrics.RunFinished(result.EndTime, 0)
		return result, nil, nil
	}

	writer, outputs, err := createWriter(r.cfg, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("create writer: %w", err)
	}

	p := pipeline.NewPipeline(writer, r.cfg)
	p.OnStage(func(stage string, count int) {
		r.scraper.Metrics.AddRecords(stage, count)
		slog.Debug("pipeline stage", slog.String("stage", stage), slog.Int("records", count))
	})

	res, err := p.Run(ext.Records, rng)
	if err != nil {
		return nil, nil, errors.Join(err, p.Close())
	}
	if len(res.Sales) > 0 {
		if err := writer.Validate(); err != nil {
			return nil, nil, errors.Join(fmt.Errorf("output validation failed: %w", err), p.Close())
		}
	}
	if err := p.Close(); err != nil {
		return nil, nil, fmt.Errorf("close output: %w", err)
	}

	result.RawCount = len(res.Raw)
	result.PassedCount = len(res.Passed)
	result.FilteredCount = len(res.Filtered)
	result.SalesCount = len(res.Sales)
	result.Reasons = res.Reasons
	result.EndTime = time.Now()
	r.scraper.Metrics.RunFinished(result.EndTime, result.SalesCount)

	r.notify(ctx, rng, res)
	return result, outputs, nil
}

// notify emails the report. Failures are logged; the files are already written.
func (r *runner) notify(ctx context.Context, rng models.DateRange, res *pipeline.Result) {
	if r.mailer == nil || !r.mailer.Enabled() {
		return
	}
	if len(res.Sales) == 0 {
		slog.Info("no sales passed filters, skipping email")
		return
	}
	report := notify.Report{
		County:  r.cfg.CountyName,
		Range:   rng,
		Sales:   res.Sales,
		Stats:   res.Stats,
		Reasons: res.Reasons,
	}
	if err := r.mailer.Send(ctx, report); err != nil {
		slog.Error("email report failed", slog.Any("error", err))
	}
}

func createWriter(cfg *config.Config, rng models.DateRange) (pipeline.OutputWriter, []string, error) {
	suffix := fmt.Sprintf("%s_%s", rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"))
	path := func(kind, ext string) string {
		return filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s.%s", kind, suffix, ext))
	}

	switch cfg.OutputFormat {
	case "csv":
		sales, raw := path("sales", "csv"), path("raw", "csv")
		w, err := pipeline.NewCSVWriter(sales, raw)
		return w, []string{sales, raw}, err
	case "json":
		sales, raw := path("sales", "jsonl"), path("raw", "jsonl")
		w, err := pipeline.NewJSONWriter(sales, raw)
		return w, []string{sales, raw}, err
	case "dual":
		paths := pipeline.DualPaths{
			SalesCSV:  path("sales", "csv"),
			RawCSV:    path("raw", "csv"),
			SalesJSON: path("sales", "jsonl"),
			RawJSON:   path("raw", "jsonl"),
		}
		w, err := pipeline.NewDualWriter(paths)
		return w, []string{paths.SalesCSV, paths.RawCSV, paths.SalesJSON, paths.RawJSON}, err
	default:
		return nil, nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}
