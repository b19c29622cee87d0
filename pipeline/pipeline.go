package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-sales/config"
	"github.com/aluiziolira/go-scrape-sales/models"
)

var (
	// ErrPipelineClosed is returned when Run is called after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	WriteSales(sales []models.CleanedSale) error
	WriteRaw(records []models.RawParcelRecord) error
	Close() error
	Validate() error
}

// StageFunc observes the record count leaving a pipeline stage.
type StageFunc func(stage string, count int)

// Result is everything one Run produced.
type Result struct {
	Raw      []models.RawParcelRecord
	Passed   []models.RawParcelRecord
	Filtered []models.RawParcelRecord
	Reasons  models.FilterReasons
	Cleaned  []models.CleanedSale
	Sales    []models.CleanedSale
	Stats    SalesStats
}

// Pipeline runs dedupe, filter and transform stages and writes the output.
type Pipeline struct {
	writer    OutputWriter
	filter    FilterConfig
	batchSize int
	onStage   StageFunc
	now       func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewPipeline builds a pipeline writing to writer.
func NewPipeline(writer OutputWriter, cfg *config.Config) *Pipeline {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Pipeline{
		writer:    writer,
		filter:    FilterConfigFrom(cfg),
		batchSize: batchSize,
		now:       time.Now,
	}
}

// OnStage registers a callback invoked after every stage.
func (p *Pipeline) OnStage(fn StageFunc) {
	p.onStage = fn
}

// Run processes one batch of extracted records. Stages run in a fixed
// order: raw dedupe, filter, transform, sale dedupe, owner/address dedupe.
func (p *Pipeline) Run(records []models.RawParcelRecord, rng models.DateRange) (*Result, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPipelineClosed
	}
	p.mu.Unlock()

	p.stage("extracted", len(records))

	raw := DeduplicateRaw(records)
	p.stage("deduplicated", len(raw))

	filtered := FilterRecords(raw, p.filter, rng)
	p.stage("passed", len(filtered.Passed))
	slog.Info("filtered records",
		slog.Int("passed", len(filtered.Passed)),
		slog.Int("filtered", len(filtered.Filtered)),
		slog.Any("reasons", filtered.Reasons),
	)

	cleaned := DeduplicateCleanedSales(TransformRecords(filtered.Passed, p.now()))
	p.stage("cleaned", len(cleaned))

	sales := DeduplicateByOwnerAddress(cleaned)
	p.stage("sales", len(sales))

	result := &Result{
		Raw:      raw,
		Passed:   filtered.Passed,
		Filtered: filtered.Filtered,
		Reasons:  filtered.Reasons,
		Cleaned:  cleaned,
		Sales:    sales,
		Stats:    GetSalesStats(sales),
	}

	if err := writeBatches(sales, p.batchSize, p.writer.WriteSales); err != nil {
		return result, fmt.Errorf("write sales: %w", err)
	}
	if err := writeBatches(raw, p.batchSize, p.writer.WriteRaw); err != nil {
		return result, fmt.Errorf("write raw records: %w", err)
	}
	return result, nil
}

// Close closes the writer and rejects further runs.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.writer.Close()
}

func (p *Pipeline) stage(name string, count int) {
	if p.onStage != nil {
		p.onStage(name, count)
	}
}

func writeBatches[T any](items []T, size int, write func([]T) error) error {
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		if err := write(items[start:end]); err != nil {
			return err
		}
	}
	return nil
}
