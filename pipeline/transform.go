package pipeline

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-sales/models"
	"github.com/aluiziolira/go-scrape-sales/parser"
)

// ToCleanedSale maps a raw record onto the output schema.
func ToCleanedSale(r models.RawParcelRecord, extractedAt time.Time) models.CleanedSale {
	city := strings.TrimSpace(r.City)
	zip := strings.TrimSpace(r.Zip)
	if city == "" || zip == "" {
		parts := parser.ParseAddressComponents(r.PropertyAddress)
		if city == "" {
			city = parts.City
		}
		if zip == "" {
			zip = parts.Zip
		}
	}

	return models.CleanedSale{
		ParcelID:            parser.NormalizeParcelID(r.ParcelID),
		SitusAddress:        parser.CleanAddress(r.PropertyAddress),
		City:                city,
		State:               parser.DefaultState,
		Zip:                 zip,
		OwnerName:           optional(parser.CleanOwnerName(r.OwnerName)),
		OwnerMailingAddress: optional(parser.CleanAddress(r.OwnerMailingAddress)),
		SaleDate:            parser.ParseSaleDate(strings.TrimSpace(r.SaleDate)),
		SalePrice:           int64(math.Round(parser.ParseSalePrice(r.SalePrice))),
		DeedInstrument:      strings.TrimSpace(r.DeedInstrument),
		LandUse:             strings.TrimSpace(r.LandUse),
		SourceURL:           r.SourceURL,
		ExtractedAt:         extractedAt,
	}
}

// TransformRecords converts every record with a shared timestamp.
func TransformRecords(records []models.RawParcelRecord, extractedAt time.Time) []models.CleanedSale {
	out := make([]models.CleanedSale, 0, len(records))
	for _, r := range records {
		out = append(out, ToCleanedSale(r, extractedAt))
	}
	return out
}

// SalesStats summarises sale prices for the report.
type SalesStats struct {
	Count   int     `json:"count"`
	Total   int64   `json:"total"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Min     int64   `json:"min"`
	Max     int64   `json:"max"`
}

// GetSalesStats computes count, total, average, median, min and max.
// An empty input yields all zeros.
func GetSalesStats(sales []models.CleanedSale) SalesStats {
	if len(sales) == 0 {
		return SalesStats{}
	}

	prices := make([]int64, len(sales))
	var total int64
	for i, s := range sales {
		prices[i] = s.SalePrice
		total += s.SalePrice
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })

	n := len(prices)
	median := float64(prices[n/2])
	if n%2 == 0 {
		median = float64(prices[n/2-1]+prices[n/2]) / 2
	}

	return SalesStats{
		Count:   n,
		Total:   total,
		Average: float64(total) / float64(n),
		Median:  median,
		Min:     prices[0],
		Max:     prices[n-1],
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
