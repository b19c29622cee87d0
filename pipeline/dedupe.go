package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-sales/models"
	"github.com/aluiziolira/go-scrape-sales/parser"
)

// seenSet remembers keys. It is sized to the input so nothing is evicted.
type seenSet struct {
	cache *lru.Cache[string, struct{}]
}

func newSeenSet(capacity int) *seenSet {
	if capacity < 1 {
		capacity = 1
	}
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &seenSet{cache: cache}
}

func (s *seenSet) has(key string) bool {
	return s.cache.Contains(key)
}

func (s *seenSet) add(keys ...string) {
	for _, k := range keys {
		s.cache.Add(k, struct{}{})
	}
}

// DeduplicateRaw drops records repeating parcel id, sale date and price.
// The first occurrence wins.
func DeduplicateRaw(records []models.RawParcelRecord) []models.RawParcelRecord {
	seen := newSeenSet(len(records))
	out := make([]models.RawParcelRecord, 0, len(records))
	for _, r := range records {
		key := rawKey(r)
		if seen.has(key) {
			continue
		}
		seen.add(key)
		out = append(out, r)
	}
	if removed := len(records) - len(out); removed > 0 {
		slog.Info("removed duplicate raw records", slog.Int("removed", removed), slog.Int("kept", len(out)))
	}
	return out
}

// DeduplicateCleanedSales drops a sale when either its parcel key or its
// address key was already seen, catching parcel id formatting drift.
func DeduplicateCleanedSales(sales []models.CleanedSale) []models.CleanedSale {
	seen := newSeenSet(2 * len(sales))
	out := make([]models.CleanedSale, 0, len(sales))
	for _, s := range sales {
		address := strings.ToUpper(s.SitusAddress)
		parcelKey := fmt.Sprintf("p|%s|%s|%s|%d", s.ParcelID, address, s.SaleDate, s.SalePrice)
		addressKey := fmt.Sprintf("a|%s|%s|%s|%d", address, strings.ToUpper(s.City), s.SaleDate, s.SalePrice)
		if seen.has(parcelKey) || seen.has(addressKey) {
			continue
		}
		seen.add(parcelKey, addressKey)
		out = append(out, s)
	}
	if removed := len(sales) - len(out); removed > 0 {
		slog.Info("removed duplicate sales", slog.Int("removed", removed), slog.Int("kept", len(out)))
	}
	return out
}

// DeduplicateByOwnerAddress keeps the highest priced sale per owner and
// situs address. Sales with neither owner nor address are dropped.
func DeduplicateByOwnerAddress(sales []models.CleanedSale) []models.CleanedSale {
	best := make(map[string]int, len(sales))
	out := make([]models.CleanedSale, 0, len(sales))
	dropped := 0
	for _, s := range sales {
		owner := strings.ToUpper(strings.TrimSpace(s.Owner()))
		address := strings.ToUpper(strings.TrimSpace(s.SitusAddress))
		if owner == "" && address == "" {
			dropped++
			continue
		}
		key := owner + "|" + address
		idx, ok := best[key]
		if !ok {
			best[key] = len(out)
			out = append(out, s)
			continue
		}
		if s.SalePrice > out[idx].SalePrice {
			out[idx] = s
		}
	}
	if removed := len(sales) - len(out); removed > 0 {
		slog.Info("collapsed sales by owner and address",
			slog.Int("removed", removed),
			slog.Int("no_contact", dropped),
			slog.Int("kept", len(out)),
		)
	}
	return out
}

func rawKey(r models.RawParcelRecord) string {
	return fmt.Sprintf("%s|%s|%.2f",
		parser.NormalizeParcelID(r.ParcelID),
		parser.ParseSaleDate(r.SaleDate),
		parser.ParseSalePrice(r.SalePrice),
	)
}
