package pipeline

import (
	"strings"

	"github.com/aluiziolira/go-scrape-sales/config"
	"github.com/aluiziolira/go-scrape-sales/models"
	"github.com/aluiziolira/go-scrape-sales/parser"
)

var negativeQualifiers = map[string]struct{}{
	"n":     {},
	"no":    {},
	"false": {},
	"0":     {},
}

// FilterConfig is the subset of configuration the filter needs.
type FilterConfig struct {
	MinSalePrice        int64
	DeniedInstruments   []string
	ResidentialCodes    []string
	ResidentialLandUses []string
}

// FilterConfigFrom extracts filter settings from cfg.
func FilterConfigFrom(cfg *config.Config) FilterConfig {
	return FilterConfig{
		MinSalePrice:        cfg.MinSalePrice,
		DeniedInstruments:   cfg.DeniedInstruments,
		ResidentialCodes:    cfg.ResidentialCodes,
		ResidentialLandUses: cfg.ResidentialLandUses,
	}
}

// FilterResult splits records into passed and filtered with reason counts.
type FilterResult struct {
	Passed   []models.RawParcelRecord
	Filtered []models.RawParcelRecord
	Reasons  models.FilterReasons
}

// FilterRecords keeps arm's-length residential sales inside rng. Each
// rejected record is counted once, under the first check it fails, in the
// order date range, residential, price, instrument, qualification.
func FilterRecords(records []models.RawParcelRecord, cfg FilterConfig, rng models.DateRange) FilterResult {
	result := FilterResult{Reasons: models.NewFilterReasons()}
	for _, r := range records {
		reason, ok := evaluate(r, cfg, rng)
		if ok {
			result.Passed = append(result.Passed, r)
			continue
		}
		result.Filtered = append(result.Filtered, r)
		result.Reasons[reason]++
	}
	return result
}

func evaluate(r models.RawParcelRecord, cfg FilterConfig, rng models.DateRange) (models.FilterReason, bool) {
	saleDate, err := parser.ParseDate(r.SaleDate)
	if err != nil || !rng.Contains(saleDate) {
		return models.ReasonOutsideDateRange, false
	}
	if !IsResidential(r.ClassCode, r.LandUse, cfg) {
		return models.ReasonNonResidential, false
	}
	if parser.ParseSalePrice(r.SalePrice) < float64(cfg.MinSalePrice) {
		return models.ReasonLowSalePrice, false
	}
	if IsDeniedInstrument(r.DeedInstrument, cfg.DeniedInstruments) {
		return models.ReasonDeniedInstrument, false
	}
	if q := strings.ToLower(strings.TrimSpace(r.QualifiedSale)); q != "" {
		if _, negative := negativeQualifiers[q]; negative {
			return models.ReasonQualifiedSaleFailed, false
		}
	}
	return "", true
}

// IsResidential reports whether the class code is a residential code or
// the land use mentions a residential term.
func IsResidential(classCode, landUse string, cfg FilterConfig) bool {
	code := strings.TrimSpace(classCode)
	for _, c := range cfg.ResidentialCodes {
		if code != "" && strings.EqualFold(code, c) {
			return true
		}
	}
	use := strings.ToUpper(landUse)
	for _, term := range cfg.ResidentialLandUses {
		if term != "" && strings.Contains(use, strings.ToUpper(term)) {
			return true
		}
	}
	return false
}

// IsDeniedInstrument reports whether instrument contains any denylist term,
// ignoring case.
func IsDeniedInstrument(instrument string, denylist []string) bool {
	if strings.TrimSpace(instrument) == "" {
		return false
	}
	lower := strings.ToLower(instrument)
	for _, term := range denylist {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
