package pipeline

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-sales/config"
	"github.com/aluiziolira/go-scrape-sales/models"
)

func weekOfJan6() models.DateRange {
	return models.NewDateRange(
		time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
	)
}

func testFilterConfig() FilterConfig {
	cfg := config.DefaultConfig()
	cfg.MinSalePrice = 10000
	return FilterConfigFrom(cfg)
}

func validRecord() models.RawParcelRecord {
	return models.RawParcelRecord{
		ParcelID:        "049 12 0 123.00",
		OwnerName:       "SMITH JOHN",
		PropertyAddress: "123 MAIN ST",
		City:            "MURFREESBORO",
		Zip:             "37130",
		ClassCode:       "00",
		LandUse:         "SINGLE FAMILY",
		SaleDate:        "01/08/2025",
		SalePrice:       "$250,000",
		DeedInstrument:  "Warranty Deed",
		QualifiedSale:   "Y",
		SourceURL:       "http://example.test/parcel/1",
	}
}

func TestIsDeniedInstrument(t *testing.T) {
	denylist := []string{"Quitclaim", "Sheriff", "Trustee"}
	tests := []struct {
		name       string
		instrument string
		expected   bool
	}{
		{name: "sheriff deed", instrument: "Sheriff's Deed", expected: true},
		{name: "case insensitive", instrument: "QUITCLAIM DEED", expected: true},
		{name: "lowercase", instrument: "trustee deed", expected: true},
		{name: "warranty", instrument: "Warranty Deed", expected: false},
		{name: "empty", instrument: "", expected: false},
		{name: "blank", instrument: "   ", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDeniedInstrument(tt.instrument, denylist); got != tt.expected {
				t.Errorf("IsDeniedInstrument(%q) = %v, want %v", tt.instrument, got, tt.expected)
			}
		})
	}
}

func TestIsResidential(t *testing.T) {
	cfg := testFilterConfig()
	tests := []struct {
		name     string
		class    string
		landUse  string
		expected bool
	}{
		{name: "residential code", class: "00", landUse: "", expected: true},
		{name: "residential land use", class: "", landUse: "Single Family Residence", expected: true},
		{name: "condo", class: "99", landUse: "RESIDENTIAL CONDO", expected: true},
		{name: "commercial", class: "02", landUse: "Commercial", expected: false},
		{name: "unknown", class: "", landUse: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsResidential(tt.class, tt.landUse, cfg); got != tt.expected {
				t.Errorf("IsResidential(%q, %q) = %v, want %v", tt.class, tt.landUse, got, tt.expected)
			}
		})
	}
}

func TestFilterRecordsReasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.RawParcelRecord)
		reason models.FilterReason
	}{
		{
			name:   "day before range",
			mutate: func(r *models.RawParcelRecord) { r.SaleDate = "01/05/2025" },
			reason: models.ReasonOutsideDateRange,
		},
		{
			name:   "unparseable date",
			mutate: func(r *models.RawParcelRecord) { r.SaleDate = "pending" },
			reason: models.ReasonOutsideDateRange,
		},
		{
			name: "commercial",
			mutate: func(r *models.RawParcelRecord) {
				r.ClassCode = "02"
				r.LandUse = "Commercial"
			},
			reason: models.ReasonNonResidential,
		},
		{
			name:   "below minimum",
			mutate: func(r *models.RawParcelRecord) { r.SalePrice = "$9,999" },
			reason: models.ReasonLowSalePrice,
		},
		{
			name:   "missing price",
			mutate: func(r *models.RawParcelRecord) { r.SalePrice = "" },
			reason: models.ReasonLowSalePrice,
		},
		{
			name:   "nan price",
			mutate: func(r *models.RawParcelRecord) { r.SalePrice = "NaN" },
			reason: models.ReasonLowSalePrice,
		},
		{
			name:   "infinite price",
			mutate: func(r *models.RawParcelRecord) { r.SalePrice = "Infinity" },
			reason: models.ReasonLowSalePrice,
		},
		{
			name:   "quitclaim",
			mutate: func(r *models.RawParcelRecord) { r.DeedInstrument = "Quitclaim Deed" },
			reason: models.ReasonDeniedInstrument,
		},
		{
			name:   "unqualified",
			mutate: func(r *models.RawParcelRecord) { r.QualifiedSale = " No " },
			reason: models.ReasonQualifiedSaleFailed,
		},
		{
			name:   "zero flag",
			mutate: func(r *models.RawParcelRecord) { r.QualifiedSale = "0" },
			reason: models.ReasonQualifiedSaleFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			result := FilterRecords([]models.RawParcelRecord{r}, testFilterConfig(), weekOfJan6())
			if len(result.Passed) != 0 || len(result.Filtered) != 1 {
				t.Fatalf("passed=%d filtered=%d, want 0/1", len(result.Passed), len(result.Filtered))
			}
			if result.Reasons[tt.reason] != 1 || result.Reasons.Total() != 1 {
				t.Fatalf("reasons = %v, want only %s", result.Reasons, tt.reason)
			}
		})
	}
}

func TestFilterRecordsPassesWithoutQualifier(t *testing.T) {
	r := validRecord()
	r.QualifiedSale = ""
	result := FilterRecords([]models.RawParcelRecord{r}, testFilterConfig(), weekOfJan6())
	if len(result.Passed) != 1 {
		t.Fatalf("passed = %d, want 1 (reasons %v)", len(result.Passed), result.Reasons)
	}
}

func TestFilterRecordsFirstFailureWins(t *testing.T) {
	r := validRecord()
	r.SaleDate = "01/01/2025"
	r.ClassCode = "02"
	r.LandUse = "Commercial"
	r.SalePrice = "$500"
	r.DeedInstrument = "Sheriff's Deed"
	r.QualifiedSale = "N"

	result := FilterRecords([]models.RawParcelRecord{r}, testFilterConfig(), weekOfJan6())
	if result.Reasons[models.ReasonOutsideDateRange] != 1 || result.Reasons.Total() != 1 {
		t.Fatalf("reasons = %v, want only outsideDateRange", result.Reasons)
	}

	r.SaleDate = "01/08/2025"
	result = FilterRecords([]models.RawParcelRecord{r}, testFilterConfig(), weekOfJan6())
	if result.Reasons[models.ReasonNonResidential] != 1 || result.Reasons.Total() != 1 {
		t.Fatalf("reasons = %v, want only nonResidential", result.Reasons)
	}

	r.ClassCode = "00"
	result = FilterRecords([]models.RawParcelRecord{r}, testFilterConfig(), weekOfJan6())
	if result.Reasons[models.ReasonLowSalePrice] != 1 || result.Reasons.Total() != 1 {
		t.Fatalf("reasons = %v, want only lowSalePrice", result.Reasons)
	}
}

func TestFilterRecordsWeeklyBatch(t *testing.T) {
	valid := validRecord()

	cheap := validRecord()
	cheap.ParcelID = "050 01 0 001.00"
	cheap.SalePrice = "$500"

	quitclaim := validRecord()
	quitclaim.ParcelID = "050 01 0 002.00"
	quitclaim.DeedInstrument = "Quitclaim Deed"

	early := validRecord()
	early.ParcelID = "050 01 0 003.00"
	early.SaleDate = "01/01/2025"

	result := FilterRecords([]models.RawParcelRecord{valid, cheap, quitclaim, early}, testFilterConfig(), weekOfJan6())

	if len(result.Passed) != 1 || len(result.Filtered) != 3 {
		t.Fatalf("passed=%d filtered=%d, want 1/3", len(result.Passed), len(result.Filtered))
	}
	if result.Passed[0].ParcelID != valid.ParcelID {
		t.Fatalf("passed parcel = %q", result.Passed[0].ParcelID)
	}

	want := models.FilterReasons{
		models.ReasonLowSalePrice:        1,
		models.ReasonDeniedInstrument:    1,
		models.ReasonOutsideDateRange:    1,
		models.ReasonNonResidential:      0,
		models.ReasonQualifiedSaleFailed: 0,
		models.ReasonOther:               0,
	}
	if len(result.Reasons) != len(want) {
		t.Fatalf("reasons = %v, want %v", result.Reasons, want)
	}
	for reason, count := range want {
		if result.Reasons[reason] != count {
			t.Fatalf("reasons[%s] = %d, want %d", reason, result.Reasons[reason], count)
		}
	}
}
