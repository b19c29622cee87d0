package models

import "time"

// FilterReason names why a record was rejected.
type FilterReason string

const (
	ReasonOutsideDateRange    FilterReason = "outsideDateRange"
	ReasonNonResidential      FilterReason = "nonResidential"
	ReasonLowSalePrice        FilterReason = "lowSalePrice"
	ReasonDeniedInstrument    FilterReason = "deniedInstrument"
	ReasonQualifiedSaleFailed FilterReason = "qualifiedSaleFailed"
	ReasonOther               FilterReason = "other"
)

// AllFilterReasons lists every reason in predicate order.
var AllFilterReasons = []FilterReason{
	ReasonOutsideDateRange,
	ReasonNonResidential,
	ReasonLowSalePrice,
	ReasonDeniedInstrument,
	ReasonQualifiedSaleFailed,
	ReasonOther,
}

// FilterReasons counts rejected records per reason.
type FilterReasons map[FilterReason]int

// NewFilterReasons returns a map with every reason present at zero.
func NewFilterReasons() FilterReasons {
	reasons := make(FilterReasons, len(AllFilterReasons))
	for _, r := range AllFilterReasons {
		reasons[r] = 0
	}
	return reasons
}

// Total sums all counts.
func (f FilterReasons) Total() int {
	total := 0
	for _, n := range f {
		total += n
	}
	return total
}

// RunResult holds the overall result of one scrape run.
type RunResult struct {
	County        string
	Range         DateRange
	StartTime     time.Time
	EndTime       time.Time
	PageCount     int
	StubCount     int
	RawCount      int
	PassedCount   int
	FilteredCount int
	SalesCount    int
	Reasons       FilterReasons
	Outcomes      map[string]int
	RetryCount    int
	ErrorsByType  map[string]int
}
