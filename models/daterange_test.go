package models

import (
	"testing"
	"time"
)

func TestPreviousWeek(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantStart string
		wantEnd   string
	}{
		{
			name:      "midweek",
			now:       time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC),
			wantStart: "2025-01-06",
			wantEnd:   "2025-01-12",
		},
		{
			name:      "monday",
			now:       time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
			wantStart: "2025-01-06",
			wantEnd:   "2025-01-12",
		},
		{
			name:      "sunday",
			now:       time.Date(2025, 1, 12, 23, 59, 0, 0, time.UTC),
			wantStart: "2024-12-30",
			wantEnd:   "2025-01-05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := PreviousWeek(tt.now)
			if got := r.Start.Format(time.DateOnly); got != tt.wantStart {
				t.Fatalf("start = %s, want %s", got, tt.wantStart)
			}
			if got := r.End.Format(time.DateOnly); got != tt.wantEnd {
				t.Fatalf("end = %s, want %s", got, tt.wantEnd)
			}
			if r.Start.Weekday() != time.Monday || r.End.Weekday() != time.Sunday {
				t.Fatalf("range %s is not Monday to Sunday", r)
			}
		})
	}
}

func TestDateRangeContainsIsInclusive(t *testing.T) {
	r := NewDateRange(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC))

	if r.Label != "Jan 6 - Jan 12, 2025" {
		t.Fatalf("label = %q", r.Label)
	}
	if !r.Contains(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start day should be inside")
	}
	if !r.Contains(time.Date(2025, 1, 12, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("end day should be inside regardless of time of day")
	}
	if r.Contains(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day before start should be outside")
	}
	if r.Contains(time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day after end should be outside")
	}
}

func TestFilterReasonsInitialised(t *testing.T) {
	reasons := NewFilterReasons()
	for _, r := range AllFilterReasons {
		if n, ok := reasons[r]; !ok || n != 0 {
			t.Fatalf("reason %q = %d, present=%v", r, n, ok)
		}
	}
	reasons[ReasonLowSalePrice] += 2
	if reasons.Total() != 2 {
		t.Fatalf("total = %d, want 2", reasons.Total())
	}
}
