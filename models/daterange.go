package models

import (
	"fmt"
	"time"
)

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
	Label string
}

// NewDateRange truncates start and end to midnight UTC and builds a label.
func NewDateRange(start, end time.Time) DateRange {
	s := dateOnly(start)
	e := dateOnly(end)
	return DateRange{
		Start: s,
		End:   e,
		Label: fmt.Sprintf("%s - %s", s.Format("Jan 2"), e.Format("Jan 2, 2006")),
	}
}

// PreviousWeek returns the Monday through Sunday week before the one
// containing now.
func PreviousWeek(now time.Time) DateRange {
	today := dateOnly(now)
	offset := (int(today.Weekday()) + 6) % 7 // days since Monday
	thisMonday := today.AddDate(0, 0, -offset)
	start := thisMonday.AddDate(0, 0, -7)
	return NewDateRange(start, start.AddDate(0, 0, 6))
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := dateOnly(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	if r.Label != "" {
		return r.Label
	}
	return fmt.Sprintf("%s..%s", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
