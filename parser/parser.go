// Package parser normalizes free-text fields scraped from the records site
// and turns its HTML pages into typed values.
package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	ownerNameStrip  = regexp.MustCompile(`[^A-Za-z0-9\s,.'&-]`)
	usDate          = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	isoDate         = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	stateZip        = regexp.MustCompile(`(?i)^(.*?)\s*\b([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)
	priceStripChars = strings.NewReplacer("$", "", ",", "")
)

// DefaultState is assumed when an address carries no state.
const DefaultState = "TN"

// AddressParts is the result of splitting a composite address string.
type AddressParts struct {
	Street string
	City   string
	State  string
	Zip    string
}

// ParseSalePrice strips currency formatting and parses the amount.
// Anything that does not parse to a finite, non-negative amount that fits
// in an int64 yields 0.
func ParseSalePrice(price string) float64 {
	cleaned := whitespaceRun.ReplaceAllString(priceStripChars.Replace(price), "")
	if cleaned == "" {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	if value < 0 || value >= math.MaxInt64 {
		return 0
	}
	return value
}

// ParseSaleDate converts MM/DD/YYYY to YYYY-MM-DD. ISO input and anything
// unrecognised are returned unchanged.
func ParseSaleDate(date string) string {
	trimmed := strings.TrimSpace(date)
	m := usDate.FindStringSubmatch(trimmed)
	if m == nil {
		return date
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%s-%02d-%02d", m[3], month, day)
}

// ParseDate parses a sale date in either supported format.
func ParseDate(date string) (time.Time, error) {
	normalized := strings.TrimSpace(ParseSaleDate(date))
	if !isoDate.MatchString(normalized) {
		return time.Time{}, fmt.Errorf("unrecognised date %q", date)
	}
	t, err := time.Parse(time.DateOnly, normalized)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return t, nil
}

// NormalizeParcelID collapses whitespace runs in a parcel identifier.
func NormalizeParcelID(id string) string {
	return collapse(id)
}

// CleanOwnerName collapses whitespace and drops characters that do not
// belong in a name.
func CleanOwnerName(name string) string {
	return collapse(ownerNameStrip.ReplaceAllString(name, ""))
}

// CleanAddress collapses whitespace and uppercases.
func CleanAddress(address string) string {
	return strings.ToUpper(collapse(address))
}

// ParseAddressComponents splits "STREET, CITY, ST 12345" style strings.
// It is only a fallback for records whose city or zip is unknown.
func ParseAddressComponents(address string) AddressParts {
	var segments []string
	for _, s := range strings.Split(address, ",") {
		if s = collapse(s); s != "" {
			segments = append(segments, s)
		}
	}

	parts := AddressParts{State: DefaultState}
	if len(segments) == 0 {
		return parts
	}
	parts.Street = segments[0]
	rest := segments[1:]
	if len(rest) == 0 {
		return parts
	}

	if m := stateZip.FindStringSubmatch(rest[len(rest)-1]); m != nil {
		parts.State = strings.ToUpper(m[2])
		parts.Zip = m[3]
		switch {
		case strings.TrimSpace(m[1]) != "":
			parts.City = strings.TrimSpace(m[1])
		case len(rest) > 1:
			parts.City = rest[len(rest)-2]
		}
		return parts
	}

	parts.City = rest[0]
	return parts
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
