// Package models defines data structures for the sales scraper.
package models

import "time"

// RawParcelRecord is one scraped sale candidate before filtering.
// Fields hold the text as it appeared on the site.
type RawParcelRecord struct {
	ParcelID            string `csv:"parcel_id" json:"parcel_id"`
	OwnerName           string `csv:"owner_name" json:"owner_name"`
	OwnerMailingAddress string `csv:"owner_mailing_address" json:"owner_mailing_address"`
	PropertyAddress     string `csv:"property_address" json:"property_address"`
	City                string `csv:"city" json:"city"`
	Zip                 string `csv:"zip" json:"zip"`
	ClassCode           string `csv:"class_code" json:"class_code"`
	LandUse             string `csv:"land_use" json:"land_use"`
	SaleDate            string `csv:"sale_date" json:"sale_date"`
	SalePrice           string `csv:"sale_price" json:"sale_price"`
	DeedInstrument      string `csv:"deed_instrument" json:"deed_instrument"`
	QualifiedSale       string `csv:"qualified_sale" json:"qualified_sale"`
	SourceURL           string `csv:"source_url" json:"source_url"`
}

// WithSourceURL returns a copy of r pointing at url.
func (r RawParcelRecord) WithSourceURL(url string) RawParcelRecord {
	r.SourceURL = url
	return r
}

// SaleRecord is one row of a parcel's sales history.
type SaleRecord struct {
	Date          string `json:"date"`
	Price         string `json:"price"`
	Instrument    string `json:"instrument"`
	Qualification string `json:"qualification"`
	Book          string `json:"book"`
	Page          string `json:"page"`
}

// ParcelDetails is the parsed content of a parcel detail page.
type ParcelDetails struct {
	OwnerName           string
	OwnerMailingAddress string
	PropertyAddress     string
	City                string
	Zip                 string
	ClassCode           string
	LandUse             string
	Sales               []SaleRecord
}

// CleanedSale is the canonical output record.
type CleanedSale struct {
	ParcelID            string    `csv:"parcel_id" json:"parcel_id"`
	SitusAddress        string    `csv:"situs_address" json:"situs_address"`
	City                string    `csv:"city" json:"city"`
	State               string    `csv:"state" json:"state"`
	Zip                 string    `csv:"zip" json:"zip"`
	OwnerName           *string   `csv:"owner_name" json:"owner_name"`
	OwnerMailingAddress *string   `csv:"owner_mailing_address" json:"owner_mailing_address"`
	SaleDate            string    `csv:"sale_date" json:"sale_date"`
	SalePrice           int64     `csv:"sale_price" json:"sale_price"`
	DeedInstrument      string    `csv:"deed_instrument" json:"deed_instrument"`
	LandUse             string    `csv:"land_use" json:"land_use"`
	SourceURL           string    `csv:"source_url" json:"source_url"`
	ExtractedAt         time.Time `csv:"extracted_at" json:"extracted_at"`
}

// Owner returns the owner name or "" when absent.
func (c CleanedSale) Owner() string {
	if c.OwnerName == nil {
		return ""
	}
	return *c.OwnerName
}

// MailingAddress returns the owner mailing address or "" when absent.
func (c CleanedSale) MailingAddress() string {
	if c.OwnerMailingAddress == nil {
		return ""
	}
	return *c.OwnerMailingAddress
}
