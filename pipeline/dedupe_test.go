package pipeline

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-sales/models"
)

func strPtr(s string) *string { return &s }

func TestDeduplicateRaw(t *testing.T) {
	first := validRecord()
	first.SourceURL = "http://example.test/first"

	spacing := validRecord()
	spacing.ParcelID = "049  12 0   123.00"
	spacing.SaleDate = "1/8/2025"
	spacing.SalePrice = "250000"
	spacing.SourceURL = "http://example.test/second"

	otherPrice := validRecord()
	otherPrice.SalePrice = "$260,000"

	out := DeduplicateRaw([]models.RawParcelRecord{first, spacing, otherPrice})
	if len(out) != 2 {
		t.Fatalf("records = %d, want 2", len(out))
	}
	if out[0].SourceURL != "http://example.test/first" {
		t.Fatalf("first occurrence should win, got %q", out[0].SourceURL)
	}
	if out[1].SalePrice != "$260,000" {
		t.Fatalf("second record = %+v", out[1])
	}
}

func cleanedSale(parcel, address, city, date string, price int64) models.CleanedSale {
	return models.CleanedSale{
		ParcelID:     parcel,
		SitusAddress: address,
		City:         city,
		State:        "TN",
		SaleDate:     date,
		SalePrice:    price,
		OwnerName:    strPtr("SMITH JOHN"),
		ExtractedAt:  time.Unix(0, 0),
	}
}

func TestDeduplicateCleanedSales(t *testing.T) {
	sales := []models.CleanedSale{
		cleanedSale("049 12 0 123.00", "123 MAIN ST", "Murfreesboro", "2025-01-08", 250000),
		// same parcel key
		cleanedSale("049 12 0 123.00", "123 main st", "Smyrna", "2025-01-08", 250000),
		// parcel id drifted, same address key
		cleanedSale("049-12-0-123", "123 MAIN ST", "MURFREESBORO", "2025-01-08", 250000),
		// different price survives
		cleanedSale("049 12 0 123.00", "123 MAIN ST", "Murfreesboro", "2025-01-08", 255000),
	}

	out := DeduplicateCleanedSales(sales)
	if len(out) != 2 {
		t.Fatalf("sales = %d, want 2", len(out))
	}
	if out[1].SalePrice != 255000 {
		t.Fatalf("second sale = %+v", out[1])
	}

	again := DeduplicateCleanedSales(out)
	if len(again) != len(out) {
		t.Fatalf("second pass removed %d more", len(out)-len(again))
	}
	for i := range out {
		if again[i].ParcelID != out[i].ParcelID || again[i].SalePrice != out[i].SalePrice {
			t.Fatalf("second pass changed record %d", i)
		}
	}
}

func TestDeduplicateByOwnerAddress(t *testing.T) {
	land := cleanedSale("1", "500 FARM RD", "Eagleville", "2025-01-08", 100000)
	house := cleanedSale("2", "500 farm rd", "Eagleville", "2025-01-09", 300000)
	other := cleanedSale("3", "9 ELM ST", "Smyrna", "2025-01-09", 200000)

	anonymous := cleanedSale("4", "", "", "2025-01-10", 400000)
	anonymous.OwnerName = nil

	addressOnly := cleanedSale("5", "77 PINE AVE", "Smyrna", "2025-01-10", 150000)
	addressOnly.OwnerName = nil

	out := DeduplicateByOwnerAddress([]models.CleanedSale{land, house, other, anonymous, addressOnly})
	if len(out) != 3 {
		t.Fatalf("sales = %d, want 3: %+v", len(out), out)
	}
	if out[0].SalePrice != 300000 || out[0].ParcelID != "2" {
		t.Fatalf("survivor = %+v, want the 300000 sale", out[0])
	}
	if out[1].ParcelID != "3" || out[2].ParcelID != "5" {
		t.Fatalf("order = %s,%s", out[1].ParcelID, out[2].ParcelID)
	}
	for _, s := range out {
		if s.ParcelID == "4" {
			t.Fatalf("sale without owner or address should be dropped")
		}
	}
}

func TestDeduplicateByOwnerAddressKeepsFirstOnTie(t *testing.T) {
	a := cleanedSale("a", "1 MAIN ST", "X", "2025-01-08", 100000)
	b := cleanedSale("b", "1 MAIN ST", "X", "2025-01-09", 100000)
	out := DeduplicateByOwnerAddress([]models.CleanedSale{a, b})
	if len(out) != 1 || out[0].ParcelID != "a" {
		t.Fatalf("out = %+v", out)
	}
}
