package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-sales/models"
)

func sampleSale() models.CleanedSale {
	return models.CleanedSale{
		ParcelID:     "049 12 0 123.00",
		SitusAddress: "123 MAIN ST",
		City:         "MURFREESBORO",
		State:        "TN",
		Zip:          "37130",
		OwnerName:    strPtr("SMITH JOHN"),
		SaleDate:     "2025-01-08",
		SalePrice:    250000,
		SourceURL:    "http://example.test/parcel/1",
		ExtractedAt:  time.Date(2025, 1, 13, 6, 0, 0, 0, time.UTC),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	salesPath := filepath.Join(dir, "sales.csv")
	rawPath := filepath.Join(dir, "raw", "raw.csv")

	writer, err := NewCSVWriter(salesPath, rawPath)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.WriteSales([]models.CleanedSale{sampleSale()}); err != nil {
		t.Fatalf("write sales: %v", err)
	}
	if err := writer.WriteRaw([]models.RawParcelRecord{validRecord(), validRecord()}); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	records := readCSV(t, salesPath)
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "parcel_id" || records[0][8] != "sale_price" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][5] != "SMITH JOHN" || records[1][6] != "" || records[1][8] != "250000" {
		t.Fatalf("unexpected row: %v", records[1])
	}

	if raw := readCSV(t, rawPath); len(raw) != 3 {
		t.Fatalf("raw records=%d, want 3", len(raw))
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return records
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	salesPath := filepath.Join(dir, "sales.jsonl")
	rawPath := filepath.Join(dir, "raw.jsonl")

	writer, err := NewJSONWriter(salesPath, rawPath)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.WriteSales([]models.CleanedSale{sampleSale()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.WriteRaw([]models.RawParcelRecord{validRecord()}); err != nil {
		t.Fatalf("write raw json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(salesPath)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if v, ok := decoded["owner_mailing_address"]; !ok || v != nil {
			t.Fatalf("owner_mailing_address = %v (present=%v), want null", v, ok)
		}
		if decoded["sale_price"] != float64(250000) {
			t.Fatalf("sale_price = %v", decoded["sale_price"])
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 1 {
		t.Fatalf("json lines=%d, want 1", count)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	paths := DualPaths{
		SalesCSV:  filepath.Join(dir, "sales.csv"),
		RawCSV:    filepath.Join(dir, "raw.csv"),
		SalesJSON: filepath.Join(dir, "sales.jsonl"),
		RawJSON:   filepath.Join(dir, "raw.jsonl"),
	}

	writer, err := NewDualWriter(paths)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.WriteSales([]models.CleanedSale{sampleSale()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.WriteRaw([]models.RawParcelRecord{validRecord()}); err != nil {
		t.Fatalf("write dual raw: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	for _, p := range []string{paths.SalesCSV, paths.RawCSV, paths.SalesJSON, paths.RawJSON} {
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Fatalf("%s missing or empty", p)
		}
	}
}
