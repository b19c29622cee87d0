package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-sales/models"
)

var (
	salesHeader = []string{
		"parcel_id", "situs_address", "city", "state", "zip", "owner_name", "owner_mailing_address",
		"sale_date", "sale_price", "deed_instrument", "land_use", "source_url", "extracted_at",
	}
	rawHeader = []string{
		"parcel_id", "owner_name", "owner_mailing_address", "property_address", "city", "zip", "class_code",
		"land_use", "sale_date", "sale_price", "deed_instrument", "qualified_sale", "source_url",
	}
)

// SalesCSVRecord renders a sale as a CSV row matching the sales header.
func SalesCSVRecord(s models.CleanedSale) []string {
	return []string{
		s.ParcelID,
		s.SitusAddress,
		s.City,
		s.State,
		s.Zip,
		s.Owner(),
		s.MailingAddress(),
		s.SaleDate,
		strconv.FormatInt(s.SalePrice, 10),
		s.DeedInstrument,
		s.LandUse,
		s.SourceURL,
		s.ExtractedAt.Format(time.RFC3339),
	}
}

// SalesCSVHeader returns a copy of the sales CSV header.
func SalesCSVHeader() []string {
	return append([]string(nil), salesHeader...)
}

func rawCSVRecord(r models.RawParcelRecord) []string {
	return []string{
		r.ParcelID,
		r.OwnerName,
		r.OwnerMailingAddress,
		r.PropertyAddress,
		r.City,
		r.Zip,
		r.ClassCode,
		r.LandUse,
		r.SaleDate,
		r.SalePrice,
		r.DeedInstrument,
		r.QualifiedSale,
		r.SourceURL,
	}
}

// csvFile is one CSV output with its header already written.
type csvFile struct {
	file   *os.File
	writer *csv.Writer
}

func newCSVFile(filename string, header []string) (*csvFile, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &csvFile{file: f, writer: writer}, nil
}

func (cf *csvFile) writeAll(rows [][]string) error {
	for _, row := range rows {
		if err := cf.writer.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cf.writer.Flush()
	if err := cf.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func (cf *csvFile) close() error {
	cf.writer.Flush()
	if err := cf.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cf.file.Close()
}

// CSVWriter writes sales and raw records to two CSV files.
type CSVWriter struct {
	sales *csvFile
	raw   *csvFile
	mu    sync.Mutex
}

// NewCSVWriter creates both files and writes their header rows.
func NewCSVWriter(salesFilename, rawFilename string) (*CSVWriter, error) {
	sales, err := newCSVFile(salesFilename, salesHeader)
	if err != nil {
		return nil, err
	}
	raw, err := newCSVFile(rawFilename, rawHeader)
	if err != nil {
		sales.close()
		return nil, err
	}
	return &CSVWriter{sales: sales, raw: raw}, nil
}

// WriteSales appends sales to the sales CSV.
func (cw *CSVWriter) WriteSales(sales []models.CleanedSale) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	rows := make([][]string, 0, len(sales))
	for _, s := range sales {
		rows = append(rows, SalesCSVRecord(s))
	}
	return cw.sales.writeAll(rows)
}

// WriteRaw appends raw records to the raw CSV.
func (cw *CSVWriter) WriteRaw(records []models.RawParcelRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, rawCSVRecord(r))
	}
	return cw.raw.writeAll(rows)
}

// Close flushes and closes both file handles.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	salesErr := cw.sales.close()
	rawErr := cw.raw.close()
	if salesErr != nil {
		return salesErr
	}
	return rawErr
}

// Validate ensures the sales file has content.
func (cw *CSVWriter) Validate() error {
	info, err := cw.sales.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// jsonlFile is one newline-delimited JSON output.
type jsonlFile struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
}

func newJSONLFile(filename string) (*jsonlFile, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &jsonlFile{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

func (jf *jsonlFile) close() error {
	if err := jf.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jf.file.Close()
}

func encodeAll[T any](jf *jsonlFile, items []T) error {
	for _, item := range items {
		if err := jf.encoder.Encode(item); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jf.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	sales *jsonlFile
	raw   *jsonlFile
	mu    sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(salesFilename, rawFilename string) (*JSONWriter, error) {
	sales, err := newJSONLFile(salesFilename)
	if err != nil {
		return nil, err
	}
	raw, err := newJSONLFile(rawFilename)
	if err != nil {
		sales.close()
		return nil, err
	}
	return &JSONWriter{sales: sales, raw: raw}, nil
}

// WriteSales appends sales in JSONL format.
func (jw *JSONWriter) WriteSales(sales []models.CleanedSale) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return encodeAll(jw.sales, sales)
}

// WriteRaw appends raw records in JSONL format.
func (jw *JSONWriter) WriteRaw(records []models.RawParcelRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return encodeAll(jw.raw, records)
}

// Close flushes buffers and closes the underlying files.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	salesErr := jw.sales.close()
	rawErr := jw.raw.close()
	if salesErr != nil {
		return salesErr
	}
	return rawErr
}

// Validate ensures the sales file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.sales.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
