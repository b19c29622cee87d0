package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/aluiziolira/go-scrape-sales/models"
)

// ErrUnrecognisedPage is returned when a page has none of the expected panels.
var ErrUnrecognisedPage = errors.New("parser: unrecognised page layout")

var bookPageSplit = regexp.MustCompile(`\s*[-/]\s*|\s+`)

// SearchForm is the sale search form as served by the site.
type SearchForm struct {
	Action string
	Method string
	Fields map[string]string
}

// ResultRow is one row of the search results grid.
type ResultRow struct {
	ParcelID        string
	OwnerName       string
	PropertyAddress string
	City            string
	Zip             string
	ClassCode       string
	LandUse         string
	SaleDate        string
	QualifiedSale   string
	DetailHref      string
}

// ResultsPage is one page of search results.
type ResultsPage struct {
	Rows     []ResultRow
	NextHref string
	HasNext  bool
}

// DetailParser turns a parcel detail page into ParcelDetails. Layout
// changes on the site should only need a new implementation of this.
type DetailParser interface {
	ParseDetail(body []byte) (*models.ParcelDetails, error)
}

// HTMLDetailParser reads the label/value panels and the sales history
// table of a parcel page.
type HTMLDetailParser struct{}

// ParseSearchForm extracts the search form action and its hidden inputs.
func ParseSearchForm(body []byte) (*SearchForm, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	form := doc.Find("form#search-form").First()
	if form.Length() == 0 {
		form = doc.Find("form").First()
	}
	if form.Length() == 0 {
		return nil, ErrUnrecognisedPage
	}

	sf := &SearchForm{
		Action: strings.TrimSpace(form.AttrOr("action", "")),
		Method: strings.ToUpper(strings.TrimSpace(form.AttrOr("method", "POST"))),
		Fields: make(map[string]string),
	}
	form.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
		if name, ok := in.Attr("name"); ok && name != "" {
			sf.Fields[name] = in.AttrOr("value", "")
		}
	})
	return sf, nil
}

// ParseResultsPage reads the results grid and the pagination control.
func ParseResultsPage(body []byte) (*ResultsPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	page := &ResultsPage{}
	table := doc.Find("table#search-results").First()
	if table.Length() == 0 {
		// "no records found" pages carry no grid at all
		return page, nil
	}

	columns := headerColumns(table)
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		row := ResultRow{
			ParcelID:        cellText(cells, columns, colParcel),
			OwnerName:       cellText(cells, columns, colOwner),
			PropertyAddress: cellText(cells, columns, colAddress),
			City:            cellText(cells, columns, colCity),
			Zip:             cellText(cells, columns, colZip),
			ClassCode:       cellText(cells, columns, colClass),
			LandUse:         cellText(cells, columns, colLandUse),
			SaleDate:        cellText(cells, columns, colDate),
			QualifiedSale:   cellText(cells, columns, colQualified),
			DetailHref:      strings.TrimSpace(tr.Find("a[href]").First().AttrOr("href", "")),
		}
		if row.ParcelID == "" || row.DetailHref == "" {
			return
		}
		page.Rows = append(page.Rows, row)
	})

	next := doc.Find("a.next, li.next a, a[rel=next]").First()
	if next.Length() > 0 && !isDisabled(next) {
		page.NextHref = strings.TrimSpace(next.AttrOr("href", ""))
		page.HasNext = true
	}
	return page, nil
}

// ParseDetail implements DetailParser.
func (HTMLDetailParser) ParseDetail(body []byte) (*models.ParcelDetails, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	details := &models.ParcelDetails{}
	found := false
	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		label := strings.ToLower(collapse(dt.Text()))
		value := collapse(nodeText(dt.NextFiltered("dd")))
		if value == "" {
			return
		}
		switch {
		case strings.Contains(label, "mailing"):
			details.OwnerMailingAddress = value
		case strings.Contains(label, "owner"):
			details.OwnerName = value
		case strings.Contains(label, "land use"):
			details.LandUse = value
		case strings.Contains(label, "class"):
			details.ClassCode = value
		case strings.Contains(label, "city"):
			details.City = value
		case strings.Contains(label, "zip"):
			details.Zip = value
		case strings.Contains(label, "address"), strings.Contains(label, "location"):
			details.PropertyAddress = value
		default:
			return
		}
		found = true
	})

	salesTable := doc.Find("table#sales-history").First()
	if salesTable.Length() > 0 {
		found = true
		details.Sales = parseSales(salesTable)
	}

	if !found {
		return nil, ErrUnrecognisedPage
	}
	return details, nil
}

func parseSales(table *goquery.Selection) []models.SaleRecord {
	columns := headerColumns(table)
	var sales []models.SaleRecord
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		sale := models.SaleRecord{
			Date:          cellText(cells, columns, colDate),
			Price:         cellText(cells, columns, colPrice),
			Instrument:    cellText(cells, columns, colInstrument),
			Qualification: cellText(cells, columns, colQualified),
			Book:          cellText(cells, columns, colBook),
			Page:          cellText(cells, columns, colPage),
		}
		if combined := cellText(cells, columns, colBookPage); combined != "" {
			parts := bookPageSplit.Split(combined, 2)
			sale.Book = parts[0]
			if len(parts) > 1 {
				sale.Page = parts[1]
			}
		}
		if sale.Date == "" && sale.Price == "" {
			return
		}
		sales = append(sales, sale)
	})
	return sales
}

type column int

const (
	colUnknown column = iota
	colParcel
	colOwner
	colAddress
	colCity
	colZip
	colClass
	colLandUse
	colDate
	colPrice
	colInstrument
	colQualified
	colBook
	colPage
	colBookPage
)

func classifyHeader(header string) column {
	h := strings.ToLower(collapse(header))
	switch {
	case strings.Contains(h, "parcel"), strings.Contains(h, "map"):
		return colParcel
	case strings.Contains(h, "owner"):
		return colOwner
	case strings.Contains(h, "land use"):
		return colLandUse
	case strings.Contains(h, "class"):
		return colClass
	case strings.Contains(h, "address"), strings.Contains(h, "location"):
		return colAddress
	case strings.Contains(h, "city"):
		return colCity
	case strings.Contains(h, "zip"):
		return colZip
	case strings.Contains(h, "qual"):
		return colQualified
	case strings.Contains(h, "date"):
		return colDate
	case strings.Contains(h, "price"), strings.Contains(h, "amount"):
		return colPrice
	case strings.Contains(h, "book") && strings.Contains(h, "page"):
		return colBookPage
	case strings.Contains(h, "book"):
		return colBook
	case strings.Contains(h, "page"):
		return colPage
	case strings.Contains(h, "instrument"), strings.Contains(h, "deed"):
		return colInstrument
	}
	return colUnknown
}

func headerColumns(table *goquery.Selection) map[column]int {
	columns := make(map[column]int)
	table.Find("thead th, tr th").Each(func(i int, th *goquery.Selection) {
		c := classifyHeader(th.Text())
		if c == colUnknown {
			return
		}
		if _, ok := columns[c]; !ok {
			columns[c] = i
		}
	})
	return columns
}

func cellText(cells *goquery.Selection, columns map[column]int, c column) string {
	idx, ok := columns[c]
	if !ok || idx >= cells.Length() {
		return ""
	}
	return collapse(nodeText(cells.Eq(idx)))
}

// nodeText is Selection.Text with <br> rendered as ", ".
func nodeText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			b.WriteString(" ")
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteString(", ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.ReplaceAll(collapse(b.String()), " ,", ",")
}

func isDisabled(a *goquery.Selection) bool {
	if a.HasClass("disabled") || a.Parent().HasClass("disabled") {
		return true
	}
	if _, ok := a.Attr("disabled"); ok {
		return true
	}
	if strings.EqualFold(a.AttrOr("aria-disabled", ""), "true") {
		return true
	}
	href := strings.TrimSpace(a.AttrOr("href", ""))
	return href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:")
}
