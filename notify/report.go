// Package notify delivers the weekly sales report by email.
package notify

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-sales/models"
	"github.com/aluiziolira/go-scrape-sales/pipeline"
)

// Report is the content of one weekly email.
type Report struct {
	County      string
	Range       models.DateRange
	Sales       []models.CleanedSale
	Stats       pipeline.SalesStats
	Reasons     models.FilterReasons
	GeneratedAt time.Time
}

// Subject returns the email subject line.
func (r Report) Subject() string {
	return fmt.Sprintf("%s County property sales, %s (%d sales)", r.County, r.Range.Label, len(r.Sales))
}

// AttachmentName returns the CSV attachment filename.
func (r Report) AttachmentName() string {
	return fmt.Sprintf("sales_%s_%s.csv", r.Range.Start.Format("2006-01-02"), r.Range.End.Format("2006-01-02"))
}

// CSV renders the sales with the same columns as the CSV output file.
func (r Report) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(pipeline.SalesCSVHeader()); err != nil {
		return nil, err
	}
	for _, s := range r.Sales {
		if err := w.Write(pipeline.SalesCSVRecord(s)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write report csv: %w", err)
	}
	return buf.Bytes(), nil
}

type reasonLine struct {
	Reason string
	Count  int
}

func (r Report) reasonLines() []reasonLine {
	lines := make([]reasonLine, 0, len(models.AllFilterReasons))
	for _, reason := range models.AllFilterReasons {
		if n := r.Reasons[reason]; n > 0 {
			lines = append(lines, reasonLine{Reason: string(reason), Count: n})
		}
	}
	return lines
}

var funcs = template.FuncMap{
	"dollars": formatDollars,
	"dollarsf": func(f float64) string {
		return formatDollars(int64(f + 0.5))
	},
}

var htmlTemplate = template.Must(template.New("report").Funcs(funcs).Parse(`<!DOCTYPE html>
<html><body style="font-family: sans-serif">
<h2>{{.County}} County residential sales</h2>
<p>{{.Range.Label}}: <strong>{{len .Sales}}</strong> sales</p>
{{if .Sales}}<table cellpadding="4" cellspacing="0" border="1">
<tr><th>Sale Date</th><th>Address</th><th>City</th><th>Price</th><th>Owner</th><th>Mailing Address</th><th>Instrument</th></tr>
{{range .Sales}}<tr><td>{{.SaleDate}}</td><td><a href="{{.SourceURL}}">{{.SitusAddress}}</a></td><td>{{.City}}</td><td align="right">{{dollars .SalePrice}}</td><td>{{.Owner}}</td><td>{{.MailingAddress}}</td><td>{{.DeedInstrument}}</td></tr>
{{end}}</table>
<p>Total {{dollars .Stats.Total}}, average {{dollarsf .Stats.Average}}, median {{dollarsf .Stats.Median}}, range {{dollars .Stats.Min}} to {{dollars .Stats.Max}}.</p>
{{end}}{{with .ReasonLines}}<p>Filtered out:</p>
<ul>{{range .}}<li>{{.Reason}}: {{.Count}}</li>{{end}}</ul>
{{end}}<p style="color:#888">Generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
</body></html>
`))

type templateData struct {
	Report
	ReasonLines []reasonLine
}

// HTML renders the HTML body.
func (r Report) HTML() (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, templateData{Report: r, ReasonLines: r.reasonLines()}); err != nil {
		return "", fmt.Errorf("render report html: %w", err)
	}
	return buf.String(), nil
}

// Text renders the plain-text body.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s County residential sales\n%s: %d sales\n\n", r.County, r.Range.Label, len(r.Sales))
	for _, s := range r.Sales {
		fmt.Fprintf(&b, "%s  %-40s %-15s %12s  %s\n", s.SaleDate, s.SitusAddress, s.City, formatDollars(s.SalePrice), s.Owner())
	}
	if len(r.Sales) > 0 {
		fmt.Fprintf(&b, "\nTotal %s, average %s, median %s\n",
			formatDollars(r.Stats.Total),
			formatDollars(int64(r.Stats.Average+0.5)),
			formatDollars(int64(r.Stats.Median+0.5)),
		)
	}
	if lines := r.reasonLines(); len(lines) > 0 {
		b.WriteString("\nFiltered out:\n")
		for _, l := range lines {
			fmt.Fprintf(&b, "  %s: %d\n", l.Reason, l.Count)
		}
	}
	return b.String()
}

// formatDollars renders 1234567 as "$1,234,567".
func formatDollars(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + "$" + b.String()
}
