// Package render turns an aggregated finance summary into the artifacts the
// embed serves: an HTML panel and a CSV row export. Pure functions over the
// summary; no upstream or state access.
package render

import (
	"encoding/csv"
	"html/template"
	"io"

	"github.com/deskledger/finance-embed-go/internal/domain"
)

var panelTmpl = template.Must(template.New("panel").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Account balance — {{.Area}}</title>
<style>
body { font-family: sans-serif; font-size: 13px; margin: 8px; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
td.num, th.num { text-align: right; }
.totals { margin-bottom: 8px; }
.overdue { color: #b00020; }
.asof { color: #777; font-size: 11px; }
</style>
</head>
<body>
<div class="totals">
<strong>Account balance:</strong> {{.Summary.AccountBalance}}
&nbsp;|&nbsp;
<strong class="overdue">Overdue:</strong> <span class="overdue">{{.Summary.OverdueBalance}}</span>
</div>
<table>
<tr><th>Date</th><th>Type</th><th>Number</th><th>Due</th><th class="num">Total</th><th class="num">Balance</th></tr>
{{range .Summary.Rows}}<tr><td>{{.Date}}</td><td>{{.Type}}</td><td>{{.Number}}</td><td>{{.DueDate}}</td><td class="num">{{.Total}}</td><td class="num">{{.Balance}}</td></tr>
{{end}}</table>
<p class="asof">As of {{.Summary.AsOf.Format "2006-01-02 15:04:05"}}</p>
</body>
</html>
`))

type panelData struct {
	Area    string
	Summary *domain.FinanceSummary
}

// HTML writes the embed panel for the summary.
func HTML(w io.Writer, area string, summary *domain.FinanceSummary) error {
	return panelTmpl.Execute(w, panelData{Area: area, Summary: summary})
}

// CSV writes the document rows with a header line.
func CSV(w io.Writer, summary *domain.FinanceSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Contact", "Date", "Type", "Number", "DueDate", "Total", "Balance"}); err != nil {
		return err
	}
	for _, row := range summary.Rows {
		record := []string{
			row.ContactName,
			row.Date,
			string(row.Type),
			row.Number,
			row.DueDate,
			row.Total,
			row.Balance,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
