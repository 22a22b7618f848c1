package minrepo

import (
	"context"
	"sort"
	"strings"

	"pachidata-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// columnMap maps the header texts the site has been observed to use
// onto record fields. Several aliases exist because stores render the
// same column under different labels.
var columnMap = map[string]string{
	"台番号":  "machine_number",
	"番号":   "machine_number",
	"台":    "machine_number",
	"機種":   "machine_name",
	"機種名":  "machine_name",
	"差枚":   "credit_diff",
	"総差枚":  "credit_diff",
	"平均差枚": "credit_diff",
	"出玉":   "credit_diff",
	"G数":   "game_count",
	"ゲーム数": "game_count",
	"回転数":  "game_count",
	"平均G数": "game_count",
	"BB":   "bb",
	"RB":   "rb",
	"機械割":  "payout_rate",
	"出率":   "payout_rate",
}

// columnHeaders holds columnMap's keys in a fixed order so that a
// drifted header equidistant from two known ones resolves the same way
// on every run.
var columnHeaders = func() []string {
	keys := make([]string, 0, len(columnMap))
	for k := range columnMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// mapHeader resolves a header cell to a field name. Exact matches win;
// otherwise a small Levenshtein budget absorbs the one-character drift
// (trailing counters, stray whitespace variants) the site produces when
// store operators edit their templates.
func mapHeader(header string) string {
	header = strings.TrimSpace(header)
	if field, ok := columnMap[header]; ok {
		return field
	}
	best := ""
	bestDist := 2 // inclusive budget of 1 edit
	for _, known := range columnHeaders {
		d := matchr.Levenshtein(header, known)
		if d < bestDist {
			bestDist = d
			best = columnMap[known]
		}
	}
	return best
}

// tableStrategy handles the classic layout: one or more <table>
// elements with a header row and one machine per <tr>.
type tableStrategy struct{}

func (tableStrategy) Name() string { return "table" }

func (tableStrategy) TryParse(ctx context.Context, doc *goquery.Document) []Record {
	var records []Record

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var headers []string
		table.Find("th").Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, htmlutil.CleanText(th.Text()))
		})
		if len(headers) == 0 {
			// headerless tables can't be mapped to fields
			return
		}

		fields := make([]string, len(headers))
		mapped := 0
		for i, h := range headers {
			fields[i] = mapHeader(h)
			if fields[i] != "" {
				mapped++
			}
		}
		if mapped == 0 {
			return
		}

		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			if cells.Length() == 0 {
				return
			}

			var rec Record
			var rawParts []string
			cells.Each(func(i int, td *goquery.Selection) {
				text := htmlutil.CleanText(td.Text())
				rawParts = append(rawParts, text)
				if i >= len(fields) {
					return
				}
				assignField(&rec, fields[i], text)
			})

			rec.Raw = strings.Join(rawParts, " | ")
			rec.Token = rowToken(tr, rec.MachineNumber)
			records = append(records, rec)
		})
	})

	return records
}

func assignField(rec *Record, field, text string) {
	switch field {
	case "machine_number":
		if n, ok := parseInt(text); ok {
			rec.MachineNumber = n
		}
	case "machine_name":
		rec.MachineName = text
	case "credit_diff":
		if n, ok := parseInt(text); ok {
			rec.CreditDiff = &n
		}
	case "game_count":
		if n, ok := parseInt(text); ok {
			rec.GameCount = &n
		}
	case "bb":
		if n, ok := parseInt(text); ok {
			rec.BB = &n
		}
	case "rb":
		if n, ok := parseInt(text); ok {
			rec.RB = &n
		}
	case "payout_rate":
		if f, ok := parseFloat(text); ok {
			rec.PayoutRate = &f
		}
	}
}
