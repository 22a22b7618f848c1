package minrepo

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"pachidata-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Some store pages ship their data as a JSON blob assigned to a global
// in an inline script and render the DOM client-side. This strategy
// pulls the blob out before the DOM strategies get a chance, since the
// JSON is both faster and less ambiguous than scraping the rendered
// markup.
type scriptStrategy struct{}

func (scriptStrategy) Name() string { return "script" }

var machineDataRegex = regexp.MustCompile(`(?ms)(?:machineData|unitData|slotData)\s*=\s*(\[.+?\]);`)

func (scriptStrategy) TryParse(ctx context.Context, doc *goquery.Document) []Record {
	var records []Record

	for _, script := range doc.Find("script").Nodes {
		text := htmlutil.GetText(script)
		groups := machineDataRegex.FindStringSubmatch(text)
		if len(groups) < 2 {
			continue
		}

		var items []map[string]json.RawMessage
		if err := json.Unmarshal([]byte(groups[1]), &items); err != nil {
			continue
		}

		for _, item := range items {
			records = append(records, recordFromJSON(item))
		}
	}

	return records
}

// key aliases seen across stores' JSON payloads, english and japanese
var jsonIntKeys = map[string][]string{
	"machine_number": {"machine_number", "no", "num", "number", "台番号"},
	"credit_diff":    {"credit_diff", "difference", "diff", "差枚", "samai"},
	"game_count":     {"game_count", "games", "g", "回転数"},
	"bb":             {"bb"},
	"rb":             {"rb"},
}

var jsonStrKeys = map[string][]string{
	"machine_name": {"machine_name", "name", "model", "機種"},
}

var jsonFloatKeys = map[string][]string{
	"payout_rate": {"payout_rate", "rate", "出率"},
}

func recordFromJSON(item map[string]json.RawMessage) Record {
	var rec Record

	lower := make(map[string]json.RawMessage, len(item))
	for k, v := range item {
		lower[strings.ToLower(k)] = v
	}

	for field, aliases := range jsonIntKeys {
		for _, key := range aliases {
			raw, ok := lower[key]
			if !ok {
				continue
			}
			if n, ok := rawToInt(raw); ok {
				assignInt(&rec, field, n)
			}
			break
		}
	}
	for field, aliases := range jsonStrKeys {
		for _, key := range aliases {
			raw, ok := lower[key]
			if !ok {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil {
				assignField(&rec, field, s)
			}
			break
		}
	}
	for field, aliases := range jsonFloatKeys {
		for _, key := range aliases {
			raw, ok := lower[key]
			if !ok {
				continue
			}
			if f, ok := rawToFloat(raw); ok {
				assignField(&rec, field, strconv.FormatFloat(f, 'f', -1, 64))
			}
			break
		}
	}

	compact, _ := json.Marshal(item)
	rec.Raw = string(compact)
	if rec.MachineNumber != 0 {
		rec.Token = strconv.FormatInt(rec.MachineNumber, 10)
	}
	return rec
}

func assignInt(rec *Record, field string, n int64) {
	switch field {
	case "machine_number":
		rec.MachineNumber = n
	case "credit_diff":
		v := n
		rec.CreditDiff = &v
	case "game_count":
		v := n
		rec.GameCount = &v
	case "bb":
		v := n
		rec.BB = &v
	case "rb":
		v := n
		rec.RB = &v
	}
}

// JSON payloads mix bare numbers with formatted strings ("+1,280")
// depending on the store, accept both.
func rawToInt(raw json.RawMessage) (int64, bool) {
	var n int64
	if json.Unmarshal(raw, &n) == nil {
		return n, true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return parseInt(s)
	}
	return 0, false
}

func rawToFloat(raw json.RawMessage) (float64, bool) {
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f, true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return parseFloat(s)
	}
	return 0, false
}
