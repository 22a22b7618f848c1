package minrepo

import (
	"context"
	"strings"

	"pachidata-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// listStrategy handles the mobile-ish layout some stores switched to:
// no tables, one machine per list item, with label/value pairs rendered
// as <dt>/<dd> (or span.label / span.value on older templates).
type listStrategy struct{}

func (listStrategy) Name() string { return "list" }

func (listStrategy) TryParse(ctx context.Context, doc *goquery.Document) []Record {
	var records []Record

	items := doc.Find("li.unit, div.unit_data, li.machine, div.machine_data")
	items.Each(func(_ int, item *goquery.Selection) {
		rec := parseListItem(item)
		records = append(records, rec)
	})

	return records
}

func parseListItem(item *goquery.Selection) Record {
	var rec Record
	var rawParts []string

	// dt/dd layout
	item.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		label := htmlutil.CleanText(dt.Text())
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		value := htmlutil.CleanText(dd.Text())
		rawParts = append(rawParts, label+":"+value)
		assignField(&rec, mapHeader(label), value)
	})

	// span.label / span.value layout
	item.Find("span.label").Each(func(_ int, label *goquery.Selection) {
		value := label.NextFiltered("span.value")
		if value.Length() == 0 {
			return
		}
		l := htmlutil.CleanText(label.Text())
		v := htmlutil.CleanText(value.Text())
		rawParts = append(rawParts, l+":"+v)
		assignField(&rec, mapHeader(l), v)
	})

	// the machine name is usually the item's heading, not a labeled pair
	if rec.MachineName == "" {
		if h := item.Find("h3, h4, .name").First(); h.Length() > 0 {
			rec.MachineName = htmlutil.CleanText(h.Text())
		}
	}

	rec.Raw = strings.Join(rawParts, " | ")
	rec.Token = rowToken(item, rec.MachineNumber)
	return rec
}
