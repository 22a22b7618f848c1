package minrepo

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

// Record is one machine-day observation as it comes off the page,
// before any idempotency key or store context is attached.
type Record struct {
	// Token is the site-native identity of the row, the machine number
	// when present or the `num` query param of the row's detail link.
	// It seeds the idempotency key, so it must be stable across fetches
	// of the same page.
	Token         string
	MachineNumber int64
	MachineName   string
	CreditDiff    *int64
	GameCount     *int64
	PayoutRate    *float64
	BB            *int64
	RB            *int64
	// Raw is the cleaned text of the source row, kept verbatim for
	// re-derivation and debugging.
	Raw string
}

// A Strategy is a single structural hypothesis about how a store page
// lays out its machine data. Strategies return candidate rows without
// validating them.
type Strategy interface {
	Name() string
	TryParse(ctx context.Context, doc *goquery.Document) []Record
}

// DefaultStrategies is the ordered list tried on every page. Order
// matters: the first strategy producing at least one valid record wins
// and the rest are skipped. New site layouts get appended as new
// strategies, existing ones are never edited to chase drift.
func DefaultStrategies() []Strategy {
	return []Strategy{
		scriptStrategy{},
		tableStrategy{},
		listStrategy{},
	}
}

// Parse runs the ordered strategy list against the page and returns the
// valid records of the first strategy that recognized anything, along
// with the strategy's name. Individual malformed rows are dropped with
// a logged reason, they never fail the whole page. ErrNoMatch is
// returned when no strategy produced a single valid record.
func Parse(ctx context.Context, pageHTML string, strategies []Strategy) ([]Record, string, error) {
	ctx, span := tracer.Start(ctx, "Parse")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}

	for _, strat := range strategies {
		candidates := strat.TryParse(ctx, doc)
		if len(candidates) == 0 {
			continue
		}

		valid := candidates[:0]
		for _, c := range candidates {
			if reason := validate(c); reason != "" {
				slog.DebugContext(ctx, "dropping row",
					"strategy", strat.Name(),
					"reason", reason,
					"raw", c.Raw,
				)
				continue
			}
			valid = append(valid, c)
		}
		if len(valid) == 0 {
			continue
		}

		span.SetAttributes(
			attribute.String("strategy", strat.Name()),
			attribute.Int("records", len(valid)),
		)
		return valid, strat.Name(), nil
	}

	return nil, "", ErrNoMatch
}

// validate returns a non-empty reason when the candidate is missing a
// mandatory field. Machine identity plus at least one of credit-diff /
// game-count is the floor for a usable observation.
func validate(r Record) string {
	if r.Token == "" {
		return "missing machine identity"
	}
	if r.CreditDiff == nil && r.GameCount == nil {
		return "missing both credit difference and game count"
	}
	return ""
}

// rowToken derives the site-native token for a row: an explicit machine
// number when one parsed, otherwise the `num` query parameter of the
// first anchor inside the row.
func rowToken(sel *goquery.Selection, machineNumber int64) string {
	if machineNumber != 0 {
		return strconv.FormatInt(machineNumber, 10)
	}
	href, ok := sel.Find("a[href]").First().Attr("href")
	if !ok {
		return ""
	}
	if num := numParam(href); num != "" {
		return num
	}
	return ""
}

func numParam(href string) string {
	idx := strings.Index(href, "num=")
	if idx < 0 {
		return ""
	}
	rest := href[idx+len("num="):]
	if amp := strings.IndexAny(rest, "&#"); amp >= 0 {
		rest = rest[:amp]
	}
	if _, err := strconv.ParseInt(rest, 10, 64); err != nil {
		return ""
	}
	return rest
}
