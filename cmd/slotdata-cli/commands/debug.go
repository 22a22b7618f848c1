package commands

import (
	"fmt"
	"os"
	"strings"

	"pachidata-backend/lib/htmlutil"
	"pachidata-backend/lib/scrapers/minrepo"
	"pachidata-backend/lib/serviceutil"
	"pachidata-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	debugStore *int64
	debugDate  *string
	debugDump  *string
)

func init() {
	debugStore = debugCmd.Flags().Int64("store", 0, "The store id to fetch.")
	debugCmd.MarkFlagRequired("store")
	debugDate = debugCmd.Flags().String("date", "", "The date to fetch (YYYY-MM-DD, defaults to today).")
	debugDump = debugCmd.Flags().String("dump", "", "Also write the raw page html to this file.")
	rootCmd.AddCommand(debugCmd)
}

// debugCmd fetches a single page and prints its structural inventory,
// tables with their headers and row counts, candidate list containers,
// inline script hits. Used to diagnose parser misses after the site
// changes markup.
var debugCmd = &cobra.Command{
	Use:   "debug --store <id> [--date <YYYY-MM-DD>]",
	Short: "Fetches one store page and prints its table and list structure.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		client, err := minrepo.NewClient(minrepo.ClientOptions{})
		if err != nil {
			serviceutil.Fatal("failed to initialize scrape client", err)
		}

		date := *debugDate
		if date == "" {
			date = timezone.Date(timezone.Now())
		}

		page, err := client.Fetch(ctx, *debugStore, date)
		if err != nil {
			serviceutil.Fatal("fetch failed", err)
		}
		if *debugDump != "" {
			if err := os.WriteFile(*debugDump, []byte(page), 0644); err != nil {
				serviceutil.Fatal("failed to write dump", err)
			}
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
		if err != nil {
			serviceutil.Fatal("failed to parse html", err)
		}

		fmt.Printf("url: %s\n", client.PageUrl(*debugStore, date))
		fmt.Printf("bytes: %d\n\n", len(page))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Table", "Rows", "Headers"})
		doc.Find("table").Each(func(i int, tbl *goquery.Selection) {
			var headers []string
			tbl.Find("th").Each(func(_ int, th *goquery.Selection) {
				headers = append(headers, htmlutil.CleanText(th.Text()))
			})
			t.AppendRow(table.Row{
				i, tbl.Find("tr").Length(), strings.Join(headers, " | "),
			})
		})
		t.SetStyle(table.StyleRounded)
		t.Render()

		units := doc.Find("li.unit, div.unit_data, li.machine, div.machine_data").Length()
		fmt.Printf("\nlist units: %d\n", units)

		scripts := 0
		doc.Find("script").Each(func(_ int, s *goquery.Selection) {
			text := s.Text()
			if strings.Contains(text, "machineData") ||
				strings.Contains(text, "unitData") ||
				strings.Contains(text, "slotData") {
				scripts++
			}
		})
		fmt.Printf("data scripts: %d\n", scripts)
	},
}
