package commands

import (
	"log/slog"
	"time"

	"pachidata-backend/lib/serviceutil"
	"pachidata-backend/lib/timezone"
	"pachidata-backend/services/slotdata"

	"github.com/spf13/cobra"
)

var (
	scrapeDate        *string
	scrapeStores      *[]int64
	scrapeSync        *bool
	scrapeConcurrency *int
)

func init() {
	scrapeDate = scrapeCmd.Flags().String("date", "", "The date to scrape (YYYY-MM-DD, defaults to today).")
	scrapeStores = scrapeCmd.Flags().Int64Slice("stores", nil, "Restrict the run to these store ids (runs them even when deactivated).")
	scrapeSync = scrapeCmd.Flags().Bool("sync", false, "Run stores one at a time on the calling goroutine.")
	scrapeConcurrency = scrapeCmd.Flags().Int("concurrency", 0, "Worker count override (0 uses the service default).")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--date <YYYY-MM-DD>] [--stores <id,...>]",
	Short: "Runs a scraping session and waits for it to finish.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database := openDatabase()
		defer database.Close()
		svc := openService(database)

		date := *scrapeDate
		if date == "" {
			date = timezone.Date(timezone.Now())
		}

		t1 := time.Now()
		handle, err := svc.RunSession(ctx, date, slotdata.RunOptions{
			Stores:      *scrapeStores,
			Sync:        *scrapeSync,
			Concurrency: *scrapeConcurrency,
		})
		if err != nil {
			serviceutil.Fatal("failed to start session", err)
		}
		session, err := handle.Wait(ctx)
		if err != nil {
			serviceutil.Fatal("failed waiting for session", err)
		}
		t2 := time.Now()

		slog.Info("session finished",
			"session", session.ID,
			"status", session.Status,
			"successful", session.SuccessfulStores,
			"failed", session.FailedStores,
			"records", session.TotalRecords,
			"seconds", t2.Sub(t1).Seconds(),
		)
	},
}
