package commands

import (
	"os"
	"time"

	"pachidata-backend/lib/serviceutil"
	"pachidata-backend/lib/timezone"
	"pachidata-backend/services/slotdata/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	sessionsLimit  *int64
	sessionsDetail *int64
	sessionsDate   *string
)

func init() {
	sessionsLimit = sessionsCmd.Flags().Int64("limit", 20, "How many sessions to list, newest first.")
	sessionsDetail = sessionsCmd.Flags().Int64("id", 0, "Print one session with its error log instead of the list.")
	sessionsDate = sessionsCmd.Flags().String("date", "", "List only sessions for this date (YYYY-MM-DD).")
	rootCmd.AddCommand(sessionsCmd)
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions [--limit <n> | --id <session>]",
	Short: "Prints recent scraping sessions.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database := openDatabase()
		defer database.Close()
		svc := openService(database)

		if *sessionsDetail != 0 {
			detail, err := svc.GetSession(ctx, *sessionsDetail)
			if err != nil {
				serviceutil.Fatal("failed to load session", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Store", "Phase", "Attempt", "Message", "At"})
			for _, e := range detail.Errors {
				t.AppendRow(table.Row{
					e.StoreID, e.Phase, e.Attempt, e.Message, formatUnix(e.CreatedAt),
				})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return
		}

		var sessions []db.ScrapingSession
		var err error
		if *sessionsDate != "" {
			sessions, err = svc.ListSessionsForDate(ctx, *sessionsDate)
		} else {
			sessions, err = svc.ListSessions(ctx, *sessionsLimit)
		}
		if err != nil {
			serviceutil.Fatal("failed to list sessions", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Date", "Status", "OK", "Failed", "Records", "Ended"})
		for _, s := range sessions {
			ended := ""
			if s.EndedAt.Valid {
				ended = formatUnix(s.EndedAt.Int64)
			}
			t.AppendRow(table.Row{
				s.ID, s.Date, s.Status, s.SuccessfulStores, s.FailedStores, s.TotalRecords, ended,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).In(timezone.Location).Format("2006-01-02 15:04:05")
}
