package commands

import (
	"database/sql"
	"fmt"
	"os"

	"pachidata-backend/lib/serviceutil"
	"pachidata-backend/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func nullStr(v int64, valid bool) string {
	if !valid {
		return "-"
	}
	return fmt.Sprintf("%d", v)
}

func nullFloatStr(v sql.NullFloat64) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", v.Float64)
}

var (
	recordsStore *int64
	recordsDate  *string
)

func init() {
	recordsStore = recordsCmd.Flags().Int64("store", 0, "The store id to show records for.")
	recordsCmd.MarkFlagRequired("store")
	recordsDate = recordsCmd.Flags().String("date", "", "The date to show (YYYY-MM-DD, defaults to today).")
	rootCmd.AddCommand(recordsCmd)
}

var recordsCmd = &cobra.Command{
	Use:   "records --store <id> [--date <YYYY-MM-DD>]",
	Short: "Prints one store's machine records for a date.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database := openDatabase()
		defer database.Close()
		svc := openService(database)

		date := *recordsDate
		if date == "" {
			date = timezone.Date(timezone.Now())
		}

		records, err := svc.GetRecords(ctx, *recordsStore, date)
		if err != nil {
			serviceutil.Fatal("failed to load records", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Machine", "Name", "Diff", "Games", "BB", "RB", "Rate"})
		for _, r := range records {
			t.AppendRow(table.Row{
				nullStr(r.MachineNumber.Int64, r.MachineNumber.Valid),
				r.MachineName,
				nullStr(r.CreditDiff.Int64, r.CreditDiff.Valid),
				nullStr(r.GameCount.Int64, r.GameCount.Valid),
				nullStr(r.Bb.Int64, r.Bb.Valid),
				nullStr(r.Rb.Int64, r.Rb.Valid),
				nullFloatStr(r.PayoutRate),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
