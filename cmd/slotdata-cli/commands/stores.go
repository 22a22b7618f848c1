package commands

import (
	"log/slog"
	"os"

	"pachidata-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	storesStats      *int64
	storesReactivate *int64
)

func init() {
	storesStats = storesCmd.Flags().Int64("stats", 0, "Print one store's record totals instead of the catalog.")
	storesReactivate = storesCmd.Flags().Int64("reactivate", 0, "Reactivate a store deactivated by the failure breaker.")
	rootCmd.AddCommand(storesCmd)
}

var storesCmd = &cobra.Command{
	Use:   "stores [--stats <id>] [--reactivate <id>]",
	Short: "Prints the active store catalog and its health counters.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database := openDatabase()
		defer database.Close()
		svc := openService(database)

		if *storesReactivate != 0 {
			if err := svc.Registry().Reactivate(ctx, *storesReactivate); err != nil {
				serviceutil.Fatal("failed to reactivate store", err)
			}
			slog.Info("store reactivated", "store_id", *storesReactivate)
			return
		}

		if *storesStats != 0 {
			stats, err := svc.GetStoreStats(ctx, *storesStats)
			if err != nil {
				serviceutil.Fatal("failed to load store stats", err)
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Store", "Name", "Records", "Last Date"})
			t.AppendRow(table.Row{stats.Store.StoreID, stats.Store.Name, stats.Records, stats.LastDate})
			t.SetStyle(table.StyleRounded)
			t.Render()
			return
		}

		stores, err := svc.Registry().ActiveStores(ctx)
		if err != nil {
			serviceutil.Fatal("failed to list stores", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Store", "Name", "Prefecture", "Failures", "Last Success"})
		for _, s := range stores {
			last := "-"
			if s.LastSuccessAt.Valid {
				last = formatUnix(s.LastSuccessAt.Int64)
			}
			t.AppendRow(table.Row{s.StoreID, s.Name, s.Prefecture, s.ConsecutiveFailures, last})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
