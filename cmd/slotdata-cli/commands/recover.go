package commands

import (
	"log/slog"

	"pachidata-backend/lib/serviceutil"
	"pachidata-backend/services/slotdata"

	"github.com/spf13/cobra"
)

var (
	recoverStart *string
	recoverEnd   *string
	recoverSync  *bool
)

func init() {
	recoverStart = recoverCmd.Flags().String("start", "", "First date of the range (YYYY-MM-DD).")
	recoverEnd = recoverCmd.Flags().String("end", "", "Last date of the range, inclusive (YYYY-MM-DD).")
	recoverCmd.MarkFlagRequired("start")
	recoverCmd.MarkFlagRequired("end")
	recoverSync = recoverCmd.Flags().Bool("sync", false, "Run stores one at a time on the calling goroutine.")
	rootCmd.AddCommand(recoverCmd)
}

var recoverCmd = &cobra.Command{
	Use:   "recover --start <YYYY-MM-DD> --end <YYYY-MM-DD>",
	Short: "Scrapes only the store/date combinations missing records in the range.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database := openDatabase()
		defer database.Close()
		svc := openService(database)

		sessions, err := svc.RecoverRange(ctx, *recoverStart, *recoverEnd, slotdata.RunOptions{
			Sync: *recoverSync,
		})
		if err != nil {
			serviceutil.Fatal("range recovery failed", err)
		}
		slog.Info("range recovery finished", "sessions", len(sessions))
	},
}
