package commands

import (
	"errors"
	"log/slog"

	"pachidata-backend/lib/serviceutil"
	"pachidata-backend/services/slotdata"

	"github.com/spf13/cobra"
)

var (
	retrySession *int64
	retryDate    *string
	retryStores  *[]int64
	retrySync    *bool
)

func init() {
	retrySession = retryCmd.Flags().Int64("session", 0, "The session to retry (defaults to the latest session for --date).")
	retryDate = retryCmd.Flags().String("date", "", "Locate the latest session for this date (YYYY-MM-DD, defaults to today).")
	retryStores = retryCmd.Flags().Int64Slice("stores", nil, "Force these store ids regardless of prior outcome or active flag.")
	retrySync = retryCmd.Flags().Bool("sync", false, "Run stores one at a time on the calling goroutine.")
	rootCmd.AddCommand(retryCmd)
}

var retryCmd = &cobra.Command{
	Use:   "retry [--session <id> | --date <YYYY-MM-DD>] [--stores <id,...>]",
	Short: "Re-runs a session's failed stores, folding results back into it.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		database := openDatabase()
		defer database.Close()
		svc := openService(database)

		handle, err := svc.RetryFailed(ctx, slotdata.RetryTarget{
			SessionID: *retrySession,
			Date:      *retryDate,
			Stores:    *retryStores,
		}, slotdata.RunOptions{Sync: *retrySync})
		if errors.Is(err, slotdata.ErrNothingToRetry) {
			slog.Info("nothing to retry")
			return
		}
		if err != nil {
			serviceutil.Fatal("failed to start retry", err)
		}

		session, err := handle.Wait(ctx)
		if err != nil {
			serviceutil.Fatal("failed waiting for retry", err)
		}
		slog.Info("retry finished",
			"session", session.ID,
			"status", session.Status,
			"successful", session.SuccessfulStores,
			"failed", session.FailedStores,
			"records", session.TotalRecords,
		)
	},
}
