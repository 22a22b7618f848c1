package commands

import (
	"log/slog"

	"pachidata-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Creates the database and seeds the bootstrap store list.",
	Run: func(cmd *cobra.Command, args []string) {
		database := openDatabase()
		defer database.Close()
		svc := openService(database)

		if err := svc.SetupStores(cmd.Context()); err != nil {
			serviceutil.Fatal("failed to seed stores", err)
		}
		slog.Info("database ready", "path", *dbPath)
	},
}
