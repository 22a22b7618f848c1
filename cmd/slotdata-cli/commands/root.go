package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"pachidata-backend/lib/scrapers/minrepo"
	"pachidata-backend/lib/serviceutil"
	"pachidata-backend/lib/sqliteutil"
	"pachidata-backend/services/slotdata"
	"pachidata-backend/services/slotdata/db"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "slotdata-cli",
	Short: "slotdata-cli drives and inspects daily slot data scraping runs.",
}

var dbPath *string

func init() {
	dbPath = rootCmd.PersistentFlags().String("db", "slotdata.db", "The sqlite database holding stores, sessions and records.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDatabase() *sql.DB {
	database, err := sqliteutil.OpenDB(db.Schema, *dbPath)
	if err != nil {
		serviceutil.Fatal("failed to open db", err)
	}
	return database
}

func openService(database *sql.DB) *slotdata.Service {
	client, err := minrepo.NewClient(minrepo.ClientOptions{
		CourtesyDelayMin: 500 * time.Millisecond,
		CourtesyDelayMax: 2 * time.Second,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize scrape client", err)
	}
	return slotdata.NewService(database, client, slotdata.Options{})
}
