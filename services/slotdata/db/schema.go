package db

import (
	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// session lifecycle states, terminal states are computed once from the
// final success/failure tally and never change afterwards
const (
	SessionPending   = "pending"
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionPartial   = "partial"
	SessionFailed    = "failed"
)

// phases recorded on scraping_errors rows
const (
	PhaseFetch  = "fetch"
	PhaseParse  = "parse"
	PhaseIngest = "ingest"
	PhaseCancel = "cancel"
)
