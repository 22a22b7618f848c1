package slotdata

import (
	"context"
	"database/sql"
	"time"

	"pachidata-backend/lib/scrapers/minrepo"
	"pachidata-backend/services/slotdata/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/slotdata")

// Fetcher is the slice of the site client the orchestrator needs.
// *minrepo.Client satisfies it; tests inject fakes.
type Fetcher interface {
	Fetch(ctx context.Context, storeID int64, date string) (string, error)
	PageUrl(storeID int64, date string) string
	RotateEgress()
}

type Options struct {
	// Concurrency bounds the worker pool. Kept modest by default out
	// of courtesy to the target site.
	Concurrency int
	// MaxAttempts bounds the sequential attempts one job makes.
	MaxAttempts int
	// RetryBackoff is the sleep after a failed attempt, doubling per
	// attempt.
	RetryBackoff time.Duration
	// FailureThreshold is the consecutive-failure count at which a
	// store is deactivated.
	FailureThreshold int64
	// Strategies overrides the parser strategy list (tests).
	Strategies []minrepo.Strategy
	// Payout derives a payout rate when the site does not supply one.
	Payout PayoutFunc
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.Strategies == nil {
		o.Strategies = minrepo.DefaultStrategies()
	}
	if o.Payout == nil {
		o.Payout = DerivePayout
	}
	return o
}

type Service struct {
	db       *sql.DB
	qry      *db.Queries
	fetcher  Fetcher
	registry *Registry
	opts     Options
}

func NewService(database *sql.DB, fetcher Fetcher, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		db:       database,
		qry:      db.New(database),
		fetcher:  fetcher,
		registry: NewRegistry(database, opts.FailureThreshold),
		opts:     opts,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// --- read surface, pull-only -------------------------------------------

func (s *Service) ListSessions(ctx context.Context, limit int64) ([]db.ScrapingSession, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.qry.ListSessions(ctx, limit)
}

func (s *Service) ListSessionsForDate(ctx context.Context, date string) ([]db.ScrapingSession, error) {
	return s.qry.ListSessionsForDate(ctx, date)
}

func (s *Service) GetRecords(ctx context.Context, storeID int64, date string) ([]db.DailyRecord, error) {
	return s.qry.GetRecordsForStoreDate(ctx, db.GetRecordsForStoreDateParams{
		StoreID: storeID,
		Date:    date,
	})
}

type SessionDetail struct {
	Session db.ScrapingSession
	Errors  []db.ScrapingError
}

func (s *Service) GetSession(ctx context.Context, id int64) (SessionDetail, error) {
	ctx, span := tracer.Start(ctx, "GetSession")
	defer span.End()

	session, err := s.qry.GetSession(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load session")
		return SessionDetail{}, err
	}
	errs, err := s.qry.GetSessionErrors(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load session errors")
		return SessionDetail{}, err
	}
	return SessionDetail{Session: session, Errors: errs}, nil
}

type StoreStats struct {
	Store    db.Store
	Records  int64
	LastDate string
}

func (s *Service) GetStoreStats(ctx context.Context, storeID int64) (StoreStats, error) {
	store, err := s.qry.GetStore(ctx, storeID)
	if err != nil {
		return StoreStats{}, err
	}
	stats, err := s.qry.GetStoreStats(ctx, storeID)
	if err != nil {
		return StoreStats{}, err
	}
	return StoreStats{
		Store:    store,
		Records:  stats.Records,
		LastDate: stats.LastDate,
	}, nil
}

func (s *Service) DailyCounts(ctx context.Context, from, to string) ([]db.DailyCountsRow, error) {
	return s.qry.DailyCounts(ctx, db.DailyCountsParams{FromDate: from, ToDate: to})
}
