package slotdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"pachidata-backend/lib/timezone"
	"pachidata-backend/services/slotdata/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNothingToRetry means the targeted session has no failed stores
// left (or none that are still active). Not an invocation failure.
var ErrNothingToRetry = errors.New("no failed stores to retry")

// RetryTarget selects what to re-drive. Exactly one of SessionID /
// Date is used to locate the session (SessionID wins); Stores switches
// to forced mode, re-running the listed stores regardless of their
// prior outcome or active flag.
type RetryTarget struct {
	SessionID int64
	Date      string
	Stores    []int64
}

// RetryFailed re-dispatches a session's failed stores through the same
// pipeline. Results fold back into the originating session: successes
// move their store from the failed tally to the successful one, new
// attempts append to the same error log, and the terminal status is
// recomputed when the retry resolves. No successor session is created,
// the audit trail is the append-only error log.
func (s *Service) RetryFailed(ctx context.Context, target RetryTarget, opts RunOptions) (*SessionHandle, error) {
	ctx, span := tracer.Start(ctx, "RetryFailed")
	defer span.End()

	session, err := s.resolveRetrySession(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve session")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("session", session.ID))

	failed, err := s.qry.GetFailedStoreIDsForSession(ctx, session.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to collect failed stores")
		return nil, err
	}
	// the tallies only move for stores currently counted as failed; a
	// forced store outside this set keeps its existing tally
	refailed := make(map[int64]bool, len(failed))
	for _, id := range failed {
		refailed[id] = true
	}

	var storeIDs []int64
	if len(target.Stores) > 0 {
		storeIDs = target.Stores
	} else {
		storeIDs, err = s.filterActiveStores(ctx, failed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to collect failed stores")
			return nil, err
		}
	}
	if len(storeIDs) == 0 {
		return nil, ErrNothingToRetry
	}

	slog.InfoContext(ctx, "retrying failed stores",
		"session", session.ID,
		"date", session.Date,
		"stores", len(storeIDs),
	)

	// drop the session back to running while the retry is in flight,
	// the tracker recomputes the terminal status at the end
	err = s.qry.FinalizeSession(ctx, db.FinalizeSessionParams{
		Status:  db.SessionRunning,
		EndedAt: sql.NullInt64{},
		ID:      session.ID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reopen session")
		return nil, err
	}

	tracker := newSessionTracker(s.qry, session.ID, session.Date, int64(len(storeIDs)), refailed)
	s.dispatch(ctx, tracker, storeIDs, RunOptions{
		Sync:        opts.Sync,
		Concurrency: opts.Concurrency,
	})

	return &SessionHandle{ID: session.ID, qry: s.qry, tracker: tracker}, nil
}

func (s *Service) resolveRetrySession(ctx context.Context, target RetryTarget) (db.ScrapingSession, error) {
	if target.SessionID != 0 {
		session, err := s.qry.GetSession(ctx, target.SessionID)
		if err == sql.ErrNoRows {
			return db.ScrapingSession{}, fmt.Errorf("no session with id %d", target.SessionID)
		}
		return session, err
	}

	date := target.Date
	if date == "" {
		date = timezone.Date(timezone.Now())
	}
	if _, err := timezone.ParseDate(date); err != nil {
		return db.ScrapingSession{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	session, err := s.qry.GetLatestSessionForDate(ctx, date)
	if err == sql.ErrNoRows {
		return db.ScrapingSession{}, fmt.Errorf("no scraping session found for %s", date)
	}
	return session, err
}

// filterActiveStores drops deactivated stores from the automatic
// sweep's work list. The deactivation filter is the circuit breaker,
// a permanently broken store must not eat retry budget until someone
// reactivates it deliberately.
func (s *Service) filterActiveStores(ctx context.Context, candidates []int64) ([]int64, error) {
	var out []int64
	for _, id := range candidates {
		store, err := s.qry.GetStore(ctx, id)
		if err != nil {
			return nil, err
		}
		if store.IsActive == 0 {
			slog.DebugContext(ctx, "skipping deactivated store in retry sweep", "store_id", id)
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// RecoverRange fills gaps over a date range: for each date it schedules
// jobs only for active stores that have zero records on that date.
// Dates with full coverage produce no session at all, so running it
// twice is harmless. Sessions run one date at a time to keep the load
// on the target site bounded.
func (s *Service) RecoverRange(ctx context.Context, from, to string, opts RunOptions) ([]int64, error) {
	ctx, span := tracer.Start(ctx, "RecoverRange")
	defer span.End()

	start, err := timezone.ParseDate(from)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", from, err)
	}
	end, err := timezone.ParseDate(to)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", to, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s precedes start date %s", to, from)
	}

	var sessions []int64
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			return sessions, ctx.Err()
		}
		date := timezone.Date(day)

		missing, err := s.missingStores(ctx, date)
		if err != nil {
			span.RecordError(err)
			return sessions, err
		}
		if len(missing) == 0 {
			slog.DebugContext(ctx, "date fully covered, skipping", "date", date)
			continue
		}

		slog.InfoContext(ctx, "recovering date", "date", date, "stores", len(missing))
		handle, err := s.RunSession(ctx, date, RunOptions{
			Stores:      missing,
			Sync:        opts.Sync,
			Concurrency: opts.Concurrency,
		})
		if err != nil {
			span.RecordError(err)
			return sessions, err
		}
		sessions = append(sessions, handle.ID)

		// one date at a time
		if _, err := handle.Wait(ctx); err != nil {
			return sessions, err
		}
	}
	return sessions, nil
}

// missingStores returns the active stores with no records on the date.
func (s *Service) missingStores(ctx context.Context, date string) ([]int64, error) {
	stores, err := s.registry.ActiveStores(ctx)
	if err != nil {
		return nil, err
	}
	covered, err := s.qry.GetStoreIDsWithRecords(ctx, date)
	if err != nil {
		return nil, err
	}
	coveredSet := make(map[int64]bool, len(covered))
	for _, id := range covered {
		coveredSet[id] = true
	}

	var missing []int64
	for _, st := range stores {
		if !coveredSet[st.StoreID] {
			missing = append(missing, st.StoreID)
		}
	}
	return missing, nil
}
