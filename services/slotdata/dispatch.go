package slotdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pachidata-backend/lib/scrapers/minrepo"
	"pachidata-backend/lib/timezone"
	"pachidata-backend/services/slotdata/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNoWork means the work list for an invocation came up empty. It is
// an invocation-level condition, not a session failure: no session row
// is created for it.
var ErrNoWork = errors.New("no stores to scrape")

type RunOptions struct {
	// Stores restricts the session to an explicit id list. Explicit
	// stores are run even when deactivated (forced mode); missing
	// catalog rows are created on the fly.
	Stores []int64
	// Sync runs every job inline on the calling goroutine.
	Sync bool
	// Concurrency overrides the service default for this run.
	Concurrency int
}

// RunSession expands one (date, store filter) into per-store jobs and
// dispatches them. It returns as soon as the session exists and the
// dispatch loop is underway; per-store failures are folded into the
// session and never surface here. The only errors are invocation
// problems: a bad date or an empty work list.
func (s *Service) RunSession(ctx context.Context, date string, opts RunOptions) (*SessionHandle, error) {
	ctx, span := tracer.Start(ctx, "RunSession")
	defer span.End()

	if _, err := timezone.ParseDate(date); err != nil {
		span.SetStatus(codes.Error, "invalid date")
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	storeIDs, err := s.resolveWorkList(ctx, opts.Stores)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build work list")
		return nil, err
	}
	if len(storeIDs) == 0 {
		return nil, ErrNoWork
	}

	sessionID, err := s.qry.CreateSession(ctx, db.CreateSessionParams{
		Date:        date,
		CreatedAt:   timezone.Now().Unix(),
		TotalStores: int64(len(storeIDs)),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create session")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("session", sessionID),
		attribute.Int("stores", len(storeIDs)),
	)
	slog.InfoContext(ctx, "starting scraping session",
		"session", sessionID,
		"date", date,
		"stores", len(storeIDs),
		"sync", opts.Sync,
	)

	tracker := newSessionTracker(s.qry, sessionID, date, int64(len(storeIDs)), nil)
	s.dispatch(ctx, tracker, storeIDs, opts)

	return &SessionHandle{ID: sessionID, qry: s.qry, tracker: tracker}, nil
}

// resolveWorkList turns the optional explicit filter into a concrete
// store-id list. Without a filter, the active catalog is the work list.
func (s *Service) resolveWorkList(ctx context.Context, explicit []int64) ([]int64, error) {
	if len(explicit) > 0 {
		for _, id := range explicit {
			err := s.qry.CreateStore(ctx, db.CreateStoreParams{StoreID: id})
			if err != nil {
				return nil, err
			}
		}
		return explicit, nil
	}

	stores, err := s.registry.ActiveStores(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(stores))
	for i, st := range stores {
		ids[i] = st.StoreID
	}
	return ids, nil
}

// dispatch submits one job per store onto the executor. The scheduler
// holds no per-job state past submission: everything folds into the
// tracker, so a run can be reconstructed entirely from the session and
// error rows. Cancellation is cooperative: once ctx is done, remaining
// stores are resolved as cancelled failures without dispatching, while
// in-flight jobs run to completion.
func (s *Service) dispatch(ctx context.Context, tracker *sessionTracker, storeIDs []int64, opts RunOptions) {
	var exec Executor
	if opts.Sync {
		exec = syncExecutor{}
	} else {
		concurrency := opts.Concurrency
		if concurrency <= 0 {
			concurrency = s.opts.Concurrency
		}
		exec = newPoolExecutor(concurrency)
	}

	submit := func() {
		for _, storeID := range storeIDs {
			if ctx.Err() != nil {
				s.resolveCancelled(ctx, tracker, storeID)
				continue
			}
			id := storeID
			exec.Submit(func() {
				s.runStoreJob(ctx, tracker, id)
			})
		}
		exec.Wait()
	}

	if opts.Sync {
		submit()
	} else {
		go submit()
	}
}

// resolveCancelled records a session-level failure for a store whose
// job never got dispatched. The cancel-phase error row keeps the store
// visible to a later retryFailed sweep. Store health counters stay
// untouched: cancellation says nothing about the store.
func (s *Service) resolveCancelled(ctx context.Context, tracker *sessionTracker, storeID int64) {
	s.logScrapingError(ctx, tracker, storeID, db.PhaseCancel, 0, errors.New("session cancelled before dispatch"))
	tracker.jobFailed(ctx)
}

// runStoreJob is the whole per-store pipeline: attempts of
// fetch -> parse -> ingest, strictly sequential, with backoff between
// attempts and egress rotation on block detection. Outcomes are
// reported to the store registry per attempt and to the session
// tracker once.
func (s *Service) runStoreJob(ctx context.Context, tracker *sessionTracker, storeID int64) {
	ctx, span := tracer.Start(ctx, "runStoreJob")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("store_id", storeID),
		attribute.Int64("session", tracker.id),
	)

	tracker.jobStarted(ctx)

	date := tracker.date
	pageUrl := s.fetcher.PageUrl(storeID, date)

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			s.logScrapingError(ctx, tracker, storeID, db.PhaseCancel, int64(attempt), ctx.Err())
			tracker.jobFailed(ctx)
			return
		}

		html, err := s.fetcher.Fetch(ctx, storeID, date)
		if err != nil {
			slog.WarnContext(ctx, "fetch failed",
				"store_id", storeID,
				"attempt", attempt,
				"err", err,
			)
			s.logScrapingError(ctx, tracker, storeID, db.PhaseFetch, int64(attempt), err)
			s.recordOutcome(ctx, storeID, false)
			if minrepo.IsBlocked(err) {
				// a plain retry from the same egress would be blocked
				// again, rotate first
				s.fetcher.RotateEgress()
			}
			s.backoff(ctx, attempt)
			continue
		}

		records, strategy, err := minrepo.Parse(ctx, html, s.opts.Strategies)
		if err != nil {
			slog.WarnContext(ctx, "no parsable data on page",
				"store_id", storeID,
				"attempt", attempt,
				"err", err,
			)
			s.logScrapingError(ctx, tracker, storeID, db.PhaseParse, int64(attempt), err)
			s.recordOutcome(ctx, storeID, false)
			if errors.Is(err, minrepo.ErrNoMatch) {
				// structural drift, not a transient condition: more
				// attempts against the same page are wasted requests
				tracker.jobFailed(ctx)
				return
			}
			s.backoff(ctx, attempt)
			continue
		}

		written, duplicates, err := s.ingest(ctx, records, storeID, date, pageUrl)
		if err != nil {
			slog.ErrorContext(ctx, "ingest failed",
				"store_id", storeID,
				"attempt", attempt,
				"err", err,
			)
			s.logScrapingError(ctx, tracker, storeID, db.PhaseIngest, int64(attempt), err)
			s.recordOutcome(ctx, storeID, false)
			s.backoff(ctx, attempt)
			continue
		}

		slog.InfoContext(ctx, "store scraped",
			"store_id", storeID,
			"date", date,
			"strategy", strategy,
			"records", written,
			"duplicates", duplicates,
			"attempt", attempt,
		)
		s.recordOutcome(ctx, storeID, true)
		tracker.jobSucceeded(ctx, storeID, written)
		return
	}

	slog.WarnContext(ctx, "store failed after exhausting attempts",
		"store_id", storeID,
		"attempts", s.opts.MaxAttempts,
	)
	tracker.jobFailed(ctx)
}

func (s *Service) recordOutcome(ctx context.Context, storeID int64, success bool) {
	err := s.registry.RecordOutcome(context.WithoutCancel(ctx), storeID, success)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record store outcome",
			"store_id", storeID,
			"success", success,
			"err", err,
		)
	}
}

func (s *Service) logScrapingError(ctx context.Context, tracker *sessionTracker, storeID int64, phase string, attempt int64, cause error) {
	// the audit trail survives cancellation of the run context
	ctx = context.WithoutCancel(ctx)
	err := s.qry.CreateScrapingError(ctx, db.CreateScrapingErrorParams{
		SessionID: tracker.id,
		StoreID:   storeID,
		Date:      tracker.date,
		Phase:     phase,
		Message:   cause.Error(),
		Attempt:   attempt,
		CreatedAt: timezone.Now().Unix(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist scraping error",
			"store_id", storeID,
			"phase", phase,
			"err", err,
		)
	}
}

// backoff sleeps between attempts, doubling per attempt. It returns
// early on cancellation; the attempt loop re-checks ctx before acting.
func (s *Service) backoff(ctx context.Context, attempt int) {
	if attempt >= s.opts.MaxAttempts {
		return
	}
	d := s.opts.RetryBackoff * time.Duration(1<<(attempt-1))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
