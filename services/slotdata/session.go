package slotdata

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"

	"pachidata-backend/lib/timezone"
	"pachidata-backend/services/slotdata/db"
)

// sessionTracker aggregates job outcomes for one live session. The
// authoritative tallies live in the session row (updated with atomic
// SQL increments from many workers); the tracker only owns the
// outstanding-job count and the responsibility of committing the
// terminal status exactly once, from whichever goroutine resolves the
// last job.
type sessionTracker struct {
	id   int64
	date string
	qry  *db.Queries
	// refailed marks the stores counted in the session's failed column
	// when a retry starts. A retry success moves such a store to the
	// successful column; any other retried store is already tallied and
	// only contributes records. Nil for a fresh session.
	refailed map[int64]bool

	outstanding atomic.Int64
	started     sync.Once
	done        chan struct{}
}

func newSessionTracker(qry *db.Queries, id int64, date string, jobs int64, refailed map[int64]bool) *sessionTracker {
	t := &sessionTracker{
		id:       id,
		date:     date,
		qry:      qry,
		refailed: refailed,
		done:     make(chan struct{}),
	}
	t.outstanding.Store(jobs)
	return t
}

// jobStarted flips the session pending -> running on the first
// dispatched job. Subsequent calls are no-ops.
func (t *sessionTracker) jobStarted(ctx context.Context) {
	t.started.Do(func() {
		err := t.qry.MarkSessionRunning(ctx, db.MarkSessionRunningParams{
			StartedAt: sql.NullInt64{Int64: timezone.Now().Unix(), Valid: true},
			ID:        t.id,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to mark session running", "session", t.id, "err", err)
		}
	})
}

func (t *sessionTracker) jobSucceeded(ctx context.Context, storeID, records int64) {
	// tallies must commit even when the run context was cancelled
	// mid-job
	ctx = context.WithoutCancel(ctx)

	var err error
	switch {
	case t.refailed == nil:
		err = t.qry.AddSessionSuccess(ctx, db.AddSessionSuccessParams{
			TotalRecords: records,
			ID:           t.id,
		})
	case t.refailed[storeID]:
		err = t.qry.AddSessionRetrySuccess(ctx, db.AddSessionRetrySuccessParams{
			TotalRecords: records,
			ID:           t.id,
		})
	default:
		// a forced re-run of a store that was never in the failed
		// column; its tally already stands, only new records count
		err = t.qry.AddSessionRecords(ctx, db.AddSessionRecordsParams{
			TotalRecords: records,
			ID:           t.id,
		})
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to tally job success", "session", t.id, "err", err)
	}
	t.resolve(ctx)
}

func (t *sessionTracker) jobFailed(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	// in retry mode every store is already tallied in one column or the
	// other, failing again must not shift or double-count it
	if t.refailed == nil {
		err := t.qry.AddSessionFailure(ctx, t.id)
		if err != nil {
			slog.ErrorContext(ctx, "failed to tally job failure", "session", t.id, "err", err)
		}
	}
	t.resolve(ctx)
}

// resolve decrements the outstanding count; the goroutine that brings
// it to zero reads the final tallies and commits the terminal status.
// Computing the status from the tallies (rather than tracking it
// incrementally) means concurrent completions cannot race it into an
// inconsistent state.
func (t *sessionTracker) resolve(ctx context.Context) {
	if t.outstanding.Add(-1) != 0 {
		return
	}

	session, err := t.qry.GetSession(ctx, t.id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load session for finalization", "session", t.id, "err", err)
		close(t.done)
		return
	}

	status := terminalStatus(session.SuccessfulStores, session.FailedStores)
	err = t.qry.FinalizeSession(ctx, db.FinalizeSessionParams{
		Status:  status,
		EndedAt: sql.NullInt64{Int64: timezone.Now().Unix(), Valid: true},
		ID:      t.id,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to finalize session", "session", t.id, "err", err)
	}

	slog.InfoContext(ctx, "session finished",
		"session", t.id,
		"date", t.date,
		"status", status,
		"successful", session.SuccessfulStores,
		"failed", session.FailedStores,
		"records", session.TotalRecords,
	)
	close(t.done)
}

// terminalStatus is a pure function of the final tally.
func terminalStatus(successes, failures int64) string {
	switch {
	case failures == 0 && successes > 0:
		return db.SessionCompleted
	case successes > 0:
		return db.SessionPartial
	default:
		return db.SessionFailed
	}
}

// SessionHandle is returned by RunSession and friends. The session
// always resolves on its own; Wait only observes it.
type SessionHandle struct {
	ID int64

	qry     *db.Queries
	tracker *sessionTracker
}

// Wait blocks until the session reaches a terminal state and returns
// the final row. The context only bounds the wait itself, cancelling
// it does not cancel the session.
func (h *SessionHandle) Wait(ctx context.Context) (db.ScrapingSession, error) {
	select {
	case <-h.tracker.done:
		return h.qry.GetSession(ctx, h.ID)
	case <-ctx.Done():
		return db.ScrapingSession{}, ctx.Err()
	}
}
