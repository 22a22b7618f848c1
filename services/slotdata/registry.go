package slotdata

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	"pachidata-backend/lib/timezone"
	"pachidata-backend/services/slotdata/db"

	"go.opentelemetry.io/otel/codes"
)

// Registry owns the store catalog's health state. All mutation of
// consecutive_failures / last_success_at / is_active goes through
// RecordOutcome; nothing else in the repo touches those columns.
type Registry struct {
	qry       *db.Queries
	threshold int64

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewRegistry(database *sql.DB, failureThreshold int64) *Registry {
	return &Registry{
		qry:       db.New(database),
		threshold: failureThreshold,
		locks:     map[int64]*sync.Mutex{},
	}
}

// storeLock returns the mutex serializing outcome updates for one
// store. Outcomes for unrelated stores proceed in parallel; a single
// global lock here would serialize the whole worker pool.
func (r *Registry) storeLock(storeID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[storeID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[storeID] = l
	}
	return l
}

func (r *Registry) ActiveStores(ctx context.Context) ([]db.Store, error) {
	return r.qry.GetActiveStores(ctx)
}

// RecordOutcome applies one job attempt's result to the store's health
// counters. Success resets the failure streak and stamps the success
// time; failure increments the streak and deactivates the store once
// the streak reaches the threshold. Deactivated stores stay inactive
// until Reactivate is called, they never come back on their own.
func (r *Registry) RecordOutcome(ctx context.Context, storeID int64, success bool) error {
	ctx, span := tracer.Start(ctx, "registry:RecordOutcome")
	defer span.End()

	l := r.storeLock(storeID)
	l.Lock()
	defer l.Unlock()

	if success {
		err := r.qry.RecordStoreSuccess(ctx, db.RecordStoreSuccessParams{
			LastSuccessAt: sql.NullInt64{Int64: timezone.Now().Unix(), Valid: true},
			StoreID:       storeID,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to record store success")
			return err
		}
		return nil
	}

	row, err := r.qry.RecordStoreFailure(ctx, db.RecordStoreFailureParams{
		Threshold: r.threshold,
		StoreID:   storeID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to record store failure")
		return err
	}
	if row.IsActive == 0 && row.ConsecutiveFailures == r.threshold {
		slog.WarnContext(ctx, "store deactivated after consecutive failures",
			"store_id", storeID,
			"failures", row.ConsecutiveFailures,
		)
	}
	return nil
}

// Reactivate is the manual override for the circuit breaker.
func (r *Registry) Reactivate(ctx context.Context, storeID int64) error {
	l := r.storeLock(storeID)
	l.Lock()
	defer l.Unlock()

	return r.qry.ReactivateStore(ctx, storeID)
}
