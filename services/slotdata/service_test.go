package slotdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"pachidata-backend/lib/scrapers/minrepo"
	"pachidata-backend/lib/testutil"
	"pachidata-backend/services/slotdata/db"

	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned pages and scripted error sequences. Each
// store's error queue is consumed before the page succeeds.
type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[int64]string
	errs      map[int64][]error
	calls     map[int64]int
	rotations int
	// onFetch, when set, runs at the top of every Fetch call
	onFetch func(storeID int64)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[int64]string{},
		errs:  map[int64][]error{},
		calls: map[int64]int{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, storeID int64, date string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[storeID]++
	if f.onFetch != nil {
		f.onFetch(storeID)
	}
	if queue := f.errs[storeID]; len(queue) > 0 {
		err := queue[0]
		f.errs[storeID] = queue[1:]
		return "", err
	}
	if page, ok := f.pages[storeID]; ok {
		return page, nil
	}
	return storePage(storeID), nil
}

func (f *fakeFetcher) PageUrl(storeID int64, date string) string {
	return fmt.Sprintf("https://example.test/%d/?date=%s", storeID, date)
}

func (f *fakeFetcher) RotateEgress() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotations++
}

func (f *fakeFetcher) fetchCalls(storeID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[storeID]
}

func (f *fakeFetcher) queueErrors(storeID int64, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[storeID] = append(f.errs[storeID], errs...)
}

// storePage renders a minimal three-machine table page.
func storePage(storeID int64) string {
	var b strings.Builder
	b.WriteString(`<html><body><table><tr><th>台番号</th><th>機種名</th><th>差枚</th><th>G数</th></tr>`)
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, `<tr><td>%d</td><td>機種%d</td><td>%d</td><td>%d</td></tr>`, i, i, i*100, i*500)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

func blockedErr() error {
	return &minrepo.FetchError{Kind: minrepo.FetchBlocked, StatusCode: 403}
}

func timeoutErr() error {
	return &minrepo.FetchError{Kind: minrepo.FetchTimeout}
}

func setupTest(t *testing.T, opts Options) (*Service, *fakeFetcher, *db.Queries, func()) {
	setup, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/slotdata",
		DbSchema: db.Schema,
	})
	fetcher := newFakeFetcher()
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	svc := NewService(setup.DB, fetcher, opts)
	return svc, fetcher, db.New(setup.DB), cleanup
}

func seedTestStores(t *testing.T, qry *db.Queries, ids ...int64) {
	for _, id := range ids {
		err := qry.CreateStore(context.Background(), db.CreateStoreParams{
			StoreID: id,
			Name:    fmt.Sprintf("store-%d", id),
		})
		require.NoError(t, err)
	}
}

func TestRunSessionCompleted(t *testing.T) {
	svc, _, qry, cleanup := setupTest(t, Options{})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1, 2)

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	session, err := handle.Wait(ctx)
	require.NoError(t, err)

	require.Equal(t, db.SessionCompleted, session.Status)
	require.Equal(t, int64(2), session.TotalStores)
	require.Equal(t, int64(2), session.SuccessfulStores)
	require.Equal(t, int64(0), session.FailedStores)
	require.Equal(t, int64(6), session.TotalRecords)
	require.True(t, session.StartedAt.Valid)
	require.True(t, session.EndedAt.Valid)

	count, err := qry.CountRecordsForStoreDate(ctx, db.CountRecordsForStoreDateParams{
		StoreID: 1, Date: "2026-08-10",
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestReingestIsIdempotent(t *testing.T) {
	svc, _, qry, cleanup := setupTest(t, Options{})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1)

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	first, err := handle.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), first.TotalRecords)

	// same date again: every row collides on its uid
	handle, err = svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	second, err := handle.Wait(ctx)
	require.NoError(t, err)

	require.Equal(t, db.SessionCompleted, second.Status)
	require.Equal(t, int64(0), second.TotalRecords)

	count, err := qry.CountRecordsForStoreDate(ctx, db.CountRecordsForStoreDateParams{
		StoreID: 1, Date: "2026-08-10",
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestTimeoutsThenSuccess(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{MaxAttempts: 3})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1)
	fetcher.queueErrors(1, timeoutErr(), timeoutErr())

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	session, err := handle.Wait(ctx)
	require.NoError(t, err)

	require.Equal(t, db.SessionCompleted, session.Status)
	require.Equal(t, 3, fetcher.fetchCalls(1))

	// the eventual success reset the failure streak
	store, err := qry.GetStore(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), store.ConsecutiveFailures)
	require.Equal(t, int64(1), store.IsActive)
	require.True(t, store.LastSuccessAt.Valid)

	// both failed attempts are on the record
	errs, err := qry.GetSessionErrors(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		require.Equal(t, db.PhaseFetch, e.Phase)
	}
}

func TestBlockedEveryAttempt(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{MaxAttempts: 3})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1, 2)
	fetcher.queueErrors(1, blockedErr(), blockedErr(), blockedErr())

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	session, err := handle.Wait(ctx)
	require.NoError(t, err)

	require.Equal(t, db.SessionPartial, session.Status)
	require.Equal(t, int64(1), session.SuccessfulStores)
	require.Equal(t, int64(1), session.FailedStores)

	// every blocked response rotated the egress
	require.Equal(t, 3, fetcher.rotations)

	errs, err := qry.GetSessionErrors(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, errs, 3)

	store, err := qry.GetStore(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), store.ConsecutiveFailures)
	require.Equal(t, int64(1), store.IsActive)
}

func TestPartialStatus(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{MaxAttempts: 1})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1, 2)
	fetcher.queueErrors(2, timeoutErr())

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	session, err := handle.Wait(ctx)
	require.NoError(t, err)

	require.Equal(t, db.SessionPartial, session.Status)
	require.Equal(t, int64(1), session.SuccessfulStores)
	require.Equal(t, int64(1), session.FailedStores)
}

func TestNoMatchIsTerminalForJob(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{MaxAttempts: 3})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1)
	fetcher.pages[1] = `<html><body><p>メンテナンス中</p></body></html>`

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	session, err := handle.Wait(ctx)
	require.NoError(t, err)

	require.Equal(t, db.SessionFailed, session.Status)
	// structural drift burns exactly one attempt, not the whole budget
	require.Equal(t, 1, fetcher.fetchCalls(1))

	errs, err := qry.GetSessionErrors(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	require.Equal(t, db.PhaseParse, errs[0].Phase)
}

func TestRunSessionInvocationErrors(t *testing.T) {
	svc, _, _, cleanup := setupTest(t, Options{})
	defer cleanup()
	ctx := context.Background()

	_, err := svc.RunSession(ctx, "08/10/2026", RunOptions{Sync: true})
	require.Error(t, err)

	// empty catalog, nothing to do
	_, err = svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.ErrorIs(t, err, ErrNoWork)
}

func TestRetryFailedFoldsIntoSession(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{MaxAttempts: 1})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1, 2)
	fetcher.queueErrors(2, timeoutErr())

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	session, err := handle.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, db.SessionPartial, session.Status)

	goodCalls := fetcher.fetchCalls(1)

	retried, err := svc.RetryFailed(ctx, RetryTarget{SessionID: session.ID}, RunOptions{Sync: true})
	require.NoError(t, err)
	require.Equal(t, session.ID, retried.ID)

	final, err := retried.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, db.SessionCompleted, final.Status)
	require.Equal(t, int64(2), final.SuccessfulStores)
	require.Equal(t, int64(0), final.FailedStores)

	// the store that already succeeded was not refetched
	require.Equal(t, goodCalls, fetcher.fetchCalls(1))

	// the first run's error stays on the record
	errs, err := qry.GetSessionErrors(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
}

func TestForcedRetryKeepsTalliesConsistent(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{MaxAttempts: 1})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1, 2)
	fetcher.queueErrors(2, timeoutErr())

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	session, err := handle.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, db.SessionPartial, session.Status)
	require.Equal(t, int64(3), session.TotalRecords)

	// forcing the store that already succeeded must not inflate the
	// successful tally past total_stores
	retried, err := svc.RetryFailed(ctx, RetryTarget{
		SessionID: session.ID,
		Stores:    []int64{1},
	}, RunOptions{Sync: true})
	require.NoError(t, err)
	final, err := retried.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, db.SessionPartial, final.Status)
	require.Equal(t, int64(1), final.SuccessfulStores)
	require.Equal(t, int64(1), final.FailedStores)
	require.Equal(t, int64(3), final.TotalRecords)

	// a forced store that fails again keeps its single failed tally
	fetcher.queueErrors(2, timeoutErr())
	retried, err = svc.RetryFailed(ctx, RetryTarget{
		SessionID: session.ID,
		Stores:    []int64{2},
	}, RunOptions{Sync: true})
	require.NoError(t, err)
	final, err = retried.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, db.SessionPartial, final.Status)
	require.Equal(t, int64(1), final.SuccessfulStores)
	require.Equal(t, int64(1), final.FailedStores)
}

func TestCancelledSessionReachesTerminalState(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{MaxAttempts: 1})
	defer cleanup()
	seedTestStores(t, qry, 1, 2, 3)

	// store 1 succeeds, then the run is cancelled while store 2 fetches
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher.onFetch = func(storeID int64) {
		if storeID == 2 {
			cancel()
		}
	}
	fetcher.queueErrors(2, timeoutErr())

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	session, err := handle.Wait(context.Background())
	require.NoError(t, err)

	require.Equal(t, db.SessionPartial, session.Status)
	require.Equal(t, int64(1), session.SuccessfulStores)
	require.Equal(t, int64(2), session.FailedStores)
	require.True(t, session.EndedAt.Valid)

	// store 3 was never dispatched, its failure is a cancel row
	require.Equal(t, 0, fetcher.fetchCalls(3))
	errs, err := qry.GetSessionErrors(context.Background(), session.ID)
	require.NoError(t, err)
	var cancelled []db.ScrapingError
	for _, e := range errs {
		if e.Phase == db.PhaseCancel {
			cancelled = append(cancelled, e)
		}
	}
	require.Len(t, cancelled, 1)
	require.Equal(t, int64(3), cancelled[0].StoreID)
}

func TestIngestFailureLeavesNoPartialRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the second payout derivation kills the context, failing the
	// statement that follows it mid-batch
	calls := 0
	svc, _, qry, cleanup := setupTest(t, Options{
		Payout: func(creditDiff, gameCount int64) (float64, bool) {
			calls++
			if calls == 2 {
				cancel()
			}
			return DerivePayout(creditDiff, gameCount)
		},
	})
	defer cleanup()
	seedTestStores(t, qry, 1)

	n := func(v int64) *int64 { return &v }
	records := []minrepo.Record{
		{Token: "1", MachineName: "a", CreditDiff: n(100), GameCount: n(500)},
		{Token: "2", MachineName: "b", CreditDiff: n(-50), GameCount: n(300)},
		{Token: "3", MachineName: "c", CreditDiff: n(20), GameCount: n(100)},
	}
	_, _, err := svc.ingest(ctx, records, 1, "2026-08-10", "https://example.test/1/")
	require.Error(t, err)

	// the batch rolled back, the first row must not linger
	count, err := qry.CountRecordsForStoreDate(context.Background(), db.CountRecordsForStoreDateParams{
		StoreID: 1, Date: "2026-08-10",
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestRetryFailedSkipsDeactivatedStores(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{MaxAttempts: 1, FailureThreshold: 1})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1, 2)
	fetcher.queueErrors(2, timeoutErr())

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	session, err := handle.Wait(ctx)
	require.NoError(t, err)

	// store 2 tripped the breaker on its single failure
	store, err := qry.GetStore(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(0), store.IsActive)

	_, err = svc.RetryFailed(ctx, RetryTarget{SessionID: session.ID}, RunOptions{Sync: true})
	require.ErrorIs(t, err, ErrNothingToRetry)

	// forcing the store bypasses the breaker
	retried, err := svc.RetryFailed(ctx, RetryTarget{
		SessionID: session.ID,
		Stores:    []int64{2},
	}, RunOptions{Sync: true})
	require.NoError(t, err)
	final, err := retried.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, db.SessionCompleted, final.Status)
}

func TestRetryNothingToRetry(t *testing.T) {
	svc, _, qry, cleanup := setupTest(t, Options{})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1)

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	_, err = handle.Wait(ctx)
	require.NoError(t, err)

	_, err = svc.RetryFailed(ctx, RetryTarget{Date: "2026-08-10"}, RunOptions{Sync: true})
	require.ErrorIs(t, err, ErrNothingToRetry)
}

func TestRecoverRangeFillsGapsOnly(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1, 2)

	// store 1 already covered for the date
	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Stores: []int64{1}, Sync: true})
	require.NoError(t, err)
	_, err = handle.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.fetchCalls(1))

	sessions, err := svc.RecoverRange(ctx, "2026-08-10", "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	// only the gap was fetched
	require.Equal(t, 1, fetcher.fetchCalls(1))
	require.Equal(t, 1, fetcher.fetchCalls(2))

	// a second sweep over a fully covered range is a no-op
	sessions, err = svc.RecoverRange(ctx, "2026-08-10", "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	require.Len(t, sessions, 0)
}

func TestConcurrentDispatch(t *testing.T) {
	svc, fetcher, qry, cleanup := setupTest(t, Options{Concurrency: 4})
	defer cleanup()
	ctx := context.Background()

	ids := make([]int64, 12)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	seedTestStores(t, qry, ids...)
	fetcher.queueErrors(5, timeoutErr(), timeoutErr(), timeoutErr())

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	session, err := handle.Wait(waitCtx)
	require.NoError(t, err)

	require.Equal(t, db.SessionPartial, session.Status)
	require.Equal(t, int64(11), session.SuccessfulStores)
	require.Equal(t, int64(1), session.FailedStores)
	require.Equal(t, int64(33), session.TotalRecords)
}

func TestReadSurface(t *testing.T) {
	svc, _, qry, cleanup := setupTest(t, Options{})
	defer cleanup()
	ctx := context.Background()
	seedTestStores(t, qry, 1)

	handle, err := svc.RunSession(ctx, "2026-08-10", RunOptions{Sync: true})
	require.NoError(t, err)
	_, err = handle.Wait(ctx)
	require.NoError(t, err)

	sessions, err := svc.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	detail, err := svc.GetSession(ctx, handle.ID)
	require.NoError(t, err)
	require.Equal(t, db.SessionCompleted, detail.Session.Status)
	require.Empty(t, detail.Errors)

	stats, err := svc.GetStoreStats(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Records)
	require.Equal(t, "2026-08-10", stats.LastDate)

	counts, err := svc.DailyCounts(ctx, "2026-08-01", "2026-08-31")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	require.Equal(t, int64(3), counts[0].Records)
}
