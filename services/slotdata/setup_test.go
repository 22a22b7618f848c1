package slotdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupStores(t *testing.T) {
	svc, _, qry, cleanup := setupTest(t, Options{})
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, svc.SetupStores(ctx))

	stores, err := qry.GetActiveStores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, len(seedStores))

	// re-seeding must not clobber accumulated health state
	require.NoError(t, svc.Registry().RecordOutcome(ctx, seedStores[0].ID, false))
	require.NoError(t, svc.SetupStores(ctx))

	store, err := qry.GetStore(ctx, seedStores[0].ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), store.ConsecutiveFailures)
}
