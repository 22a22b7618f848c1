package slotdata

import (
	"testing"

	"pachidata-backend/services/slotdata/db"

	"github.com/stretchr/testify/require"
)

func TestTerminalStatus(t *testing.T) {
	testCases := []struct {
		successes int64
		failures  int64
		expected  string
	}{
		{10, 0, db.SessionCompleted},
		{1, 0, db.SessionCompleted},
		{9, 1, db.SessionPartial},
		{1, 9, db.SessionPartial},
		{0, 10, db.SessionFailed},
		{0, 0, db.SessionFailed},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.expected, terminalStatus(tc.successes, tc.failures),
			"successes=%d failures=%d", tc.successes, tc.failures)
	}
}
