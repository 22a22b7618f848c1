package minrepo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIntFormats(t *testing.T) {
	testCases := []struct {
		in       string
		expected int64
		ok       bool
	}{
		{"1280", 1280, true},
		{"+1,280", 1280, true},
		{"-860枚", -860, true},
		{"4,520回", 4520, true},
		{"１２３", 123, true},
		{"＋３２０", 320, true},
		{" 42 ", 42, true},
		{"300円", 300, true},
		{"12.0", 12, true},
		{"-", 0, false},
		{"", 0, false},
		{"null", 0, false},
		{"None", 0, false},
		{"調整中", 0, false},
	}

	for _, tc := range testCases {
		n, ok := parseInt(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			require.Equal(t, tc.expected, n, "input %q", tc.in)
		}
	}
}

func TestParseFloatFormats(t *testing.T) {
	testCases := []struct {
		in       string
		expected float64
		ok       bool
	}{
		{"105.3%", 105.3, true},
		{"97.1", 97.1, true},
		{"１０８．２", 108.2, true},
		{"-", 0, false},
		{"機械割", 0, false},
	}

	for _, tc := range testCases {
		f, ok := parseFloat(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			require.InDelta(t, tc.expected, f, 0.0001, "input %q", tc.in)
		}
	}
}
