package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundHalfUp(t *testing.T) {
	require.True(t, Round(d("237.7"), 8).Equal(d("237.70000000")))
	require.True(t, Round(d("0.125"), 2).Equal(d("0.13")))
	require.True(t, Round(d("300.176"), 2).Equal(d("300.18")))
	require.True(t, Round(d("200.18"), 2).Equal(d("200.18")))
}

func TestFormatAtScale(t *testing.T) {
	cases := []struct {
		in     string
		places int32
		want   string
	}{
		{"0.01", 4, "0.01"},
		{"0.0005", 4, "0.0005"},
		{"0.00054999", 4, "0.0005"},
		{"300.176", 2, "300.18"},
		{"200.18", 2, "200.18"},
		{"250", 2, "250"},
		{"1.500", 4, "1.5"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, FormatAtScale(d(c.in), c.places), "input %s at scale %d", c.in, c.places)
	}
}

func TestTotalIsExact(t *testing.T) {
	require.True(t, Total(d("236.73"), d("0.03")).Equal(d("7.1019")))
	require.True(t, Total(d("236.84"), d("6.74")).Equal(d("1596.2216")))
}
