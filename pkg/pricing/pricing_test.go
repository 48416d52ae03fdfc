package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEffectivePrice(t *testing.T) {
	cases := []struct {
		name     string
		price    string
		discount int
		want     string
	}{
		{"no discount", "20", 0, "20"},
		{"ten percent", "50", 10, "45"},
		{"fractional rounds to cents", "19.99", 15, "16.99"},
		{"half cent rounds up", "1.25", 50, "0.63"},
		{"full discount", "12", 100, "0"},
		{"negative clamps", "10", -5, "10"},
		{"over hundred clamps", "10", 150, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EffectivePrice(decimal.RequireFromString(tc.price), tc.discount)
			require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(decimal.NewFromInt(90), decimal.NewFromInt(85))
	require.True(t, s.Discount.Equal(decimal.NewFromInt(5)))
	require.True(t, s.Tax.Equal(decimal.RequireFromString("6.8")))
	require.True(t, s.Shipping.IsZero())
	require.Equal(t, "91.80", Format(s.GrandTotal))

	odd := Summarize(decimal.RequireFromString("2.50"), decimal.RequireFromString("1.26"))
	require.True(t, odd.Tax.Equal(decimal.RequireFromString("0.10")), "got %s", odd.Tax)
}
