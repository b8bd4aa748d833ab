package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChangePercentage(t *testing.T) {
	cases := []struct {
		name     string
		old, new float64
		want     float64
	}{
		{"increase", 530, 550, 3.7735849056603774},
		{"decrease", 200, 150, -25},
		{"unchanged", 141, 141, 0},
		{"no baseline", 0, 550, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.InDelta(t, c.want, ChangePercentage(c.old, c.new), 1e-9)
		})
	}
}

func TestReconcile_ArchivesPreviousState(t *testing.T) {
	then := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := then.Add(time.Hour)
	prev := CurrentRate{ID: 7, Code: "usd", Name: "dollar", Rate: 530, ChangePercentage: 1.5, UpdatedAt: then}

	rec := Reconcile(prev, 550, now)

	require.Equal(t, int64(7), rec.Next.ID)
	require.Equal(t, "dollar", rec.Next.Name)
	require.InDelta(t, 550, rec.Next.Rate, 1e-9)
	require.InDelta(t, 3.7736, rec.Next.ChangePercentage, 1e-4)
	require.Equal(t, now, rec.Next.UpdatedAt)

	require.Equal(t, CurrencyCode("usd"), rec.History.Code)
	require.InDelta(t, 530, rec.History.Rate, 1e-9)
	require.InDelta(t, 1.5, rec.History.ChangePercentage, 1e-9)
	require.Equal(t, now, rec.History.UpdatedAt)
}

func TestValidRate(t *testing.T) {
	require.True(t, ValidRate(0.01))
	require.False(t, ValidRate(0))
	require.False(t, ValidRate(-3))
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, CurrencyCode("usd"), NormalizeCode(" USD "))
	require.True(t, ValidateCode(NormalizeCode("Eur")))
	require.False(t, ValidateCode(NormalizeCode("euro")))
	_, ok := LookupTracked("kwd")
	require.True(t, ok)
	_, ok = LookupTracked("jpy")
	require.False(t, ok)
	require.Len(t, SeedRates(), len(TrackedCurrencies))
}
