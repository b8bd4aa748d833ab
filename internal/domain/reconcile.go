package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ChangePercentage returns (newRate-oldRate)/oldRate*100, or 0 when there is no prior baseline.
func ChangePercentage(oldRate, newRate float64) float64 {
	if oldRate == 0 {
		return 0
	}
	o := decimal.NewFromFloat(oldRate)
	n := decimal.NewFromFloat(newRate)
	return n.Sub(o).Div(o).Mul(hundred).InexactFloat64()
}

// ValidRate reports whether r can be stored as a current rate.
func ValidRate(r float64) bool {
	return r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}

// Reconciliation is the pair of writes produced by replacing a current rate.
type Reconciliation struct {
	Next    CurrentRate
	History RateHistoryEntry
}

// Reconcile archives prev with its own change percentage and builds the replacement row.
func Reconcile(prev CurrentRate, newRate float64, now time.Time) Reconciliation {
	next := prev
	next.Rate = newRate
	next.ChangePercentage = ChangePercentage(prev.Rate, newRate)
	next.UpdatedAt = now
	return Reconciliation{
		Next: next,
		History: RateHistoryEntry{
			Code:             prev.Code,
			Rate:             prev.Rate,
			ChangePercentage: prev.ChangePercentage,
			UpdatedAt:        now,
		},
	}
}
