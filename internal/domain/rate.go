package domain

import "time"

type CurrentRate struct {
	ID               int64
	Code             CurrencyCode
	Name             string
	Rate             float64
	ChangePercentage float64
	UpdatedAt        time.Time
}

// RateHistoryEntry is a superseded current rate, archived when a newer one replaced it.
type RateHistoryEntry struct {
	ID               int64
	Code             CurrencyCode
	Rate             float64
	ChangePercentage float64
	UpdatedAt        time.Time
}
