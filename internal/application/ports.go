package application

import (
	"context"

	"currency-rates-service/internal/domain"
)

// RateStore persists current rates and their history.
// Inside a UnitOfWork, GetCurrent locks the returned row until the unit completes.
type RateStore interface {
	ListCurrent(ctx context.Context) ([]domain.CurrentRate, error)
	GetCurrent(ctx context.Context, code domain.CurrencyCode) (domain.CurrentRate, error)
	ListHistory(ctx context.Context, code domain.CurrencyCode, limit int) ([]domain.RateHistoryEntry, error)
	// SeedIfAbsent inserts rows whose currency code is not stored yet and reports how many were inserted.
	SeedIfAbsent(ctx context.Context, rates []domain.CurrentRate) (int, error)
	// ApplyReconciliation appends the history entry and replaces the current row atomically.
	ApplyReconciliation(ctx context.Context, rec domain.Reconciliation) error
	Ping(ctx context.Context) error
}

// RateSource fetches local-currency rates for the given currencies from an external feed.
type RateSource interface {
	Name() string
	FetchRates(ctx context.Context, codes []domain.CurrencyCode) (map[domain.CurrencyCode]float64, error)
}

// KeyLocker serialises work per key. The returned func releases the lock.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type Metrics interface {
	ReconcileDone(code domain.CurrencyCode, trigger string, err error)
	SourceFetched(source string, err error)
	AutoUpdateDone(source string, success bool)
}

type NoopMetrics struct{}

func (NoopMetrics) ReconcileDone(domain.CurrencyCode, string, error) {}
func (NoopMetrics) SourceFetched(string, error)                      {}
func (NoopMetrics) AutoUpdateDone(string, bool)                      {}
