package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"currency-rates-service/internal/domain"
)

var (
	ErrRepo = errors.New("repo error")
)

type fakeRateStore struct {
	mu       sync.Mutex
	current  map[domain.CurrencyCode]domain.CurrentRate
	history  []domain.RateHistoryEntry
	err      error
	applyErr map[domain.CurrencyCode]error
	applies  int
}

func newFakeRateStore(rows ...domain.CurrentRate) *fakeRateStore {
	f := &fakeRateStore{current: map[domain.CurrencyCode]domain.CurrentRate{}}
	for _, r := range rows {
		f.current[r.Code] = r
	}
	return f
}

func (f *fakeRateStore) ListCurrent(context.Context) ([]domain.CurrentRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.CurrentRate, 0, len(f.current))
	for _, r := range f.current {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakeRateStore) GetCurrent(_ context.Context, code domain.CurrencyCode) (domain.CurrentRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.CurrentRate{}, f.err
	}
	r, ok := f.current[code]
	if !ok {
		return domain.CurrentRate{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRateStore) ListHistory(_ context.Context, code domain.CurrencyCode, limit int) ([]domain.RateHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.RateHistoryEntry
	for i := len(f.history) - 1; i >= 0 && len(out) < limit; i-- {
		if f.history[i].Code == code {
			out = append(out, f.history[i])
		}
	}
	return out, nil
}

func (f *fakeRateStore) SeedIfAbsent(_ context.Context, rows []domain.CurrentRate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, r := range rows {
		if _, ok := f.current[r.Code]; ok {
			continue
		}
		f.current[r.Code] = r
		n++
	}
	return n, nil
}

func (f *fakeRateStore) ApplyReconciliation(_ context.Context, rec domain.Reconciliation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := f.applyErr[rec.Next.Code]; err != nil {
		return err
	}
	f.applies++
	f.history = append(f.history, rec.History)
	f.current[rec.Next.Code] = rec.Next
	return nil
}

func (f *fakeRateStore) Ping(context.Context) error { return f.err }

func (f *fakeRateStore) rate(code domain.CurrencyCode) domain.CurrentRate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current[code]
}

func (f *fakeRateStore) historyLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

type fakeSource struct {
	name  string
	rates map[domain.CurrencyCode]float64
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchRates(context.Context, []domain.CurrencyCode) (map[domain.CurrencyCode]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rates, nil
}

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type fakeIdem struct{ seen map[string]bool }

func (f *fakeIdem) TryReserve(_ context.Context, k string) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[k] {
		return false, nil
	}
	f.seen[k] = true
	return true, nil
}

func (f *fakeIdem) Release(_ context.Context, k string) error {
	delete(f.seen, k)
	return nil
}

type countingUoW struct {
	mu    sync.Mutex
	calls int
}

func (u *countingUoW) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	return fn(ctx)
}
