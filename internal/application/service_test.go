package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"currency-rates-service/internal/domain"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func seededStore() *fakeRateStore {
	rows := domain.SeedRates()
	for i := range rows {
		rows[i].UpdatedAt = t0
	}
	return newFakeRateStore(rows...)
}

func Test_Seed_Idempotent(t *testing.T) {
	t.Parallel()
	store := newFakeRateStore(domain.CurrentRate{Code: "usd", Name: "x", Rate: 600})
	svc := NewRatesService(store, nil, WithClock(fakeClock{t: t0}))

	n, err := svc.Seed(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(domain.TrackedCurrencies)-1, n)
	require.InDelta(t, 600, store.rate("usd").Rate, 1e-9)

	n, err = svc.Seed(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func Test_ManualUpdate_Scenario(t *testing.T) {
	t.Parallel()
	store := seededStore()
	svc := NewRatesService(store, nil, WithClock(fakeClock{t: t0.Add(time.Minute)}))

	res, err := svc.ManualUpdate(context.Background(), "USD", 550, nil)
	require.NoError(t, err)
	require.InDelta(t, 550, res.Rate, 1e-9)
	require.InDelta(t, 3.77, res.ChangePercentage, 0.01)

	cur := store.rate("usd")
	require.InDelta(t, 550, cur.Rate, 1e-9)
	require.Equal(t, t0.Add(time.Minute), cur.UpdatedAt)

	hist, err := svc.GetHistory(context.Background(), "usd")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.InDelta(t, 530, hist[0].Rate, 1e-9)
	require.Zero(t, hist[0].ChangePercentage)
}

func Test_ManualUpdate_NotFound_NoMutation(t *testing.T) {
	t.Parallel()
	store := seededStore()
	svc := NewRatesService(store, nil)

	_, err := svc.ManualUpdate(context.Background(), "jpy", 3.5, nil)
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, store.historyLen())
	_, err = store.GetCurrent(context.Background(), "jpy")
	require.ErrorIs(t, err, ErrNotFound)
}

func Test_ManualUpdate_BadInput(t *testing.T) {
	t.Parallel()
	svc := NewRatesService(seededStore(), nil)

	_, err := svc.ManualUpdate(context.Background(), "usd", 0, nil)
	require.ErrorIs(t, err, ErrBadRequest)
	_, err = svc.ManualUpdate(context.Background(), "usd", -1, nil)
	require.ErrorIs(t, err, ErrBadRequest)
	_, err = svc.ManualUpdate(context.Background(), "", 10, nil)
	require.ErrorIs(t, err, ErrBadRequest)
}

func Test_ManualUpdate_Idempotency_Conflict(t *testing.T) {
	t.Parallel()
	store := seededStore()
	svc := NewRatesService(store, nil, WithIdempotency(&fakeIdem{}))
	key := "ik-1"

	_, err := svc.ManualUpdate(context.Background(), "eur", 590, &key)
	require.NoError(t, err)
	_, err = svc.ManualUpdate(context.Background(), "eur", 600, &key)
	require.ErrorIs(t, err, ErrConflict)
	require.InDelta(t, 590, store.rate("eur").Rate, 1e-9)
	require.Equal(t, 1, store.historyLen())
}

func Test_ManualUpdate_FailedUpdateReleasesIdempotencyKey(t *testing.T) {
	t.Parallel()
	store := seededStore()
	idem := &fakeIdem{}
	svc := NewRatesService(store, nil, WithIdempotency(idem))
	key := "ik-retry"

	store.mu.Lock()
	store.err = errors.New("db down")
	store.mu.Unlock()
	_, err := svc.ManualUpdate(context.Background(), "eur", 600, &key)
	require.ErrorContains(t, err, "db down")
	require.Empty(t, idem.seen)

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	res, err := svc.ManualUpdate(context.Background(), "eur", 600, &key)
	require.NoError(t, err)
	require.InDelta(t, 600, res.Rate, 1e-9)
	require.Equal(t, 1, store.historyLen())

	_, err = svc.ManualUpdate(context.Background(), "eur", 610, &key)
	require.ErrorIs(t, err, ErrConflict)
}

func Test_ManualUpdate_NotFoundReleasesIdempotencyKey(t *testing.T) {
	t.Parallel()
	idem := &fakeIdem{}
	svc := NewRatesService(seededStore(), nil, WithIdempotency(idem))
	key := "ik-nf"

	_, err := svc.ManualUpdate(context.Background(), "xyz", 10, &key)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, idem.seen)
}

func Test_History_LastTenNewestFirst(t *testing.T) {
	t.Parallel()
	store := seededStore()
	svc := NewRatesService(store, nil)

	for i := 1; i <= 12; i++ {
		_, err := svc.ManualUpdate(context.Background(), "sar", 141+float64(i), nil)
		require.NoError(t, err)
	}
	hist, err := svc.GetHistory(context.Background(), "SAR")
	require.NoError(t, err)
	require.Len(t, hist, HistoryLimit)
	// newest archived rate is the one replaced by the last update
	require.InDelta(t, 152, hist[0].Rate, 1e-9)
	for i := 1; i < len(hist); i++ {
		require.Greater(t, hist[i-1].Rate, hist[i].Rate)
	}
}

func Test_UpdateAllFromSource_Primary(t *testing.T) {
	t.Parallel()
	store := seededStore()
	primary := &fakeSource{name: "primary", rates: map[domain.CurrencyCode]float64{"usd": 540, "eur": 580}}
	secondary := &fakeSource{name: "secondary", rates: map[domain.CurrencyCode]float64{"usd": 1}}
	svc := NewRatesService(store, []RateSource{primary, secondary})

	res, err := svc.UpdateAllFromSource(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "primary", res.Source)
	require.Equal(t, 2, res.Updated)
	require.Zero(t, secondary.calls)

	require.InDelta(t, 540, store.rate("usd").Rate, 1e-9)
	require.InDelta(t, 580, store.rate("eur").Rate, 1e-9)
	require.InDelta(t, 141, store.rate("sar").Rate, 1e-9)
	require.Equal(t, 2, store.historyLen())
}

func Test_UpdateAllFromSource_FallsBackToSecondary(t *testing.T) {
	t.Parallel()
	store := seededStore()
	primary := &fakeSource{name: "primary", err: errors.New("boom")}
	secondary := &fakeSource{name: "secondary", rates: map[domain.CurrencyCode]float64{"gbp": 700}}
	svc := NewRatesService(store, []RateSource{primary, secondary})

	res, err := svc.UpdateAllFromSource(context.Background())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "secondary", res.Source)
	require.Equal(t, 1, primary.calls)
	require.InDelta(t, 700, store.rate("gbp").Rate, 1e-9)
}

func Test_UpdateAllFromSource_AllFail_NoMutation(t *testing.T) {
	t.Parallel()
	store := seededStore()
	primary := &fakeSource{name: "primary", err: errors.New("down")}
	secondary := &fakeSource{name: "secondary", rates: map[domain.CurrencyCode]float64{}}
	svc := NewRatesService(store, []RateSource{primary, secondary})

	before, err := store.ListCurrent(context.Background())
	require.NoError(t, err)

	res, err := svc.UpdateAllFromSource(context.Background())
	require.ErrorIs(t, err, ErrSourcesUnavailable)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Message)

	after, err := store.ListCurrent(context.Background())
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Zero(t, store.historyLen())
}

func Test_UpdateAllFromSource_InitializesMissingTrackedRow(t *testing.T) {
	t.Parallel()
	store := newFakeRateStore(domain.CurrentRate{Code: "usd", Rate: 530})
	src := &fakeSource{name: "primary", rates: map[domain.CurrencyCode]float64{"usd": 531, "omr": 1380, "jpy": 3}}
	svc := NewRatesService(store, []RateSource{src})

	res, err := svc.UpdateAllFromSource(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Updated)

	omr := store.rate("omr")
	require.InDelta(t, 1380, omr.Rate, 1e-9)
	require.Zero(t, omr.ChangePercentage)
	require.NotEmpty(t, omr.Name)
	require.Equal(t, 1, store.historyLen())

	_, err = store.GetCurrent(context.Background(), "jpy")
	require.ErrorIs(t, err, ErrNotFound)
}

func Test_UpdateAllFromSource_PartialStoreFailure(t *testing.T) {
	t.Parallel()
	store := seededStore()
	store.applyErr = map[domain.CurrencyCode]error{"eur": ErrRepo}
	src := &fakeSource{name: "primary", rates: map[domain.CurrencyCode]float64{"usd": 540, "eur": 590}}
	svc := NewRatesService(store, []RateSource{src})

	res, err := svc.UpdateAllFromSource(context.Background())
	require.ErrorIs(t, err, ErrRepo)
	require.False(t, res.Success)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, []domain.CurrencyCode{"eur"}, res.Failed)
	require.Contains(t, res.Message, "eur")
}

func Test_ListCurrentRates_StoreError(t *testing.T) {
	t.Parallel()
	svc := NewRatesService(&fakeRateStore{err: ErrRepo}, nil)
	_, err := svc.ListCurrentRates(context.Background())
	require.ErrorIs(t, err, ErrRepo)
	require.ErrorIs(t, svc.Ready(context.Background()), ErrRepo)
}
