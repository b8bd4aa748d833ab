package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"currency-rates-service/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HistoryLimit caps the number of history entries returned for a currency.
const HistoryLimit = 10

const defaultConcurrency = 4

type RatesService struct {
	store       RateStore
	sources     []RateSource
	reconciler  *Reconciler
	idem        IdempotencyStore
	uow         UnitOfWork
	locks       KeyLocker
	clock       Clock
	metrics     Metrics
	log         *zap.Logger
	concurrency int
}

type Option func(*RatesService)

func WithClock(c Clock) Option                  { return func(s *RatesService) { s.clock = c } }
func WithUnitOfWork(u UnitOfWork) Option        { return func(s *RatesService) { s.uow = u } }
func WithLocker(l KeyLocker) Option             { return func(s *RatesService) { s.locks = l } }
func WithIdempotency(i IdempotencyStore) Option { return func(s *RatesService) { s.idem = i } }
func WithMetrics(m Metrics) Option              { return func(s *RatesService) { s.metrics = m } }
func WithLogger(l *zap.Logger) Option           { return func(s *RatesService) { s.log = l } }
func WithConcurrency(n int) Option              { return func(s *RatesService) { s.concurrency = n } }

// NewRatesService builds the service. Sources are tried in order by UpdateAllFromSource.
func NewRatesService(store RateStore, sources []RateSource, opts ...Option) *RatesService {
	s := &RatesService{
		store:   store,
		sources: sources,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.idem == nil {
		s.idem = NoopIdempotency{}
	}
	if s.metrics == nil {
		s.metrics = NoopMetrics{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	s.reconciler = NewReconciler(store, s.uow, s.locks, s.clock, s.metrics, s.log)
	return s
}

// Seed inserts the tracked currencies that are not stored yet.
func (s *RatesService) Seed(ctx context.Context) (int, error) {
	rows := domain.SeedRates()
	now := s.clock.Now()
	for i := range rows {
		rows[i].UpdatedAt = now
	}
	n, err := s.store.SeedIfAbsent(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("seed rates: %w", err)
	}
	s.log.Info("seed.done", zap.Int("inserted", n))
	return n, nil
}

func (s *RatesService) ListCurrentRates(ctx context.Context) ([]domain.CurrentRate, error) {
	return s.store.ListCurrent(ctx)
}

// GetHistory returns up to HistoryLimit archived rates for code, newest first.
func (s *RatesService) GetHistory(ctx context.Context, code string) ([]domain.RateHistoryEntry, error) {
	return s.store.ListHistory(ctx, domain.NormalizeCode(code), HistoryLimit)
}

// ManualUpdate reconciles a single currency. A repeated idempotency key yields ErrConflict.
func (s *RatesService) ManualUpdate(ctx context.Context, code string, rate float64, idem *string) (ReconcileResult, error) {
	c := domain.NormalizeCode(code)
	if !domain.ValidateCode(c) {
		return ReconcileResult{}, fmt.Errorf("%w: %w", ErrBadRequest, domain.ErrInvalidCurrency)
	}
	if !domain.ValidRate(rate) {
		return ReconcileResult{}, fmt.Errorf("%w: %w", ErrBadRequest, domain.ErrInvalidRate)
	}
	if idem == nil || *idem == "" {
		return s.reconciler.Reconcile(ctx, c, rate)
	}

	key := "update-rate:" + *idem
	ok, err := s.idem.TryReserve(ctx, key)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if !ok {
		return ReconcileResult{}, ErrConflict
	}
	res, err := s.reconciler.Reconcile(ctx, c, rate)
	if err != nil {
		// Nothing was written, so a retry with the same key must be allowed.
		if rerr := s.idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
			s.log.Warn("idempotency.release_failed", zap.String("key", key), zap.Error(rerr))
		}
		return ReconcileResult{}, err
	}
	return res, nil
}

type AutoUpdateResult struct {
	Success bool
	Message string
	Source  string
	Updated int
	Failed  []domain.CurrencyCode
}

// UpdateAllFromSource fetches rates from the first source that answers and reconciles
// every tracked currency it returned. When all sources fail nothing is written.
func (s *RatesService) UpdateAllFromSource(ctx context.Context) (AutoUpdateResult, error) {
	rates, source, err := s.fetch(ctx)
	if err != nil {
		s.metrics.AutoUpdateDone("", false)
		s.log.Error("auto_update.sources_failed", zap.Error(err))
		return AutoUpdateResult{Success: false, Message: "failed to update rates from all sources"}, err
	}

	var (
		mu      sync.Mutex
		updated int
		failed  []domain.CurrencyCode
		errs    []error
		g       errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, tc := range domain.TrackedCurrencies {
		tc := tc
		rate, ok := rates[tc.Code]
		if !ok {
			s.log.Warn("auto_update.rate_missing", zap.String("currency", string(tc.Code)), zap.String("source", source))
			continue
		}
		g.Go(func() error {
			_, err := s.reconciler.ReconcileOrInit(ctx, tc, rate)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, tc.Code)
				errs = append(errs, fmt.Errorf("%s: %w", tc.Code, err))
				return nil
			}
			updated++
			return nil
		})
	}
	_ = g.Wait()

	res := AutoUpdateResult{Success: true, Source: source, Updated: updated}
	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
		codes := make([]string, len(failed))
		for i, c := range failed {
			codes[i] = string(c)
		}
		res.Success = false
		res.Failed = failed
		res.Message = fmt.Sprintf("updated %d rates from %s; failed: %s", updated, source, strings.Join(codes, ","))
		s.metrics.AutoUpdateDone(source, false)
		return res, errors.Join(errs...)
	}
	res.Message = fmt.Sprintf("rates updated from %s", source)
	s.metrics.AutoUpdateDone(source, true)
	s.log.Info("auto_update.done", zap.String("source", source), zap.Int("updated", updated))
	return res, nil
}

func (s *RatesService) fetch(ctx context.Context) (map[domain.CurrencyCode]float64, string, error) {
	codes := domain.TrackedCodes()
	var errs []error
	for _, src := range s.sources {
		rates, err := src.FetchRates(ctx, codes)
		s.metrics.SourceFetched(src.Name(), err)
		if err == nil && len(rates) == 0 {
			err = errors.New("no rates returned")
		}
		if err != nil {
			s.log.Warn("auto_update.source_failed", zap.String("source", src.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		return rates, src.Name(), nil
	}
	return nil, "", fmt.Errorf("%w: %w", ErrSourcesUnavailable, errors.Join(errs...))
}

// Ready reports whether the backing store is reachable.
func (s *RatesService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
