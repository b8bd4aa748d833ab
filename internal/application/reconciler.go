package application

import (
	"context"
	"errors"
	"fmt"

	"currency-rates-service/internal/domain"

	"go.uber.org/zap"
)

const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

type ReconcileResult struct {
	Code             domain.CurrencyCode
	Rate             float64
	ChangePercentage float64
	// Initialized is set when the currency had no current row and one was created instead.
	Initialized bool
}

// Reconciler is the single code path that replaces a current rate and archives the old one.
type Reconciler struct {
	store   RateStore
	uow     UnitOfWork
	locks   KeyLocker
	clock   Clock
	metrics Metrics
	log     *zap.Logger
}

func NewReconciler(store RateStore, uow UnitOfWork, locks KeyLocker, clock Clock, metrics Metrics, log *zap.Logger) *Reconciler {
	if uow == nil {
		uow = NoopUoW{}
	}
	if locks == nil {
		locks = NewLocalLocker()
	}
	if clock == nil {
		clock = realClock{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{store: store, uow: uow, locks: locks, clock: clock, metrics: metrics, log: log}
}

// Reconcile installs newRate for an existing currency. Unknown currencies yield ErrNotFound.
func (r *Reconciler) Reconcile(ctx context.Context, code domain.CurrencyCode, newRate float64) (ReconcileResult, error) {
	return r.run(ctx, code, newRate, TriggerManual, nil)
}

// ReconcileOrInit behaves like Reconcile but creates the current row for a tracked
// currency that has none. No history entry is written in that case.
func (r *Reconciler) ReconcileOrInit(ctx context.Context, tc domain.TrackedCurrency, newRate float64) (ReconcileResult, error) {
	return r.run(ctx, tc.Code, newRate, TriggerAuto, &tc)
}

func (r *Reconciler) run(ctx context.Context, code domain.CurrencyCode, newRate float64, trigger string, init *domain.TrackedCurrency) (ReconcileResult, error) {
	log := r.log.With(zap.String("currency", string(code)), zap.String("trigger", trigger), zap.Float64("rate", newRate))
	if !domain.ValidRate(newRate) {
		return ReconcileResult{}, fmt.Errorf("%w: %w", ErrBadRequest, domain.ErrInvalidRate)
	}

	unlock, err := r.locks.Lock(ctx, string(code))
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("lock %s: %w", code, err)
	}
	defer unlock()

	var res ReconcileResult
	err = r.uow.Do(ctx, func(ctx context.Context) error {
		cur, err := r.store.GetCurrent(ctx, code)
		if errors.Is(err, ErrNotFound) && init != nil {
			row := domain.CurrentRate{Code: code, Name: init.Name, Rate: newRate, UpdatedAt: r.clock.Now()}
			if _, err := r.store.SeedIfAbsent(ctx, []domain.CurrentRate{row}); err != nil {
				return err
			}
			res = ReconcileResult{Code: code, Rate: newRate, Initialized: true}
			return nil
		}
		if err != nil {
			return err
		}
		rec := domain.Reconcile(cur, newRate, r.clock.Now())
		if err := r.store.ApplyReconciliation(ctx, rec); err != nil {
			return err
		}
		res = ReconcileResult{Code: code, Rate: rec.Next.Rate, ChangePercentage: rec.Next.ChangePercentage}
		return nil
	})
	r.metrics.ReconcileDone(code, trigger, err)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Info("reconcile.not_found")
		} else {
			log.Error("reconcile.failed", zap.Error(err))
		}
		return ReconcileResult{}, err
	}
	log.Info("reconcile.done",
		zap.Float64("change_percentage", res.ChangePercentage),
		zap.Bool("initialized", res.Initialized),
	)
	return res, nil
}
