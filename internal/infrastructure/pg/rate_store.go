package pg

import (
	"context"
	"errors"
	"fmt"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/domain"
	"currency-rates-service/internal/infrastructure/logx"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var _ application.RateStore = (*RateStore)(nil)

type RateStore struct {
	db  *DB
	uow *UnitOfWork
}

func NewRateStore(db *DB) *RateStore { return &RateStore{db: db, uow: NewUnitOfWork(db)} }

func (r *RateStore) q(ctx context.Context) querier {
	if tx := txFromCtx(ctx); tx != nil {
		return tx
	}
	return r.db.Pool
}

func (r *RateStore) ListCurrent(ctx context.Context) ([]domain.CurrentRate, error) {
	const q = `
        SELECT id, currency_code, currency_name, rate, change_percentage, updated_at
        FROM current_rates ORDER BY currency_code`
	rows, err := r.q(ctx).Query(ctx, q)
	if err != nil {
		logx.L().Error("sql.query_failed", zap.String("repo", "rates"), zap.String("operation", "ListCurrent"), zap.Error(err))
		return nil, fmt.Errorf("list current rates: %w", err)
	}
	defer rows.Close()
	var out []domain.CurrentRate
	for rows.Next() {
		var c domain.CurrentRate
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Rate, &c.ChangePercentage, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan current rate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCurrent locks the row FOR UPDATE when called inside a UnitOfWork.
func (r *RateStore) GetCurrent(ctx context.Context, code domain.CurrencyCode) (domain.CurrentRate, error) {
	q := `
        SELECT id, currency_code, currency_name, rate, change_percentage, updated_at
        FROM current_rates WHERE currency_code=$1`
	if txFromCtx(ctx) != nil {
		q += ` FOR UPDATE`
	}
	var c domain.CurrentRate
	err := r.q(ctx).QueryRow(ctx, q, code).Scan(&c.ID, &c.Code, &c.Name, &c.Rate, &c.ChangePercentage, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CurrentRate{}, application.ErrNotFound
	}
	if err != nil {
		logx.L().Error("sql.query_failed", zap.String("repo", "rates"), zap.String("operation", "GetCurrent"),
			zap.String("currency", string(code)), zap.Error(err))
		return domain.CurrentRate{}, fmt.Errorf("get current rate %s: %w", code, err)
	}
	return c, nil
}

func (r *RateStore) ListHistory(ctx context.Context, code domain.CurrencyCode, limit int) ([]domain.RateHistoryEntry, error) {
	const q = `
        SELECT id, currency_code, rate, change_percentage, updated_at
        FROM rate_history
        WHERE currency_code=$1
        ORDER BY updated_at DESC, id DESC
        LIMIT $2`
	rows, err := r.q(ctx).Query(ctx, q, code, limit)
	if err != nil {
		logx.L().Error("sql.query_failed", zap.String("repo", "rates"), zap.String("operation", "ListHistory"), zap.Error(err))
		return nil, fmt.Errorf("list history %s: %w", code, err)
	}
	defer rows.Close()
	out := []domain.RateHistoryEntry{}
	for rows.Next() {
		var h domain.RateHistoryEntry
		if err := rows.Scan(&h.ID, &h.Code, &h.Rate, &h.ChangePercentage, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *RateStore) SeedIfAbsent(ctx context.Context, rates []domain.CurrentRate) (int, error) {
	const ins = `
        INSERT INTO current_rates(currency_code, currency_name, rate, change_percentage, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (currency_code) DO NOTHING`
	log := logx.L().With(zap.String("repo", "rates"), zap.String("operation", "SeedIfAbsent"))
	inserted := 0
	for _, c := range rates {
		tag, err := r.q(ctx).Exec(ctx, ins, c.Code, c.Name, c.Rate, c.ChangePercentage, c.UpdatedAt)
		if err != nil {
			log.Error("sql.exec_failed", zap.String("currency", string(c.Code)), zap.Error(err))
			return inserted, fmt.Errorf("seed %s: %w", c.Code, err)
		}
		inserted += int(tag.RowsAffected())
	}
	log.Debug("sql.exec_success", zap.Int("rows_affected", inserted))
	return inserted, nil
}

func (r *RateStore) ApplyReconciliation(ctx context.Context, rec domain.Reconciliation) error {
	const insHist = `
        INSERT INTO rate_history(currency_code, rate, change_percentage, updated_at)
        VALUES ($1, $2, $3, $4)`
	const upCur = `
        UPDATE current_rates
        SET rate=$2, change_percentage=$3, updated_at=$4
        WHERE currency_code=$1`
	log := logx.L().With(
		zap.String("repo", "rates"),
		zap.String("operation", "ApplyReconciliation"),
		zap.String("currency", string(rec.Next.Code)),
	)
	return r.uow.Do(ctx, func(ctx context.Context) error {
		q := r.q(ctx)
		log.Debug("sql.exec_start")
		if _, err := q.Exec(ctx, insHist, rec.History.Code, rec.History.Rate, rec.History.ChangePercentage, rec.History.UpdatedAt); err != nil {
			log.Error("sql.exec_failed", zap.String("sql", insHist), zap.Error(err))
			return fmt.Errorf("append history %s: %w", rec.History.Code, err)
		}
		tag, err := q.Exec(ctx, upCur, rec.Next.Code, rec.Next.Rate, rec.Next.ChangePercentage, rec.Next.UpdatedAt)
		if err != nil {
			log.Error("sql.exec_failed", zap.String("sql", upCur), zap.Error(err))
			return fmt.Errorf("update current %s: %w", rec.Next.Code, err)
		}
		if tag.RowsAffected() == 0 {
			log.Warn("sql.exec_no_rows")
			return application.ErrNotFound
		}
		log.Debug("sql.exec_success")
		return nil
	})
}

func (r *RateStore) Ping(ctx context.Context) error { return r.db.Ping(ctx) }
