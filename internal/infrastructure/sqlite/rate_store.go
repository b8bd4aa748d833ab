package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/domain"
	"currency-rates-service/internal/infrastructure/logx"

	"go.uber.org/zap"
)

var _ application.RateStore = (*RateStore)(nil)

// Fixed-width UTC timestamps keep ORDER BY updated_at correct on TEXT columns.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

type RateStore struct {
	db  *DB
	uow *UnitOfWork
}

func NewRateStore(db *DB) *RateStore { return &RateStore{db: db, uow: NewUnitOfWork(db)} }

func (r *RateStore) q(ctx context.Context) querier {
	if tx := txFromCtx(ctx); tx != nil {
		return tx
	}
	return r.db.SQL
}

type scanner interface{ Scan(dest ...any) error }

func scanCurrent(s scanner) (domain.CurrentRate, error) {
	var (
		c  domain.CurrentRate
		ts string
	)
	if err := s.Scan(&c.ID, &c.Code, &c.Name, &c.Rate, &c.ChangePercentage, &ts); err != nil {
		return domain.CurrentRate{}, err
	}
	t, err := parseTS(ts)
	if err != nil {
		return domain.CurrentRate{}, fmt.Errorf("parse updated_at %q: %w", ts, err)
	}
	c.UpdatedAt = t
	return c, nil
}

func (r *RateStore) ListCurrent(ctx context.Context) ([]domain.CurrentRate, error) {
	rows, err := r.q(ctx).QueryContext(ctx, `
        SELECT id, currency_code, currency_name, rate, change_percentage, updated_at
        FROM current_rates ORDER BY currency_code`)
	if err != nil {
		logx.L().Error("sql.query_failed", zap.String("repo", "rates"), zap.String("operation", "ListCurrent"), zap.Error(err))
		return nil, fmt.Errorf("list current rates: %w", err)
	}
	defer rows.Close()
	var out []domain.CurrentRate
	for rows.Next() {
		c, err := scanCurrent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan current rate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *RateStore) GetCurrent(ctx context.Context, code domain.CurrencyCode) (domain.CurrentRate, error) {
	row := r.q(ctx).QueryRowContext(ctx, `
        SELECT id, currency_code, currency_name, rate, change_percentage, updated_at
        FROM current_rates WHERE currency_code=?`, string(code))
	c, err := scanCurrent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CurrentRate{}, application.ErrNotFound
	}
	if err != nil {
		return domain.CurrentRate{}, fmt.Errorf("get current rate %s: %w", code, err)
	}
	return c, nil
}

func (r *RateStore) ListHistory(ctx context.Context, code domain.CurrencyCode, limit int) ([]domain.RateHistoryEntry, error) {
	rows, err := r.q(ctx).QueryContext(ctx, `
        SELECT id, currency_code, rate, change_percentage, updated_at
        FROM rate_history
        WHERE currency_code=?
        ORDER BY updated_at DESC, id DESC
        LIMIT ?`, string(code), limit)
	if err != nil {
		return nil, fmt.Errorf("list history %s: %w", code, err)
	}
	defer rows.Close()
	out := []domain.RateHistoryEntry{}
	for rows.Next() {
		var (
			h  domain.RateHistoryEntry
			ts string
		)
		if err := rows.Scan(&h.ID, &h.Code, &h.Rate, &h.ChangePercentage, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if h.UpdatedAt, err = parseTS(ts); err != nil {
			return nil, fmt.Errorf("parse updated_at %q: %w", ts, err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *RateStore) SeedIfAbsent(ctx context.Context, rates []domain.CurrentRate) (int, error) {
	inserted := 0
	for _, c := range rates {
		res, err := r.q(ctx).ExecContext(ctx, `
            INSERT INTO current_rates(currency_code, currency_name, rate, change_percentage, updated_at)
            VALUES (?, ?, ?, ?, ?)
            ON CONFLICT (currency_code) DO NOTHING`,
			string(c.Code), c.Name, c.Rate, c.ChangePercentage, formatTS(c.UpdatedAt))
		if err != nil {
			logx.L().Error("sql.exec_failed", zap.String("repo", "rates"), zap.String("operation", "SeedIfAbsent"), zap.Error(err))
			return inserted, fmt.Errorf("seed %s: %w", c.Code, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	return inserted, nil
}

func (r *RateStore) ApplyReconciliation(ctx context.Context, rec domain.Reconciliation) error {
	return r.uow.Do(ctx, func(ctx context.Context) error {
		q := r.q(ctx)
		if _, err := q.ExecContext(ctx, `
            INSERT INTO rate_history(currency_code, rate, change_percentage, updated_at)
            VALUES (?, ?, ?, ?)`,
			string(rec.History.Code), rec.History.Rate, rec.History.ChangePercentage, formatTS(rec.History.UpdatedAt)); err != nil {
			return fmt.Errorf("append history %s: %w", rec.History.Code, err)
		}
		res, err := q.ExecContext(ctx, `
            UPDATE current_rates SET rate=?, change_percentage=?, updated_at=?
            WHERE currency_code=?`,
			rec.Next.Rate, rec.Next.ChangePercentage, formatTS(rec.Next.UpdatedAt), string(rec.Next.Code))
		if err != nil {
			return fmt.Errorf("update current %s: %w", rec.Next.Code, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return application.ErrNotFound
		}
		return nil
	})
}

func (r *RateStore) Ping(ctx context.Context) error { return r.db.Ping(ctx) }
