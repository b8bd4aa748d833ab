// Package memstore keeps rates in process memory. Used for local runs (STORAGE=memory) and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/domain"
)

var _ application.RateStore = (*Store)(nil)

type Store struct {
	mu      sync.RWMutex
	nextID  int64
	current map[domain.CurrencyCode]domain.CurrentRate
	history []domain.RateHistoryEntry
	// Err, when set, is returned by every operation.
	Err error
}

func New() *Store {
	return &Store{current: map[domain.CurrencyCode]domain.CurrentRate{}}
}

func (s *Store) ListCurrent(context.Context) ([]domain.CurrentRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]domain.CurrentRate, 0, len(s.current))
	for _, c := range s.current {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetCurrent(_ context.Context, code domain.CurrencyCode) (domain.CurrentRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return domain.CurrentRate{}, s.Err
	}
	c, ok := s.current[code]
	if !ok {
		return domain.CurrentRate{}, application.ErrNotFound
	}
	return c, nil
}

// ListHistory walks the log backwards; entries are appended in archive order.
func (s *Store) ListHistory(_ context.Context, code domain.CurrencyCode, limit int) ([]domain.RateHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []domain.RateHistoryEntry{}
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].Code == code {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

func (s *Store) SeedIfAbsent(_ context.Context, rates []domain.CurrentRate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	n := 0
	for _, c := range rates {
		if _, ok := s.current[c.Code]; ok {
			continue
		}
		s.nextID++
		c.ID = s.nextID
		s.current[c.Code] = c
		n++
	}
	return n, nil
}

func (s *Store) ApplyReconciliation(_ context.Context, rec domain.Reconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.current[rec.Next.Code]; !ok {
		return application.ErrNotFound
	}
	h := rec.History
	h.ID = int64(len(s.history) + 1)
	s.history = append(s.history, h)
	s.current[rec.Next.Code] = rec.Next
	return nil
}

func (s *Store) Ping(context.Context) error { return s.Err }
