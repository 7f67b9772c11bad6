// Package memstore keeps coverage records in process, one slice per
// partition. It backs tests and STORE_DRIVER=memory.
package memstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/config"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/store"
)

func init() {
	store.Register("memory", func(_ context.Context, _ config.Config, _ *slog.Logger) (store.Store, error) {
		return New(partition.Lambert93()), nil
	})
}

type Store struct {
	layout partition.Layout

	mu   sync.RWMutex
	data map[partition.ID][]model.CoverageRecord
}

var _ store.Store = (*Store)(nil)

func New(l partition.Layout, seed ...model.CoverageRecord) *Store {
	s := &Store{layout: l, data: map[partition.ID][]model.CoverageRecord{}}
	_, _ = s.Insert(context.Background(), seed)
	return s
}

func (s *Store) QueryRange(ctx context.Context, p partition.ID, xr, yr model.Range) ([]model.CoverageRecord, error) {
	if err := store.CheckPartition(s.layout, p); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.CoverageRecord
	for _, r := range s.data[p] {
		if xr.Contains(float64(r.X)) && yr.Contains(float64(r.Y)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, recs []model.CoverageRecord) (store.Counts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := store.Counts{}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, part := range store.Split(s.layout, recs) {
		s.data[id] = append(s.data[id], part...)
		counts[id] = len(part)
	}
	return counts, nil
}

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	s.data = map[partition.ID][]model.CoverageRecord{}
	s.mu.Unlock()
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.data {
		n += len(v)
	}
	return n
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }
