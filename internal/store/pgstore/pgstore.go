// Package pgstore is the PostgreSQL coverage store: one table range
// partitioned on x, read per child partition and loaded with COPY.
package pgstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/config"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/store"
)

func init() {
	store.Register("postgres", func(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
		return Open(ctx, cfg.Postgres.DSN(), partition.Lambert93(), log)
	})
}

type Store struct {
	pool   *pgxpool.Pool
	layout partition.Layout
	log    *slog.Logger
}

var _ store.Store = (*Store)(nil)

func Open(ctx context.Context, dsn string, l partition.Layout, log *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool, layout: l, log: log}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the partitioned table if it is missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.layout) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) QueryRange(ctx context.Context, p partition.ID, xr, yr model.Range) ([]model.CoverageRecord, error) {
	q, err := selectRange(s.layout, p)
	if err != nil {
		return nil, err
	}
	xlo, xhi := store.IntBounds(xr)
	ylo, yhi := store.IntBounds(yr)

	rows, err := s.pool.Query(ctx, q, xlo, xhi, ylo, yhi)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.Table(), err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CoverageRecord, error) {
		var r model.CoverageRecord
		err := row.Scan(&r.OperatorCode, &r.X, &r.Y, &r.Has2G, &r.Has3G, &r.Has4G)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p.Table(), err)
	}
	return recs, nil
}

// Insert copies recs into the parent table; Postgres routes each row to
// its child partition.
func (s *Store) Insert(ctx context.Context, recs []model.CoverageRecord) (store.Counts, error) {
	if len(recs) == 0 {
		return store.Counts{}, nil
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{parentTable}, columns,
		pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
			r := recs[i]
			return []any{r.OperatorCode, r.X, r.Y, r.Has2G, r.Has3G, r.Has4G}, nil
		}))
	if err != nil {
		return nil, fmt.Errorf("copy into %s: %w", parentTable, err)
	}
	if int(n) != len(recs) {
		return nil, fmt.Errorf("copy into %s: wrote %d of %d rows", parentTable, n, len(recs))
	}

	counts := store.Counts{}
	for id, part := range store.Split(s.layout, recs) {
		counts[id] = len(part)
	}
	return counts, nil
}

func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, dropParent); err != nil {
		return fmt.Errorf("drop %s: %w", parentTable, err)
	}
	s.log.Info("dropped coverage table", "table", parentTable)
	return s.Migrate(ctx)
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
