// Package sqlitestore is the embedded coverage store. SQLite has no native
// partitioning, so each partition is its own table with the same columns.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/config"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/store"
)

func init() {
	store.Register("sqlite", func(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
		return Open(ctx, cfg.SQLitePath, partition.Lambert93(), log)
	})
}

type Store struct {
	db     *sql.DB
	layout partition.Layout
	log    *slog.Logger
}

var _ store.Store = (*Store)(nil)

func Open(ctx context.Context, path string, l partition.Layout, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(4)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite wal: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, layout: l, log: log}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, id := range s.layout.All() {
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	operateur TEXT NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	g2 INTEGER NOT NULL DEFAULT 0,
	g3 INTEGER NOT NULL DEFAULT 0,
	g4 INTEGER NOT NULL DEFAULT 0
)`, id.Table()),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_x_y_%s ON %s (x, y)", id, id.Table()),
		}
		for _, q := range stmts {
			if _, err := s.db.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("migrate %s: %w", id.Table(), err)
			}
		}
	}
	return nil
}

func (s *Store) QueryRange(ctx context.Context, p partition.ID, xr, yr model.Range) ([]model.CoverageRecord, error) {
	if err := store.CheckPartition(s.layout, p); err != nil {
		return nil, err
	}
	xlo, xhi := store.IntBounds(xr)
	ylo, yhi := store.IntBounds(yr)

	q := fmt.Sprintf("SELECT operateur, x, y, g2, g3, g4 FROM %s WHERE x BETWEEN ? AND ? AND y BETWEEN ? AND ?", p.Table())
	rows, err := s.db.QueryContext(ctx, q, xlo, xhi, ylo, yhi)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.Table(), err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.CoverageRecord
	for rows.Next() {
		var r model.CoverageRecord
		if err := rows.Scan(&r.OperatorCode, &r.X, &r.Y, &r.Has2G, &r.Has3G, &r.Has4G); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.Table(), err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s: %w", p.Table(), err)
	}
	return out, nil
}

// Insert writes every record in one transaction.
func (s *Store) Insert(ctx context.Context, recs []model.CoverageRecord) (counts store.Counts, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	counts = store.Counts{}
	for id, part := range store.Split(s.layout, recs) {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			"INSERT INTO %s (operateur, x, y, g2, g3, g4) VALUES (?, ?, ?, ?, ?, ?)", id.Table()))
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", id.Table(), err)
		}
		for _, r := range part {
			if _, err := stmt.ExecContext(ctx, r.OperatorCode, r.X, r.Y, b2i(r.Has2G), b2i(r.Has3G), b2i(r.Has4G)); err != nil {
				_ = stmt.Close()
				return nil, fmt.Errorf("insert into %s: %w", id.Table(), err)
			}
		}
		_ = stmt.Close()
		counts[id] = len(part)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return counts, nil
}

func (s *Store) Reset(ctx context.Context) error {
	for _, id := range s.layout.All() {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+id.Table()); err != nil {
			return fmt.Errorf("drop %s: %w", id.Table(), err)
		}
	}
	s.log.Info("dropped coverage tables", "partitions", len(s.layout.All()))
	return s.migrate(ctx)
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
