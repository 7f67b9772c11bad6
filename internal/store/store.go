// Package store defines the coverage record stores and the driver registry
// the binaries open them through.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/config"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
)

var ErrUnknownPartition = errors.New("unknown partition")

type Querier interface {
	// QueryRange returns the records of one partition whose x and y fall
	// inside the inclusive ranges.
	QueryRange(ctx context.Context, p partition.ID, xr, yr model.Range) ([]model.CoverageRecord, error)
}

// Counts is the number of records written per partition.
type Counts map[partition.ID]int

func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func (c Counts) Add(o Counts) {
	for k, v := range o {
		c[k] += v
	}
}

// IDs lists the partitions with at least one record, sorted.
func (c Counts) IDs() []partition.ID {
	out := make([]partition.ID, 0, len(c))
	for k, v := range c {
		if v > 0 {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type Loader interface {
	// Reset drops every record and recreates the partition layout.
	Reset(ctx context.Context) error
	Insert(ctx context.Context, recs []model.CoverageRecord) (Counts, error)
}

type Store interface {
	Querier
	Loader
	Ping(ctx context.Context) error
	Close() error
}

type Factory func(ctx context.Context, cfg config.Config, log *slog.Logger) (Store, error)

var (
	mu  sync.RWMutex
	reg = map[string]Factory{}
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = f
}

func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func Open(ctx context.Context, name string, cfg config.Config, log *slog.Logger) (Store, error) {
	mu.RLock()
	f, ok := reg[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no store driver %q (registered: %v)", name, Drivers())
	}
	s, err := f(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", name, err)
	}
	return s, nil
}

// Split groups records by the storage partition their x falls in.
func Split(l partition.Layout, recs []model.CoverageRecord) map[partition.ID][]model.CoverageRecord {
	out := map[partition.ID][]model.CoverageRecord{}
	for _, r := range recs {
		id := l.Locate(float64(r.X))
		out[id] = append(out[id], r)
	}
	return out
}

// IntBounds widens a float range to the integer range that contains it.
func IntBounds(r model.Range) (int, int) {
	return int(math.Floor(r.Min)), int(math.Ceil(r.Max))
}

// CheckPartition rejects ids that are not part of l.
func CheckPartition(l partition.Layout, id partition.ID) error {
	for _, known := range l.All() {
		if known == id {
			return nil
		}
	}
	return fmt.Errorf("%w %q", ErrUnknownPartition, id)
}
