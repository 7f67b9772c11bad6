// Package summarycache stores computed coverage summaries in Redis and
// indexes them by partition and by H3 cell for targeted invalidation.
package summarycache

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mohammed-shakir/coverage-lookup/internal/cache"
	"github.com/mohammed-shakir/coverage-lookup/internal/cache/keys"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/lookup"
	"github.com/mohammed-shakir/coverage-lookup/internal/mapper"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/projection"
)

// edgeSamples is how many points per side are unprojected when turning a
// Lambert-93 box into a geodetic one; LCC maps straight sides to curves.
const edgeSamples = 8

type Cache struct {
	kv     cache.Interface
	cells  mapper.Interface
	layout partition.Layout
	ttl    time.Duration
	radius float64
	ring   int
}

type Option func(*Cache)

// WithRadius sets the search radius invalidation boxes are grown by.
func WithRadius(r float64) Option { return func(c *Cache) { c.radius = r } }

// WithRing sets the H3 neighbour ring added around invalidated cells.
func WithRing(k int) Option { return func(c *Cache) { c.ring = k } }

func WithLayout(l partition.Layout) Option { return func(c *Cache) { c.layout = l } }

func New(kv cache.Interface, cells mapper.Interface, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		kv:     kv,
		cells:  cells,
		layout: partition.Lambert93(),
		ttl:    ttl,
		radius: lookup.DefaultRadius,
		ring:   1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ lookup.SummaryCache = (*Cache)(nil)

func key(q lookup.Query) string {
	return keys.Summary(q.Partition, q.Center, q.Radius, q.Mode.String())
}

func (c *Cache) Get(ctx context.Context, q lookup.Query) (model.CoverageSummary, bool, error) {
	b, ok, err := c.kv.Get(ctx, key(q))
	if err != nil || !ok {
		return nil, false, err
	}
	s, err := model.UnmarshalSummary(b)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Put indexes the summary under every partition its window read from and
// under the H3 cell of its center.
func (c *Cache) Put(ctx context.Context, q lookup.Query, s model.CoverageSummary) error {
	b, err := s.Marshal()
	if err != nil {
		return err
	}
	cell, err := c.cells.CellForPoint(q.Geo)
	if err != nil {
		return err
	}
	idx := []string{keys.CellIndex(cell)}
	for _, id := range c.layout.Overlapping(q.Bounds.X) {
		idx = append(idx, keys.PartitionIndex(id))
	}
	return c.kv.SetIndexed(ctx, key(q), b, c.ttl, idx...)
}

// InvalidatePartitions drops every summary that read from ids and returns
// the number of keys deleted.
func (c *Cache) InvalidatePartitions(ctx context.Context, ids []partition.ID) (int, error) {
	idx := make([]string, 0, len(ids))
	for _, id := range ids {
		idx = append(idx, keys.PartitionIndex(id))
	}
	return c.dropIndexed(ctx, idx)
}

// InvalidateAll drops every indexed summary.
func (c *Cache) InvalidateAll(ctx context.Context) (int, error) {
	return c.InvalidatePartitions(ctx, c.layout.All())
}

// InvalidateBBox drops the summaries whose center lies within the search
// radius of the Lambert-93 box b.
func (c *Cache) InvalidateBBox(ctx context.Context, b model.Bounds) (int, error) {
	if b.X.Max < b.X.Min || b.Y.Max < b.Y.Min {
		return 0, fmt.Errorf("invalid bounds %+v", b)
	}
	grown := model.Bounds{
		X: model.Range{Min: b.X.Min - c.radius, Max: b.X.Max + c.radius},
		Y: model.Range{Min: b.Y.Min - c.radius, Max: b.Y.Max + c.radius},
	}
	cells, err := c.cells.CellsForBBox(GeoBBox(grown), c.ring)
	if err != nil {
		return 0, err
	}
	idx := make([]string, 0, len(cells))
	for _, cell := range cells {
		idx = append(idx, keys.CellIndex(cell))
	}
	return c.dropIndexed(ctx, idx)
}

func (c *Cache) dropIndexed(ctx context.Context, idx []string) (int, error) {
	if len(idx) == 0 {
		return 0, nil
	}
	members, err := c.kv.Members(ctx, idx...)
	if err != nil {
		return 0, err
	}
	n, err := c.kv.Del(ctx, members...)
	if err != nil {
		return 0, err
	}
	if _, err := c.kv.Del(ctx, idx...); err != nil {
		return int(n), err
	}
	return int(n), nil
}

// GeoBBox returns the geodetic envelope of a Lambert-93 box, sampling each
// side so the curved image of the box stays inside.
func GeoBBox(b model.Bounds) model.GeoBBox {
	out := model.GeoBBox{X1: math.Inf(1), Y1: math.Inf(1), X2: math.Inf(-1), Y2: math.Inf(-1)}
	add := func(x, y float64) {
		g := projection.Unproject(model.PlanarPoint{X: x, Y: y})
		out.X1 = math.Min(out.X1, g.Lon)
		out.X2 = math.Max(out.X2, g.Lon)
		out.Y1 = math.Min(out.Y1, g.Lat)
		out.Y2 = math.Max(out.Y2, g.Lat)
	}
	for i := 0; i <= edgeSamples; i++ {
		f := float64(i) / edgeSamples
		x := b.X.Min + f*(b.X.Max-b.X.Min)
		y := b.Y.Min + f*(b.Y.Max-b.Y.Min)
		add(x, b.Y.Min)
		add(x, b.Y.Max)
		add(b.X.Min, y)
		add(b.X.Max, y)
	}
	return out
}
