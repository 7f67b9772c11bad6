package summarycache

import (
	"context"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/coverage-lookup/internal/cache/redisstore"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/lookup"
	h3mapper "github.com/mohammed-shakir/coverage-lookup/internal/mapper/h3"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/projection"
	"github.com/mohammed-shakir/coverage-lookup/internal/proximity"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	m, err := h3mapper.New(7)
	if err != nil {
		t.Fatal(err)
	}
	return New(rc, m, time.Minute), mr
}

func queryAt(lon, lat float64) lookup.Query {
	geo := model.GeodeticPoint{Lon: lon, Lat: lat}
	c := projection.Project(geo)
	return lookup.Query{
		Address:   "test",
		Geo:       geo,
		Center:    c,
		Partition: partition.Route(c.X),
		Bounds:    partition.Bounds(c, lookup.DefaultRadius),
		Radius:    lookup.DefaultRadius,
		Mode:      proximity.Circular,
	}
}

var summary = model.CoverageSummary{"Orange": {G2: true, G3: true}}

func TestPutGet_RoundTrip(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	q := queryAt(2.3522, 48.8566)

	if _, ok, err := c.Get(ctx, q); err != nil || ok {
		t.Fatalf("expected miss: ok=%v err=%v", ok, err)
	}
	if err := c.Put(ctx, q, summary); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := c.Get(ctx, q)
	if err != nil || !ok || !reflect.DeepEqual(got, summary) {
		t.Fatalf("got=%v ok=%v err=%v", got, ok, err)
	}

	other := q
	other.Mode = proximity.BoundingBox
	if _, ok, _ := c.Get(ctx, other); ok {
		t.Fatalf("mode must be part of the key")
	}
}

func TestTTL(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	q := queryAt(2.3522, 48.8566)
	_ = c.Put(ctx, q, summary)

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, q); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestInvalidatePartitions(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	paris := queryAt(2.3522, 48.8566)  // p2
	strasbourg := queryAt(7.75, 48.58) // p3
	_ = c.Put(ctx, paris, summary)
	_ = c.Put(ctx, strasbourg, summary)

	n, err := c.InvalidatePartitions(ctx, []partition.ID{partition.P2})
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if _, ok, _ := c.Get(ctx, paris); ok {
		t.Fatalf("p2 summary survived")
	}
	if _, ok, _ := c.Get(ctx, strasbourg); !ok {
		t.Fatalf("p3 summary was dropped")
	}

	n, err = c.InvalidateAll(ctx)
	if err != nil || n != 1 {
		t.Fatalf("invalidate all: n=%d err=%v", n, err)
	}
}

func TestInvalidateBBox_OnlyNearbyCenters(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()
	paris := queryAt(2.3522, 48.8566)
	marseille := queryAt(5.3698, 43.2965)
	_ = c.Put(ctx, paris, summary)
	_ = c.Put(ctx, marseille, summary)

	// a single record 2 km east of the Paris center
	x, y := int(paris.Center.X)+2000, int(paris.Center.Y)
	b := model.Bounds{
		X: model.Range{Min: float64(x), Max: float64(x)},
		Y: model.Range{Min: float64(y), Max: float64(y)},
	}
	n, err := c.InvalidateBBox(ctx, b)
	if err != nil {
		t.Fatalf("invalidate bbox: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted=%d want 1", n)
	}
	if _, ok, _ := c.Get(ctx, paris); ok {
		t.Fatalf("paris summary survived a nearby change")
	}
	if _, ok, _ := c.Get(ctx, marseille); !ok {
		t.Fatalf("marseille summary dropped by a Paris change")
	}
}

func TestInvalidateBBox_RejectsInverted(t *testing.T) {
	c, _ := newCache(t)
	b := model.Bounds{X: model.Range{Min: 2, Max: 1}}
	if _, err := c.InvalidateBBox(context.Background(), b); err == nil {
		t.Fatal("expected error")
	}
}

func TestGeoBBox_ContainsCorners(t *testing.T) {
	b := model.Bounds{
		X: model.Range{Min: 640000, Max: 660000},
		Y: model.Range{Min: 6850000, Max: 6870000},
	}
	gb := GeoBBox(b)
	for _, p := range []model.PlanarPoint{
		{X: 640000, Y: 6850000}, {X: 660000, Y: 6870000}, {X: 650000, Y: 6860000},
	} {
		g := projection.Unproject(p)
		if g.Lon < gb.X1 || g.Lon > gb.X2 || g.Lat < gb.Y1 || g.Lat > gb.Y2 {
			t.Fatalf("%v (%v) outside %v", p, g, gb)
		}
	}
}
