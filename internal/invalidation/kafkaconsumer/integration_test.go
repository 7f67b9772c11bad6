package kafkaconsumer

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/coverage-lookup/internal/cache/redisstore"
	"github.com/mohammed-shakir/coverage-lookup/internal/cache/summarycache"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/invalidation"
	"github.com/mohammed-shakir/coverage-lookup/internal/lookup"
	h3mapper "github.com/mohammed-shakir/coverage-lookup/internal/mapper/h3"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/projection"
	"github.com/mohammed-shakir/coverage-lookup/internal/proximity"
)

var _ Invalidator = (*summarycache.Cache)(nil)

func query(lon, lat float64) lookup.Query {
	geo := model.GeodeticPoint{Lon: lon, Lat: lat}
	c := projection.Project(geo)
	return lookup.Query{
		Address:   "q",
		Geo:       geo,
		Center:    c,
		Partition: partition.Route(c.X),
		Bounds:    partition.Bounds(c, lookup.DefaultRadius),
		Radius:    lookup.DefaultRadius,
		Mode:      proximity.Circular,
	}
}

func TestIntegration_BBoxEventDropsOnlyNearbySummaries(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()

	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rc.Close() }()
	m, err := h3mapper.New(7)
	if err != nil {
		t.Fatal(err)
	}
	sc := summarycache.New(rc, m, time.Minute)

	paris := query(2.3522, 48.8566)
	marseille := query(5.3698, 43.2965)
	sum := model.CoverageSummary{"SFR": {G4: true}}
	for _, q := range []lookup.Query{paris, marseille} {
		if err := sc.Put(ctx, q, sum); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	c := newConsumerForTest(t, sc)
	ev := invalidation.NewEvent(invalidation.OpUpsert, "test")
	p := paris.Center
	ev.BBox = &invalidation.BBox{X1: p.X, Y1: p.Y, X2: p.X, Y2: p.Y, SRID: invalidation.SRIDLambert93}
	if err := c.ProcessOne(ctx, msgAt(0, 1, mustJSON(t, ev))); err != nil {
		t.Fatalf("process: %v", err)
	}

	if _, ok, _ := sc.Get(ctx, paris); ok {
		t.Fatalf("paris summary should be invalidated")
	}
	if _, ok, _ := sc.Get(ctx, marseille); !ok {
		t.Fatalf("marseille summary should survive")
	}

	reload := invalidation.NewEvent(invalidation.OpReload, "test")
	if err := c.ProcessOne(ctx, msgAt(0, 2, mustJSON(t, reload))); err != nil {
		t.Fatalf("process reload: %v", err)
	}
	if _, ok, _ := sc.Get(ctx, marseille); ok {
		t.Fatalf("reload should drop every summary")
	}
}
