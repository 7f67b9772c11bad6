// Package lookup answers which operators cover an address: geocode, project
// to Lambert-93, range-query the partitions under the search window, keep the
// records inside the radius and fold them into one summary per operator.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/coverage-lookup/internal/aggregate"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/observability"
	"github.com/mohammed-shakir/coverage-lookup/internal/logger"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/projection"
	"github.com/mohammed-shakir/coverage-lookup/internal/proximity"
)

const DefaultRadius = 3000.0

type Geocoder interface {
	// Geocode returns nil without error when the address has no match.
	Geocode(ctx context.Context, address string) (*model.GeodeticPoint, error)
}

type Store interface {
	QueryRange(ctx context.Context, p partition.ID, xr, yr model.Range) ([]model.CoverageRecord, error)
}

// Query is everything derived from an address before the store is hit.
type Query struct {
	Address   string
	Geo       model.GeodeticPoint
	Center    model.PlanarPoint
	Partition partition.ID
	Bounds    model.Bounds
	Radius    float64
	Mode      proximity.Mode
}

// SummaryCache is an optional read-through cache of computed summaries.
type SummaryCache interface {
	Get(ctx context.Context, q Query) (model.CoverageSummary, bool, error)
	Put(ctx context.Context, q Query, s model.CoverageSummary) error
}

type Config struct {
	Radius         float64
	Mode           proximity.Mode
	Operators      aggregate.Operators
	Layout         partition.Layout
	GeocodeTimeout time.Duration
	StoreTimeout   time.Duration
	CacheOpTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Radius:         DefaultRadius,
		Mode:           proximity.Circular,
		Operators:      aggregate.DefaultOperators(),
		Layout:         partition.Lambert93(),
		GeocodeTimeout: 5 * time.Second,
		StoreTimeout:   3 * time.Second,
		CacheOpTimeout: 250 * time.Millisecond,
	}
}

type Option func(*Service)

func WithCache(c SummaryCache) Option { return func(s *Service) { s.cache = c } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	cfg   Config
	geo   Geocoder
	store Store
	proj  *projection.Lambert93
	cache SummaryCache
	log   *slog.Logger
	now   func() time.Time
}

func New(cfg Config, geo Geocoder, store Store, opts ...Option) (*Service, error) {
	if geo == nil {
		return nil, errors.New("lookup: nil geocoder")
	}
	if store == nil {
		return nil, errors.New("lookup: nil store")
	}
	if cfg.Radius <= 0 {
		return nil, fmt.Errorf("lookup: radius must be positive, got %v", cfg.Radius)
	}
	if len(cfg.Layout.Spans()) == 0 {
		cfg.Layout = partition.Lambert93()
	}
	if cfg.Operators.Len() == 0 {
		cfg.Operators = aggregate.DefaultOperators()
	}
	s := &Service{
		cfg:   cfg,
		geo:   geo,
		store: store,
		proj:  projection.New(),
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Service) Lookup(ctx context.Context, address string) (model.CoverageSummary, error) {
	start := s.now()
	sum, err := s.lookup(ctx, address)
	observability.IncLookup(Outcome(err))
	if err != nil {
		s.log.DebugContext(ctx, "lookup failed",
			"outcome", Outcome(err), "err", err, "dur", s.now().Sub(start).String())
		return nil, err
	}
	s.log.DebugContext(ctx, "lookup done",
		"operators", len(sum), "dur", s.now().Sub(start).String())
	return sum, nil
}

// Resolve runs the geocode and projection steps only.
func (s *Service) Resolve(ctx context.Context, address string) (Query, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Query{}, ErrInvalidInput
	}

	gctx, cancel := withTimeout(ctx, s.cfg.GeocodeTimeout)
	defer cancel()
	t0 := s.now()
	pt, err := s.geo.Geocode(gctx, address)
	observability.ObserveUpstream("geocoder", err, s.now().Sub(t0).Seconds())
	if err != nil {
		return Query{}, fmt.Errorf("geocode %q: %w: %w", address, ErrGeocoderUnavailable, err)
	}
	if pt == nil {
		return Query{}, fmt.Errorf("geocode %q: %w", address, ErrNotFound)
	}

	center := s.proj.Project(*pt)
	return Query{
		Address:   address,
		Geo:       *pt,
		Center:    center,
		Partition: partition.Route(center.X),
		Bounds:    partition.Bounds(center, s.cfg.Radius),
		Radius:    s.cfg.Radius,
		Mode:      s.cfg.Mode,
	}, nil
}

func (s *Service) lookup(ctx context.Context, address string) (model.CoverageSummary, error) {
	q, err := s.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithPartition(ctx, q.Partition.String())

	if sum, ok := s.cacheGet(ctx, q); ok {
		return sum, nil
	}

	records, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	observability.ObserveRecords("fetched", len(records))

	kept := proximity.Filter(records, q.Center, q.Radius, q.Mode)
	observability.ObserveRecords("filtered", len(kept))
	proximity.SortByDistance(kept, q.Center)

	sum := aggregate.Aggregate(kept, s.cfg.Operators)
	if len(sum) == 0 {
		return nil, ErrEmptyResult
	}
	s.cachePut(ctx, q, sum)
	return sum, nil
}

type partResult struct {
	recs []model.CoverageRecord
	err  error
}

// fetch range-queries every partition the window overlaps. Any failure
// fails the whole query.
func (s *Service) fetch(ctx context.Context, q Query) ([]model.CoverageRecord, error) {
	ids := s.cfg.Layout.Overlapping(q.Bounds.X)

	sctx, cancel := withTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	results := make([]partResult, len(ids))
	var wg sync.WaitGroup
	wg.Add(len(ids))
	for i, id := range ids {
		go func() {
			defer wg.Done()
			t0 := s.now()
			recs, err := s.store.QueryRange(sctx, id, q.Bounds.X, q.Bounds.Y)
			observability.IncPartitionQuery(id.String())
			observability.ObserveUpstream("store", err, s.now().Sub(t0).Seconds())
			results[i] = partResult{recs: recs, err: err}
		}()
	}
	wg.Wait()

	var out []model.CoverageRecord
	for i, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("query partition %s: %w: %w", ids[i], ErrStore, r.err)
		}
		out = append(out, r.recs...)
	}
	return out, nil
}

func (s *Service) cacheGet(ctx context.Context, q Query) (model.CoverageSummary, bool) {
	if s.cache == nil {
		return nil, false
	}
	cctx, cancel := withTimeout(ctx, s.cfg.CacheOpTimeout)
	defer cancel()
	sum, ok, err := s.cache.Get(cctx, q)
	if err != nil {
		s.log.WarnContext(ctx, "summary cache get failed", "err", err)
		return nil, false
	}
	if !ok || len(sum) == 0 {
		observability.IncCacheMiss("summary")
		return nil, false
	}
	observability.IncCacheHit("summary")
	return sum, true
}

func (s *Service) cachePut(ctx context.Context, q Query, sum model.CoverageSummary) {
	if s.cache == nil {
		return
	}
	cctx, cancel := withTimeout(ctx, s.cfg.CacheOpTimeout)
	defer cancel()
	if err := s.cache.Put(cctx, q, sum); err != nil {
		s.log.WarnContext(ctx, "summary cache put failed", "err", err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
