package lookup

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
	"github.com/mohammed-shakir/coverage-lookup/internal/proximity"
)

var paris = &model.GeodeticPoint{Lon: 2.3522, Lat: 48.8566}

type fakeGeocoder struct {
	pt    *model.GeodeticPoint
	err   error
	calls int
	delay time.Duration
}

func (f *fakeGeocoder) Geocode(ctx context.Context, _ string) (*model.GeodeticPoint, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.pt, f.err
}

type rangeCall struct {
	id     partition.ID
	xr, yr model.Range
}

type fakeStore struct {
	mu    sync.Mutex
	byID  map[partition.ID][]model.CoverageRecord
	errOn map[partition.ID]error
	calls []rangeCall
}

func (f *fakeStore) QueryRange(_ context.Context, id partition.ID, xr, yr model.Range) ([]model.CoverageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rangeCall{id: id, xr: xr, yr: yr})
	if err := f.errOn[id]; err != nil {
		return nil, err
	}
	return f.byID[id], nil
}

func (f *fakeStore) partitions() map[partition.ID]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[partition.ID]bool{}
	for _, c := range f.calls {
		out[c.id] = true
	}
	return out
}

type memCache struct {
	m    map[partition.ID]model.CoverageSummary
	puts int
	err  error
}

func (c *memCache) Get(_ context.Context, q Query) (model.CoverageSummary, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	s, ok := c.m[q.Partition]
	return s, ok, nil
}

func (c *memCache) Put(_ context.Context, q Query, s model.CoverageSummary) error {
	c.puts++
	if c.err != nil {
		return c.err
	}
	if c.m == nil {
		c.m = map[partition.ID]model.CoverageSummary{}
	}
	c.m[q.Partition] = s
	return nil
}

func newService(t *testing.T, g Geocoder, s Store, opts ...Option) *Service {
	t.Helper()
	svc, err := New(DefaultConfig(), g, s, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestLookup_ScenarioA_Paris(t *testing.T) {
	store := &fakeStore{byID: map[partition.ID][]model.CoverageRecord{
		partition.P2: {{OperatorCode: "20801", X: 652470, Y: 6862036, Has2G: true, Has3G: true}},
	}}
	svc := newService(t, &fakeGeocoder{pt: paris}, store)

	got, err := svc.Lookup(context.Background(), "  8 bd du Port, Paris ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := model.CoverageSummary{"Orange": {G2: true, G3: true, G4: false}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
	if parts := store.partitions(); len(parts) != 1 || !parts[partition.P2] {
		t.Fatalf("queried partitions=%v want only p2", parts)
	}
}

func TestResolve_ParisQuery(t *testing.T) {
	svc := newService(t, &fakeGeocoder{pt: paris}, &fakeStore{})
	q, err := svc.Resolve(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if q.Partition != partition.P2 || q.Radius != DefaultRadius || q.Mode != proximity.Circular {
		t.Fatalf("unexpected query: %+v", q)
	}
	if d := q.Center.X - 652469.02; d > 0.1 || d < -0.1 {
		t.Fatalf("x=%v", q.Center.X)
	}
	if q.Bounds.X.Max-q.Bounds.X.Min != 2*DefaultRadius {
		t.Fatalf("bounds=%+v", q.Bounds)
	}
}

func TestLookup_ScenarioB_EmptyAddress(t *testing.T) {
	geo := &fakeGeocoder{pt: paris}
	svc := newService(t, geo, &fakeStore{})
	for _, addr := range []string{"", "   \t"} {
		if _, err := svc.Lookup(context.Background(), addr); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("addr=%q err=%v want ErrInvalidInput", addr, err)
		}
	}
	if geo.calls != 0 {
		t.Fatalf("geocoder called %d times for empty input", geo.calls)
	}
}

func TestLookup_ScenarioC_NoFeatures(t *testing.T) {
	store := &fakeStore{}
	svc := newService(t, &fakeGeocoder{}, store)

	_, err := svc.Lookup(context.Background(), "nowhere")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	if errors.Is(err, ErrGeocoderUnavailable) || errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err=%v must be a plain not-found", err)
	}
	if len(store.calls) != 0 {
		t.Fatalf("store must not be queried, calls=%d", len(store.calls))
	}
}

func TestLookup_GeocoderFailureIsUnavailableNotFound(t *testing.T) {
	svc := newService(t, &fakeGeocoder{err: errors.New("dial tcp: refused")}, &fakeStore{})

	_, err := svc.Lookup(context.Background(), "Paris")
	if !errors.Is(err, ErrGeocoderUnavailable) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want unavailable and not-found", err)
	}
	if Outcome(err) != "geocoder_unavailable" {
		t.Fatalf("outcome=%q", Outcome(err))
	}
}

func TestLookup_GeocoderTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GeocodeTimeout = 10 * time.Millisecond
	svc, err := New(cfg, &fakeGeocoder{pt: paris, delay: time.Second}, &fakeStore{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.Lookup(context.Background(), "Paris")
	if !errors.Is(err, ErrGeocoderUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want unavailable wrapping deadline", err)
	}
}

func TestLookup_ScenarioD_EmptyResult(t *testing.T) {
	svc := newService(t, &fakeGeocoder{pt: paris}, &fakeStore{})

	_, err := svc.Lookup(context.Background(), "Paris")
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err=%v want ErrEmptyResult", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("empty result must be distinct from not found")
	}
}

func TestLookup_ScenarioE_StoreError(t *testing.T) {
	store := &fakeStore{errOn: map[partition.ID]error{partition.P2: errors.New("connection refused")}}
	svc := newService(t, &fakeGeocoder{pt: paris}, store)

	_, err := svc.Lookup(context.Background(), "Paris")
	if !errors.Is(err, ErrStore) {
		t.Fatalf("err=%v want ErrStore", err)
	}
	if errors.Is(err, ErrEmptyResult) {
		t.Fatalf("store error coerced to empty result")
	}
}

func TestLookup_RecordsOutsideRadiusAreDropped(t *testing.T) {
	store := &fakeStore{byID: map[partition.ID][]model.CoverageRecord{
		// inside the square window but outside the disk
		partition.P2: {{OperatorCode: "20810", X: 652469 + 2500, Y: 6862035 + 2500, Has4G: true}},
	}}
	svc := newService(t, &fakeGeocoder{pt: paris}, store)
	if _, err := svc.Lookup(context.Background(), "Paris"); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err=%v want ErrEmptyResult", err)
	}

	cfg := DefaultConfig()
	cfg.Mode = proximity.BoundingBox
	bbox, err := New(cfg, &fakeGeocoder{pt: paris}, store)
	if err != nil {
		t.Fatal(err)
	}
	got, err := bbox.Lookup(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("bbox lookup: %v", err)
	}
	if _, ok := got["SFR"]; !ok {
		t.Fatalf("bbox mode should keep the corner record, got=%v", got)
	}
}

func TestLookup_NearestRecordWinsPerOperator(t *testing.T) {
	store := &fakeStore{byID: map[partition.ID][]model.CoverageRecord{
		partition.P2: {
			{OperatorCode: "20815", X: 653400, Y: 6862035, Has2G: true},
			{OperatorCode: "20815", X: 652470, Y: 6862036, Has4G: true},
		},
	}}
	svc := newService(t, &fakeGeocoder{pt: paris}, store)
	got, err := svc.Lookup(context.Background(), "Paris")
	if err != nil {
		t.Fatal(err)
	}
	if want := (model.Capabilities{G4: true}); got["Free"] != want {
		t.Fatalf("Free=%+v want %+v", got["Free"], want)
	}
}

func TestLookup_WindowAcrossPartitionsQueriesBoth(t *testing.T) {
	// x is about 400700, so the window straddles p1 and p2
	geo := &fakeGeocoder{pt: &model.GeodeticPoint{Lon: -0.94, Lat: 47}}
	store := &fakeStore{}
	svc := newService(t, geo, store)

	q, err := svc.Resolve(context.Background(), "edge")
	if err != nil {
		t.Fatal(err)
	}
	want := partition.Lambert93().Overlapping(q.Bounds.X)
	if len(want) != 2 {
		t.Fatalf("window %+v should overlap two partitions, got %v", q.Bounds.X, want)
	}
	_, _ = svc.Lookup(context.Background(), "edge")
	parts := store.partitions()
	if len(parts) != len(want) {
		t.Fatalf("queried=%v want %v", parts, want)
	}
	for _, id := range want {
		if !parts[id] {
			t.Fatalf("partition %s not queried (want %v)", id, want)
		}
	}
}

func TestLookup_CacheHitSkipsStore(t *testing.T) {
	cache := &memCache{m: map[partition.ID]model.CoverageSummary{
		partition.P2: {"Orange": {G4: true}},
	}}
	store := &fakeStore{}
	svc := newService(t, &fakeGeocoder{pt: paris}, store, WithCache(cache))

	got, err := svc.Lookup(context.Background(), "Paris")
	if err != nil {
		t.Fatal(err)
	}
	if !got["Orange"].G4 || len(store.calls) != 0 {
		t.Fatalf("got=%v calls=%d", got, len(store.calls))
	}
}

func TestLookup_CacheFillAndErrorsAreNotSurfaced(t *testing.T) {
	store := &fakeStore{byID: map[partition.ID][]model.CoverageRecord{
		partition.P2: {{OperatorCode: "20820", X: 652470, Y: 6862036, Has3G: true}},
	}}
	cache := &memCache{}
	svc := newService(t, &fakeGeocoder{pt: paris}, store, WithCache(cache))
	if _, err := svc.Lookup(context.Background(), "Paris"); err != nil {
		t.Fatal(err)
	}
	if cache.puts != 1 || !cache.m[partition.P2]["Bouygues"].G3 {
		t.Fatalf("cache not filled: puts=%d m=%v", cache.puts, cache.m)
	}

	broken := &memCache{err: errors.New("redis down")}
	svc = newService(t, &fakeGeocoder{pt: paris}, store, WithCache(broken))
	if _, err := svc.Lookup(context.Background(), "Paris"); err != nil {
		t.Fatalf("cache errors must not fail lookups: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, &fakeStore{}); err == nil {
		t.Fatal("expected error for nil geocoder")
	}
	if _, err := New(DefaultConfig(), &fakeGeocoder{}, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	cfg := DefaultConfig()
	cfg.Radius = 0
	if _, err := New(cfg, &fakeGeocoder{}, &fakeStore{}); err == nil {
		t.Fatal("expected error for zero radius")
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":            nil,
		"invalid_input": ErrInvalidInput,
		"not_found":     ErrNotFound,
		"empty_result":  ErrEmptyResult,
		"store_error":   errors.Join(errors.New("x"), ErrStore),
		"error":         errors.New("other"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Fatalf("Outcome(%v)=%q want %q", err, got, want)
		}
	}
}
