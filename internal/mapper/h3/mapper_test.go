package h3mapper

import (
	"slices"
	"sort"
	"testing"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/mapper"
)

var _ mapper.Interface = (*Mapper)(nil)

func TestNew_InvalidResolution(t *testing.T) {
	for _, res := range []int{-1, 16} {
		if _, err := New(res); err == nil {
			t.Fatalf("expected error for res=%d", res)
		}
	}
}

func TestCellForPoint_Deterministic(t *testing.T) {
	m, _ := New(7)
	p := model.GeodeticPoint{Lon: 2.3522, Lat: 48.8566}
	a, err := m.CellForPoint(p)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.CellForPoint(p)
	if a == "" || a != b {
		t.Fatalf("a=%q b=%q", a, b)
	}
}

func TestCellsForBBox_SortedUniqueAndContainsPoints(t *testing.T) {
	m, _ := New(7)
	bb := model.GeoBBox{X1: 2.30, Y1: 48.83, X2: 2.40, Y2: 48.88}

	cells, err := m.CellsForBBox(bb, 0)
	if err != nil {
		t.Fatalf("CellsForBBox: %v", err)
	}
	if len(cells) == 0 || !sort.StringsAreSorted(cells) || hasDups(cells) {
		t.Fatalf("cells must be non-empty, sorted and unique: %v", cells)
	}
	inside, _ := m.CellForPoint(model.GeodeticPoint{Lon: 2.3522, Lat: 48.8566})
	if !slices.Contains(cells, inside) {
		t.Fatalf("cell %s of an inner point missing", inside)
	}
}

func TestCellsForBBox_TinyBoxStillCovered(t *testing.T) {
	m, _ := New(7)
	p := model.GeodeticPoint{Lon: 2.3522, Lat: 48.8566}
	bb := model.GeoBBox{X1: p.Lon, Y1: p.Lat, X2: p.Lon + 1e-5, Y2: p.Lat + 1e-5}

	cells, err := m.CellsForBBox(bb, 0)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := m.CellForPoint(p)
	if !slices.Contains(cells, want) {
		t.Fatalf("tiny bbox lost its own cell %s: %v", want, cells)
	}
}

func TestCellsForBBox_RingGrows(t *testing.T) {
	m, _ := New(7)
	bb := model.GeoBBox{X1: 2.35, Y1: 48.85, X2: 2.351, Y2: 48.851}
	c0, _ := m.CellsForBBox(bb, 0)
	c1, err := m.CellsForBBox(bb, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(c1) <= len(c0) {
		t.Fatalf("ring=1 gave %d cells, ring=0 gave %d", len(c1), len(c0))
	}
	for _, c := range c0 {
		if !slices.Contains(c1, c) {
			t.Fatalf("ring expansion dropped %s", c)
		}
	}
}

func TestCellsForBBox_Rejects(t *testing.T) {
	m, _ := New(7)
	if _, err := m.CellsForBBox(model.GeoBBox{X1: 3, Y1: 48, X2: 2, Y2: 49}, 0); err == nil {
		t.Fatal("expected error for inverted bbox")
	}
	if _, err := m.CellsForBBox(model.GeoBBox{X1: 2, Y1: 48, X2: 3, Y2: 49}, -1); err == nil {
		t.Fatal("expected error for negative ring")
	}
}

func hasDups(ss []string) bool {
	seen := map[string]struct{}{}
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			return true
		}
		seen[s] = struct{}{}
	}
	return false
}
