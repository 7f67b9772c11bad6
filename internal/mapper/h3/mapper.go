package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
)

type Mapper struct {
	res int
}

func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Mapper{res: res}, nil
}

func (m *Mapper) Res() int { return m.res }

func (m *Mapper) CellForPoint(p model.GeodeticPoint) (string, error) {
	c, err := h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lon}, m.res)
	if err != nil {
		return "", fmt.Errorf("h3 cell for %s: %w", p, err)
	}
	return c.String(), nil
}

// CellsForBBox polyfills bb, adds the cells of its corners (a box smaller
// than a cell may contain no cell centre) and grows the set by ring.
func (m *Mapper) CellsForBBox(bb model.GeoBBox, ring int) ([]string, error) {
	if bb.X2 < bb.X1 || bb.Y2 < bb.Y1 {
		return nil, errors.New("bbox min exceeds max")
	}
	if ring < 0 {
		return nil, fmt.Errorf("ring %d must be >= 0", ring)
	}
	// rectangular loop in degrees
	outer := h3.GeoLoop{
		{Lat: bb.Y1, Lng: bb.X1},
		{Lat: bb.Y1, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X1},
	}
	base, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, m.res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}
	for _, ll := range outer {
		c, err := h3.LatLngToCell(ll, m.res)
		if err != nil {
			return nil, fmt.Errorf("h3 corner cell: %w", err)
		}
		base = append(base, c)
	}

	seen := make(map[h3.Cell]struct{}, len(base))
	for _, c := range base {
		if ring == 0 {
			seen[c] = struct{}{}
			continue
		}
		disk, err := h3.GridDisk(c, ring)
		if err != nil {
			return nil, fmt.Errorf("h3 grid disk: %w", err)
		}
		for _, d := range disk {
			seen[d] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c.String())
	}
	sort.Strings(out)
	return out, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
