// Package partition routes Lambert-93 easting values to the x-range partitions
// of the coverage dataset.
package partition

import (
	"fmt"
	"math"
	"strings"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
)

type ID string

const (
	P1      ID = "p1"
	P2      ID = "p2"
	P3      ID = "p3"
	Default ID = "default"
)

func (id ID) String() string { return string(id) }

// Table is the suffix used for the physical storage table of a partition.
func (id ID) Table() string { return "network_data_" + string(id) }

func Parse(s string) (ID, error) {
	switch id := ID(strings.ToLower(strings.TrimSpace(s))); id {
	case P1, P2, P3, Default:
		return id, nil
	default:
		return "", fmt.Errorf("unknown partition %q", s)
	}
}

// Route picks the query partition for an easting. It is total over all x:
// anything below 400000 is p1 and anything at or above 800000 is p3.
func Route(x float64) ID {
	switch {
	case x < 400000:
		return P1
	case x < 800000:
		return P2
	default:
		return P3
	}
}

// Bounds returns the square window of side 2*radius around center.
func Bounds(center model.PlanarPoint, radius float64) model.Bounds {
	return model.Bounds{
		X: model.Range{Min: center.X - radius, Max: center.X + radius},
		Y: model.Range{Min: center.Y - radius, Max: center.Y + radius},
	}
}

// Span is a half-open storage range [Lo, Hi).
type Span struct {
	ID ID
	Lo float64
	Hi float64
}

func (s Span) Contains(x float64) bool { return x >= s.Lo && x < s.Hi }

// Layout is the immutable storage layout: contiguous named spans plus a
// default bucket for everything outside them.
type Layout struct {
	spans []Span
}

// Lambert93 returns the layout used by the coverage dataset.
func Lambert93() Layout {
	return Layout{spans: []Span{
		{ID: P1, Lo: 102980, Hi: 400000},
		{ID: P2, Lo: 400000, Hi: 800000},
		{ID: P3, Lo: 800000, Hi: 1240586},
	}}
}

// NewLayout validates that spans are ordered, non-empty and contiguous.
func NewLayout(spans []Span) (Layout, error) {
	if len(spans) == 0 {
		return Layout{}, fmt.Errorf("layout needs at least one span")
	}
	for i, s := range spans {
		if s.ID == Default {
			return Layout{}, fmt.Errorf("span %d: %q is reserved", i, Default)
		}
		if !(s.Hi > s.Lo) {
			return Layout{}, fmt.Errorf("span %s: hi %.0f must exceed lo %.0f", s.ID, s.Hi, s.Lo)
		}
		if i > 0 && spans[i-1].Hi != s.Lo {
			return Layout{}, fmt.Errorf("span %s: gap or overlap at %.0f", s.ID, s.Lo)
		}
	}
	cp := make([]Span, len(spans))
	copy(cp, spans)
	return Layout{spans: cp}, nil
}

func (l Layout) Spans() []Span {
	out := make([]Span, len(l.spans))
	copy(out, l.spans)
	return out
}

// Lo and Hi of the covered domain; values outside land in Default.
func (l Layout) Domain() (float64, float64) {
	if len(l.spans) == 0 {
		return math.Inf(1), math.Inf(-1)
	}
	return l.spans[0].Lo, l.spans[len(l.spans)-1].Hi
}

// Locate returns the storage partition that holds a record at x.
func (l Layout) Locate(x float64) ID {
	for _, s := range l.spans {
		if s.Contains(x) {
			return s.ID
		}
	}
	return Default
}

// Range returns the storage range of id. Default has no finite range.
func (l Layout) Range(id ID) (Span, bool) {
	for _, s := range l.spans {
		if s.ID == id {
			return s, true
		}
	}
	return Span{}, false
}

// Overlapping returns every partition whose storage range intersects
// [xmin, xmax], in ascending x order, with Default last when the window
// leaves the covered domain.
func (l Layout) Overlapping(r model.Range) []ID {
	var out []ID
	for _, s := range l.spans {
		if r.Max >= s.Lo && r.Min < s.Hi {
			out = append(out, s.ID)
		}
	}
	lo, hi := l.Domain()
	if r.Min < lo || r.Max >= hi {
		out = append(out, Default)
	}
	return out
}

// All lists every partition including Default.
func (l Layout) All() []ID {
	out := make([]ID, 0, len(l.spans)+1)
	for _, s := range l.spans {
		out = append(out, s.ID)
	}
	return append(out, Default)
}
