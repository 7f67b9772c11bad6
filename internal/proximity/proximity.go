// Package proximity decides which coverage records fall inside the search
// region around a planar center.
package proximity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
)

type Mode int

const (
	// Circular keeps records whose euclidean distance is <= radius.
	Circular Mode = iota
	// BoundingBox keeps records inside the square of side 2*radius.
	BoundingBox
)

func (m Mode) String() string {
	switch m {
	case Circular:
		return "circular"
	case BoundingBox:
		return "bbox"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "circular", "circle", "disk":
		return Circular, nil
	case "bbox", "box", "square":
		return BoundingBox, nil
	default:
		return 0, fmt.Errorf("unknown proximity mode %q (want circular|bbox)", s)
	}
}

// Within reports whether rec lies in the region of the given mode.
// Edges are inclusive in both modes.
func Within(rec model.CoverageRecord, center model.PlanarPoint, radius float64, mode Mode) bool {
	dx := float64(rec.X) - center.X
	dy := float64(rec.Y) - center.Y
	switch mode {
	case BoundingBox:
		return abs(dx) <= radius && abs(dy) <= radius
	default:
		return dx*dx+dy*dy <= radius*radius
	}
}

// Filter returns the records within radius of center, preserving input order.
func Filter(records []model.CoverageRecord, center model.PlanarPoint, radius float64, mode Mode) []model.CoverageRecord {
	out := make([]model.CoverageRecord, 0, len(records))
	for _, r := range records {
		if Within(r, center, radius, mode) {
			out = append(out, r)
		}
	}
	return out
}

// SquaredDistance between a record and center, in square meters.
func SquaredDistance(rec model.CoverageRecord, center model.PlanarPoint) float64 {
	dx := float64(rec.X) - center.X
	dy := float64(rec.Y) - center.Y
	return dx*dx + dy*dy
}

// SortByDistance orders records nearest-first; ties break on operator code
// then x then y so the order never depends on store row order.
func SortByDistance(records []model.CoverageRecord, center model.PlanarPoint) {
	sort.SliceStable(records, func(i, j int) bool {
		di, dj := SquaredDistance(records[i], center), SquaredDistance(records[j], center)
		if di != dj {
			return di < dj
		}
		a, b := records[i], records[j]
		if a.OperatorCode != b.OperatorCode {
			return a.OperatorCode < b.OperatorCode
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
