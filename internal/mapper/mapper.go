// Package mapper converts geodetic points and boxes to H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
)

type Interface interface {
	Res() int
	CellForPoint(p model.GeodeticPoint) (string, error)
	// CellsForBBox covers bb with cells grown by ring neighbours.
	CellsForBBox(bb model.GeoBBox, ring int) ([]string, error)
}
