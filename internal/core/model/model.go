// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"fmt"
)

// GeodeticPoint is a WGS84 longitude/latitude pair in degrees.
type GeodeticPoint struct {
	Lon float64
	Lat float64
}

func (p GeodeticPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lon, p.Lat)
}

// PlanarPoint is a projected Lambert-93 coordinate in meters.
type PlanarPoint struct {
	X float64
	Y float64
}

func (p PlanarPoint) String() string {
	return fmt.Sprintf("%.3f,%.3f", p.X, p.Y)
}

// CoverageRecord is one surveyed measurement point for one operator.
type CoverageRecord struct {
	OperatorCode string
	X            int
	Y            int
	Has2G        bool
	Has3G        bool
	Has4G        bool
}

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Bounds is the square search window around a planar center.
type Bounds struct {
	X Range
	Y Range
}

// GeoBBox is a geodetic bounding box in degrees (EPSG:4326).
type GeoBBox struct {
	X1, Y1 float64
	X2, Y2 float64
}

func (b GeoBBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,EPSG:4326", b.X1, b.Y1, b.X2, b.Y2)
}

type Capabilities struct {
	G2 bool `json:"2G"`
	G3 bool `json:"3G"`
	G4 bool `json:"4G"`
}

// CoverageSummary maps an operator display name to its capabilities.
type CoverageSummary map[string]Capabilities

func (s CoverageSummary) Marshal() ([]byte, error) {
	b, err := json.Marshal(map[string]Capabilities(s))
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	return b, nil
}

func UnmarshalSummary(b []byte) (CoverageSummary, error) {
	out := CoverageSummary{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return out, nil
}
