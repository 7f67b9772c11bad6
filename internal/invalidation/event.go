// Package invalidation carries coverage data change events from the loader
// to the summary cache.
package invalidation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
)

type Op string

const (
	// OpReload replaces the dataset of the listed partitions (all when empty).
	OpReload Op = "reload"
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

const SRIDLambert93 = "EPSG:2154"

type Event struct {
	Version    int       `json:"version"`
	ID         string    `json:"id"`
	Op         Op        `json:"op"`
	TS         time.Time `json:"ts"`
	Source     string    `json:"source,omitempty"`
	Partitions []string  `json:"partitions,omitempty"`
	BBox       *BBox     `json:"bbox,omitempty"`
}

// BBox is in Lambert-93 metres and may be degenerate (a single point).
type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

func (b BBox) Bounds() model.Bounds {
	return model.Bounds{
		X: model.Range{Min: b.X1, Max: b.X2},
		Y: model.Range{Min: b.Y1, Max: b.Y2},
	}
}

// NewEvent stamps a version 1 event with a fresh id and the current time.
func NewEvent(op Op, source string) Event {
	return Event{Version: 1, ID: uuid.NewString(), Op: op, TS: time.Now().UTC(), Source: source}
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if _, err := e.PartitionIDs(); err != nil {
		return err
	}
	switch e.Op {
	case OpReload:
	case OpUpsert, OpDelete:
		if e.BBox == nil && len(e.Partitions) == 0 {
			return fmt.Errorf("%s needs bbox or partitions", e.Op)
		}
	default:
		return fmt.Errorf("op must be reload|upsert|delete")
	}
	if e.BBox != nil {
		bb := *e.BBox
		if bb.SRID != SRIDLambert93 {
			return fmt.Errorf("bbox.srid must be %s", SRIDLambert93)
		}
		if bb.X2 < bb.X1 || bb.Y2 < bb.Y1 {
			return fmt.Errorf("bbox must satisfy x2>=x1 and y2>=y1")
		}
	}
	return nil
}

func (e Event) PartitionIDs() ([]partition.ID, error) {
	out := make([]partition.ID, 0, len(e.Partitions))
	for _, s := range e.Partitions {
		id, err := partition.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
