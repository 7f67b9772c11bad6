// Package geocoder defines the address to coordinates boundary.
package geocoder

import (
	"context"
	"fmt"

	"github.com/golang/geo/s2"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
)

// Geocoder resolves a free-text address. A nil point with a nil error means
// the provider answered but found nothing.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*model.GeodeticPoint, error)
}

type Func func(ctx context.Context, address string) (*model.GeodeticPoint, error)

func (f Func) Geocode(ctx context.Context, address string) (*model.GeodeticPoint, error) {
	return f(ctx, address)
}

// Validate rejects points outside lon [-180,180] and lat [-90,90], and NaNs.
func Validate(p model.GeodeticPoint) error {
	if !s2.LatLngFromDegrees(p.Lat, p.Lon).IsValid() {
		return fmt.Errorf("invalid coordinates %s", p)
	}
	return nil
}
