// Package keys builds the Redis keys of the summary cache.
package keys

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
)

const prefix = "cov"

// Summary identifies one lookup result. The center is rounded to the
// millimetre so projection noise cannot split a key.
func Summary(p partition.ID, center model.PlanarPoint, radius float64, mode string) string {
	canon := fmt.Sprintf("%d:%d:%d:%s", mm(center.X), mm(center.Y), mm(radius), mode)
	return fmt.Sprintf("%s:sum:%s:%016x", prefix, p, xxhash.Sum64String(canon))
}

// PartitionIndex is the set of summary keys computed from partition p.
func PartitionIndex(p partition.ID) string {
	return prefix + ":idx:part:" + p.String()
}

// CellIndex is the set of summary keys whose center falls in an H3 cell.
func CellIndex(cell string) string {
	return prefix + ":idx:cell:" + cell
}

func mm(v float64) int64 { return int64(math.Round(v * 1000)) }
