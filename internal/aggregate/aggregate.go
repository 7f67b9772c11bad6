// Package aggregate reduces coverage records into a per-operator summary.
package aggregate

import (
	"fmt"
	"maps"
	"strings"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
)

// Operators maps a PLMN operator code to a display name. It is immutable
// once built and safe for concurrent reads.
type Operators struct {
	names map[string]string
}

// DefaultOperators returns the French mobile operators.
func DefaultOperators() Operators {
	return NewOperators(map[string]string{
		"20801": "Orange",
		"20810": "SFR",
		"20815": "Free",
		"20820": "Bouygues",
	})
}

func NewOperators(names map[string]string) Operators {
	return Operators{names: maps.Clone(names)}
}

// ParseOperators reads "code=name,code=name" and layers it over base.
func ParseOperators(base Operators, s string) (Operators, error) {
	out := maps.Clone(base.names)
	if out == nil {
		out = map[string]string{}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Operators{names: out}, nil
	}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return Operators{}, fmt.Errorf("operator entry %q: want code=name", p)
		}
		code, name := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if code == "" || name == "" {
			return Operators{}, fmt.Errorf("operator entry %q: empty code or name", p)
		}
		out[code] = name
	}
	return Operators{names: out}, nil
}

// Name resolves code, falling back to "Unknown (Code=<code>)".
func (o Operators) Name(code string) string {
	if n, ok := o.names[code]; ok {
		return n
	}
	return fmt.Sprintf("Unknown (Code=%s)", code)
}

func (o Operators) Len() int { return len(o.names) }

// Aggregate groups records by resolved operator name. The first record seen
// for a name wins; later records for the same name are skipped, their flags
// are not merged.
func Aggregate(records []model.CoverageRecord, ops Operators) model.CoverageSummary {
	out := make(model.CoverageSummary)
	for _, r := range records {
		name := ops.Name(r.OperatorCode)
		if _, ok := out[name]; ok {
			continue
		}
		out[name] = model.Capabilities{G2: r.Has2G, G3: r.Has3G, G4: r.Has4G}
	}
	return out
}
