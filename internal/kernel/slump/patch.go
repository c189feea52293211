// Package slump implements the slump/topple mass-movement kernel of
// spec.md §4.6: a precomputed shear-stress diffusion patch, a periodic
// slump trigger and hop, and an iterative topple cascade.
package slump

import (
	"math"

	"github.com/davefavismortlock/rillgrow/internal/grid"
)

type offset struct{ dr, dc int }

// Patch is the precomputed, normalised shear-stress diffusion kernel of
// spec.md §4.6: "a square quadrant of normalised weights... the full patch
// (four reflected quadrants) is normalised so weights sum to one."
type Patch struct {
	weights map[offset]float64
}

// NewPatch builds the patch for a configured radius R_patch (mm) and cell
// side L_cell (mm): Q = max(1, floor(R_patch/L_cell)).
func NewPatch(patchRadiusMM, cellSideMM float64) *Patch {
	q := int(math.Floor(patchRadiusMM / cellSideMM))
	if q < 1 {
		q = 1
	}
	p := &Patch{weights: make(map[offset]float64)}
	var total float64
	for dr := -q; dr <= q; dr++ {
		for dc := -q; dc <= q; dc++ {
			i, j := math.Abs(float64(dr)), math.Abs(float64(dc))
			w := 1 - math.Hypot(i, j)/float64(q)
			if w <= 0 {
				continue
			}
			p.weights[offset{dr, dc}] = w
			total += w
		}
	}
	if total > 0 {
		for k := range p.weights {
			p.weights[k] /= total
		}
	}
	return p
}

// ShearSink adapts a Patch to transport.ShearSink: every shear increment is
// spread across the patch, clipped to the grid ("off-grid weight is
// dropped, not redistributed", spec.md §4.6).
type ShearSink struct {
	Patch *Patch
}

// AddShear implements transport.ShearSink.
func (s *ShearSink) AddShear(g *grid.Grid, at grid.Coord, tau float64) {
	for off, w := range s.Patch.weights {
		n := grid.Coord{Row: at.Row + off.dr, Col: at.Col + off.dc}
		if !g.Valid(n) {
			continue
		}
		g.At(n).ShearAccum += tau * w
	}
}
