// Package headcut implements the headcut-retreat kernel of spec.md §4.7:
// flow detachment deposits retreat debt into a cell's eight stored-retreat
// scalars (see internal/kernel/transport), and once a direction's debt
// exceeds that direction's hop length, an upstream retreat event fires.
package headcut

import (
	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
)

// Run scans every non-missing, non-edge cell for a direction whose stored
// retreat has crossed the hop-length threshold and fires a retreat event.
func Run(g *grid.Grid, ctx *simctx.Context) {
	if !ctx.EnableHeadcutRetreat {
		return
	}
	g.Each(func(c grid.Coord, cell *grid.Cell) {
		if cell.Edge != grid.Interior {
			return
		}
		for _, d := range grid.AllDirections {
			threshold := g.HopDistance(d)
			idx := d.Index()
			if cell.StoredRetreat[idx] <= threshold {
				continue
			}
			retreat(g, ctx, c, cell, d)
		}
	})
}

// retreat implements one retreat event in direction d from cell c: the
// upstream cell (i.e. the neighbour in direction d) and c exchange half
// their elevation difference's worth of sediment, from whichever is
// higher to whichever is lower (spec.md §4.7).
func retreat(g *grid.Grid, ctx *simctx.Context, c grid.Coord, cell *grid.Cell, d grid.Direction) {
	upstream, ok := g.Neighbour(c, d)
	if !ok || g.At(upstream).Edge != grid.Interior {
		return
	}
	up := g.At(upstream)

	idx := d.Index()
	oppositeIdx := d.Opposite().Index()

	diff := up.SoilSurfaceElevation() - cell.SoilSurfaceElevation()
	if diff < depthTolerance && diff > -depthTolerance {
		// Effectively zero: leave the debt for a future iteration.
		return
	}

	higher, lower := up, cell
	if diff < 0 {
		higher, lower = cell, up
		diff = -diff
	}

	half := diff / 2
	// ctx.HeadcutErodibilityPolicy is reserved for a dedicated headcut
	// erodibility triple (spec.md §9 open question); no such triple is
	// modelled on SoilLayer, so both policy values use slump erodibilities,
	// matching the documented historical default.
	amounts, achieved := grid.DetachCascade(higher.LayerPointers(), half, grid.SlumpErodibilitySelector, false)
	if achieved > 0 {
		higher.Sediment.ThisIteration.Add(grid.ProcHeadcut, amounts)
		depositMass(lower, amounts)
	}

	cell.StoredRetreat[idx] = 0
	up.StoredRetreat[oppositeIdx] = 0
	cell.HasRetreated = true
}

func depositMass(c *grid.Cell, amounts [grid.NumSizeClasses]float64) {
	if c.Water.IsWet() {
		for cl := 0; cl < grid.NumSizeClasses; cl++ {
			c.Sediment.Load[cl] += amounts[cl]
		}
		return
	}
	grid.DepositTop(c.LayerPointers(), amounts, false)
}

const depthTolerance = 1e-9
