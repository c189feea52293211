// Package splash implements the splash-redistribution kernel of spec.md
// §4.5: a discrete Laplacian over soil-surface elevation, scaled by
// accumulated rain kinetic energy, attenuated by a depth-dependent spline
// for detachment, and closed to mass balance across a two-pass scheme.
package splash

import (
	"github.com/davefavismortlock/rillgrow/internal/balance"
	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
)

// Runner owns the one piece of cross-invocation state splash needs: which
// scan direction to use next, alternated every call to cancel scan-order
// bias (spec.md §4.5 "alternating forward/reverse scan").
type Runner struct {
	reverse bool
}

type cellDelta struct {
	coord    grid.Coord
	deltaZ   float64 // mm; negative = detach, positive = deposit
	missing  int     // count of missing Moore neighbours (for off-edge share)
}

// MaybeRun checks the grid-wide cumulative splash-KE trigger and, if it has
// been exceeded, runs one splash pass and drains the KE accumulators. It
// reports whether a pass ran.
func (r *Runner) MaybeRun(g *grid.Grid, ctx *simctx.Context, ledger *balance.Ledger) bool {
	var totalKE float64
	g.Each(func(_ grid.Coord, c *grid.Cell) { totalKE += c.Rain.SplashKE })
	if totalKE < ctx.SplashKEThreshold {
		return false
	}
	r.run(g, ctx, ledger)
	g.Each(func(_ grid.Coord, c *grid.Cell) { c.Rain.SplashKE = 0 })
	return true
}

func (r *Runner) run(g *grid.Grid, ctx *simctx.Context, ledger *balance.Ledger) {
	elev := snapshotElevations(g)
	deltas := make([]cellDelta, 0, len(elev))

	scan := g.Each
	if r.reverse {
		scan = g.EachReverse
	}
	r.reverse = !r.reverse

	scan(func(c grid.Coord, cell *grid.Cell) {
		lap, missing := laplacian(g, elev, c)
		dz := cell.Rain.SplashKE * ctx.Splash.EfficiencyConstant * lap
		if dz < 0 {
			dz *= ctx.Splash.Phi.Eval(cell.Water.Depth)
		}
		deltas = append(deltas, cellDelta{coord: c, deltaZ: dz, missing: missing})
	})

	var achievedDetach, requestedDeposit float64
	detachedClassTotal := [grid.NumSizeClasses]float64{}

	for _, d := range deltas {
		if d.deltaZ >= 0 {
			requestedDeposit += d.deltaZ
			continue
		}
		cell := g.At(d.coord)
		amounts, achieved := grid.DetachCascade(cell.LayerPointers(), -d.deltaZ, grid.SplashErodibilitySelector, false)
		if achieved <= 0 {
			continue
		}
		for cl := 0; cl < grid.NumSizeClasses; cl++ {
			detachedClassTotal[cl] += amounts[cl]
		}
		achievedDetach += achieved
		cell.Sediment.ThisIteration.Add(grid.ProcSplash, amounts)
	}

	scale := 1.0
	if requestedDeposit > 0 {
		scale = achievedDetach / requestedDeposit
	}
	var mixFraction [grid.NumSizeClasses]float64
	if achievedDetach > 0 {
		for cl := 0; cl < grid.NumSizeClasses; cl++ {
			mixFraction[cl] = detachedClassTotal[cl] / achievedDetach
		}
	}

	for _, d := range deltas {
		if d.deltaZ <= 0 {
			continue
		}
		cell := g.At(d.coord)
		deposit := d.deltaZ * scale

		inGridFraction := float64(8-d.missing) / 8.0
		offEdgeFraction := 1 - inGridFraction

		var amounts, offEdge [grid.NumSizeClasses]float64
		for cl := 0; cl < grid.NumSizeClasses; cl++ {
			share := deposit * mixFraction[cl]
			amounts[cl] = share * inGridFraction
			offEdge[cl] = share * offEdgeFraction
		}
		if cell.Water.IsWet() {
			for cl := 0; cl < grid.NumSizeClasses; cl++ {
				cell.Sediment.Load[cl] += amounts[cl]
			}
		} else {
			grid.DepositTop(cell.LayerPointers(), amounts, false)
			cell.Sediment.ThisIteration.Add(grid.ProcSplash, negate(amounts))
			for cl := 0; cl < grid.NumSizeClasses; cl++ {
				cell.Sediment.RemovedToDeposit[cl] += amounts[cl]
			}
		}
		for cl := 0; cl < grid.NumSizeClasses; cl++ {
			if ledger != nil {
				ledger.SplashOffEdgeSoil[cl].Add(offEdge[cl])
			}
		}
	}
}

func snapshotElevations(g *grid.Grid) map[grid.Coord]float64 {
	m := make(map[grid.Coord]float64)
	g.Each(func(c grid.Coord, cell *grid.Cell) {
		m[c] = cell.SoilSurfaceElevation()
	})
	return m
}

// laplacian returns the average-neighbour-minus-centre discrete Laplacian
// over the valid (non-missing) Moore neighbours of c, and the count of
// missing neighbours (spec.md §4.5: "the divisor scales by the number of
// valid neighbours").
func laplacian(g *grid.Grid, elev map[grid.Coord]float64, c grid.Coord) (float64, int) {
	var sum float64
	var n, missing int
	for _, d := range grid.AllDirections {
		nb, ok := g.Neighbour(c, d)
		if !ok {
			missing++
			continue
		}
		sum += elev[nb]
		n++
	}
	if n == 0 {
		return 0, missing
	}
	return sum/float64(n) - elev[c], missing
}

func negate(a [grid.NumSizeClasses]float64) [grid.NumSizeClasses]float64 {
	for i := range a {
		a[i] = -a[i]
	}
	return a
}
