package slump

import (
	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
)

// Runner implements the per-cycle slump/topple pass (spec.md §4.6). It
// keeps no state of its own: the timestep controller accumulates the real
// simulated time elapsed since the slump phase last ran (Δt is adaptive,
// so a naive K_slump*currentDt would be wrong) and passes that total in as
// elapsed on every call.
type Runner struct{}

// Run is called every K_slump iterations by the timestep controller.
// elapsed is the simulated time since slump/topple last ran ("divide by
// the elapsed time since last slump calculation", spec.md §4.6).
func (r *Runner) Run(g *grid.Grid, ctx *simctx.Context, elapsed float64) {
	if elapsed <= 0 {
		elapsed = 1
	}

	g.Each(func(c grid.Coord, cell *grid.Cell) {
		if cell.Edge != grid.Interior {
			return
		}
		shearSum := cell.ShearAccum
		for _, d := range grid.AllDirections {
			n, ok := g.Neighbour(c, d)
			if !ok {
				continue
			}
			nb := g.At(n)
			if nb.Water.IsWet() {
				shearSum += nb.ShearAccum
			}
		}

		sat := 1.0
		if ctx.EnableInfiltration {
			if top := cell.TopNonZeroLayer(); top != nil {
				sat = top.SaturationFraction()
			}
		}

		trigger := shearSum * sat / elapsed
		if trigger > ctx.Slump.CriticalShearStress {
			slumpHop(g, ctx, c, cell)
		}
	})

	g.Each(func(_ grid.Coord, cell *grid.Cell) { cell.ShearAccum = 0 })
}

// slumpHop implements spec.md §4.6's "slump hop": find the steepest
// downhill wet neighbour, move half the angle-of-rest excess, and cascade
// topples outward from the source.
func slumpHop(g *grid.Grid, ctx *simctx.Context, c grid.Coord, cell *grid.Cell) {
	selfSurface := cell.SoilSurfaceElevation()
	var bestDir grid.Direction
	var bestDrop float64
	found := false

	for _, d := range grid.AllDirections {
		n, ok := g.Neighbour(c, d)
		if !ok {
			continue
		}
		nb := g.At(n)
		if nb.Edge != grid.Interior || !nb.Water.IsWet() {
			continue
		}
		drop := selfSurface - nb.SoilSurfaceElevation()
		if drop > bestDrop {
			bestDrop = drop
			bestDir = d
			found = true
		}
	}
	if !found {
		return
	}

	dest, _ := g.Neighbour(c, bestDir)
	destCell := g.At(dest)
	hopLen := g.HopDistance(bestDir)
	allowance := hopLen * ctx.Slump.SlumpAngleOfRestTan
	dz := bestDrop - allowance
	if dz <= 0 {
		return
	}

	half := dz / 2
	amounts, achieved := grid.DetachCascade(cell.LayerPointers(), half, grid.SlumpErodibilitySelector, false)
	if achieved <= 0 {
		return
	}
	cell.Sediment.ThisIteration.Add(grid.ProcSlump, amounts)
	depositMass(destCell, amounts)

	toppleCascade(g, ctx, c)
}

// depositMass credits amounts to a cell's sediment load if wet, else to
// its top soil layer (spec.md §4.6/§4.7's recurring "to load if wet, to
// top layer if dry" rule).
func depositMass(c *grid.Cell, amounts [grid.NumSizeClasses]float64) {
	if c.Water.IsWet() {
		for cl := 0; cl < grid.NumSizeClasses; cl++ {
			c.Sediment.Load[cl] += amounts[cl]
		}
		return
	}
	grid.DepositTop(c.LayerPointers(), amounts, false)
}

type toppleWork struct {
	coord grid.Coord
	depth int
}

// toppleCascade implements spec.md §4.6's topple cascade iteratively with
// an explicit work queue bounded by ctx.Slump.ToppleMaxDepth, per spec.md
// §9's instruction to avoid recursion here.
func toppleCascade(g *grid.Grid, ctx *simctx.Context, root grid.Coord) {
	queue := []toppleWork{{coord: root, depth: 0}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= ctx.Slump.ToppleMaxDepth {
			continue
		}
		c := g.At(item.coord)
		if c.Edge != grid.Interior {
			continue
		}
		surface := c.SoilSurfaceElevation()

		for _, d := range grid.AllDirections {
			n, ok := g.Neighbour(item.coord, d)
			if !ok {
				continue
			}
			nb := g.At(n)
			if nb.Edge != grid.Interior {
				continue
			}
			hopLen := g.HopDistance(d)
			nbSurface := nb.SoilSurfaceElevation()
			diff := nbSurface - surface
			if diff <= hopLen*ctx.Slump.ToppleCriticalAngleTan {
				continue
			}
			excess := diff - hopLen*ctx.Slump.ToppleAngleOfRestTan
			if excess <= 0 {
				continue
			}
			half := excess / 2
			amounts, achieved := grid.DetachCascade(nb.LayerPointers(), half, grid.SlumpErodibilitySelector, false)
			if achieved <= 0 {
				continue
			}
			nb.Sediment.ThisIteration.Add(grid.ProcTopple, amounts)
			depositMass(c, amounts)

			queue = append(queue, toppleWork{coord: n, depth: item.depth + 1}, toppleWork{coord: item.coord, depth: item.depth + 1})
		}
	}
}
