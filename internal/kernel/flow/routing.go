// Package flow implements the flow-routing kernel of spec.md §4.3:
// steepest-energy-descent destination selection, one of three
// Darcy-Weisbach friction models, travel-time gating, and edge outflow,
// coupled to the transport kernel for inline detachment/deposition.
package flow

import (
	"math"

	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/kernel/transport"
	"github.com/davefavismortlock/rillgrow/internal/numeric"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
)

// orthogonalPairs gives, for each compass direction, the two directions
// whose wetness determines the hydraulic radius (spec.md §4.3: "the
// wetness count of the two neighbours orthogonal to flow direction").
var orthogonalPairs = map[grid.Direction][2]grid.Direction{
	grid.N: {grid.E, grid.W}, grid.S: {grid.E, grid.W},
	grid.E: {grid.N, grid.S}, grid.W: {grid.N, grid.S},
	grid.NE: {grid.NW, grid.SE}, grid.SW: {grid.NW, grid.SE},
	grid.NW: {grid.NE, grid.SW}, grid.SE: {grid.NE, grid.SW},
}

func edgeDirection(e grid.EdgeSide) grid.Direction {
	switch e {
	case grid.EdgeTop:
		return grid.N
	case grid.EdgeRight:
		return grid.E
	case grid.EdgeBottom:
		return grid.S
	case grid.EdgeLeft:
		return grid.W
	default:
		return grid.None
	}
}

// Router owns the one piece of cross-iteration state flow routing needs:
// the previous iteration's mean head, used to synthesise an off-edge head
// for open-edge outflow (spec.md §4.3). It is owned by the timestep
// controller (timestep.Controller.Flow), which calls Route every iteration — not a
// back-pointer, just ordinary ownership of small mutable state, the way
// the teacher's InMAP struct owns Dt across iterations.
type Router struct {
	LastIterMeanHead float64

	headSum   float64
	headCount int
}

type candidate struct {
	dir      grid.Direction
	head     float64
	distance float64
	isEdge   bool
}

// Result summarizes one iteration's routing pass, consumed by the timestep
// controller to pick the next Δt (spec.md §4.1).
type Result struct {
	MaxVelocity float64
}

// Route performs one forward pass over the grid, moving water downhill and
// handing each hop to the transport kernel. Reads use the committed,
// pre-iteration snapshot (Depth, soil-surface elevation); writes go to
// Water.TempDepth, committed by the grid at the end of the iteration
// (spec.md §9 staging policy, SPEC_FULL.md §5).
func (r *Router) Route(g *grid.Grid, ctx *simctx.Context, dt float64, shear transport.ShearSink) Result {
	r.headSum, r.headCount = 0, 0
	var maxV float64

	g.Each(func(c grid.Coord, cell *grid.Cell) {
		if cell.Water.Depth <= 0 {
			return
		}
		cands := candidates(g, ctx, c, cell, r.LastIterMeanHead)
		if len(cands) == 0 {
			reseed(ctx, cell)
			return
		}
		best := cands[0]
		for _, cd := range cands[1:] {
			if cd.head/cd.distance > best.head/best.distance {
				best = cd
			}
		}
		r.headSum += best.head
		r.headCount++

		moved, v := moveWater(g, ctx, c, cell, best, dt)
		if v > maxV {
			maxV = v
		}
		if moved <= 0 {
			return
		}
		h := transport.Hop{
			Source:     c,
			Direction:  best.dir,
			Head:       best.head,
			Velocity:   v,
			MovedDepth: moved,
		}
		if best.isEdge {
			h.EdgeOutflow = true
		} else {
			dest, ok := g.Neighbour(c, best.dir)
			if !ok {
				return
			}
			h.Dest = dest
		}
		transport.ProcessHop(g, ctx, h, shear)
	})

	if r.headCount > 0 {
		r.LastIterMeanHead = r.headSum / float64(r.headCount)
	}
	return Result{MaxVelocity: maxV}
}

func candidates(g *grid.Grid, ctx *simctx.Context, c grid.Coord, cell *grid.Cell, lastIterMeanHead float64) []candidate {
	var out []candidate
	selfTop := cell.TopElevation()
	for _, d := range grid.AllDirections {
		n, ok := g.Neighbour(c, d)
		if !ok {
			continue
		}
		nb := g.At(n)
		head := selfTop - nb.TopElevation()
		if head > 0 {
			out = append(out, candidate{dir: d, head: head, distance: g.HopDistance(d)})
		}
	}
	if cell.Edge != grid.Interior && ctx.EdgeOpen(int(cell.Edge)-1) {
		head := lastIterMeanHead * ctx.OffEdgeConstant
		if head > 0 {
			out = append(out, candidate{dir: edgeDirection(cell.Edge), head: head, distance: g.CellSide, isEdge: true})
		}
	}
	return out
}

func reseed(ctx *simctx.Context, cell *grid.Cell) {
	cell.Water.Velocity = grid.Velocity2D{
		Row: ctx.Streams.General.Normal(0, 1e-3),
		Col: ctx.Streams.General.Normal(0, 1e-3),
	}
}

// moveWater computes velocity, applies travel-time gating, and transfers
// the moved depth from source to destination (or the edge-loss ledger).
// Returns the moved depth and the velocity used.
func moveWater(g *grid.Grid, ctx *simctx.Context, c grid.Coord, cell *grid.Cell, best candidate, dt float64) (float64, float64) {
	slope := best.head / best.distance
	wetCount := wetOrthogonalCount(g, c, best.dir)
	r := numeric.HydraulicRadius(cell.Water.Depth, g.CellSide, wetCount)

	var f float64
	switch ctx.Friction {
	case numeric.FrictionConstant:
		f = numeric.ConstantFrictionFactor(ctx.FrictionConstantF)
	case numeric.FrictionReynolds:
		prevV := math.Hypot(cell.Water.Velocity.Row, cell.Water.Velocity.Col)
		f = numeric.ReynoldsFrictionFactor(ctx.ReynoldsA, ctx.ReynoldsB, prevV, r, ctx.Fluid.KinematicViscosity)
	default:
		f = numeric.LawrenceFrictionFactor(cell.Water.Depth, ctx.LawrenceEpsilon, ctx.LawrencePr, ctx.LawrenceCd)
	}

	v := numeric.DarcyWeisbachVelocity(ctx.Fluid.Gravity*1000 /* mm/s^2 */, r, slope, f)
	if ctx.Friction == numeric.FrictionReynolds && ctx.ReynoldsMaxVelocity > 0 && v > ctx.ReynoldsMaxVelocity {
		v = ctx.ReynoldsMaxVelocity
		cell.Water.FrictionFactor = math.NaN() // "reported as missing" when clamped
	} else {
		cell.Water.FrictionFactor = f
	}
	if best.dir.IsDiagonal() {
		v *= math.Sqrt2
	}

	candidateDepth := math.Min(best.head/2, cell.Water.Depth)
	if candidateDepth <= 0 || v <= 0 {
		cell.Water.FlowDirection = grid.None
		return 0, v
	}

	tau := best.distance / v
	fraction := 1.0
	if tau > dt {
		fraction = dt / tau
	}
	moved := candidateDepth * fraction

	cell.Water.TempDepth -= moved
	if best.isEdge {
		cell.Water.EdgeLossDepth += moved
		cell.Water.CumulativeEdgeLossDepth += moved
	} else {
		if dest, ok := g.Neighbour(c, best.dir); ok {
			g.At(dest).Water.TempDepth += moved
		}
	}

	dr, dc := best.dir.Offset()
	cell.Water.Velocity = grid.Velocity2D{Row: float64(dr) * v, Col: float64(dc) * v}
	cell.Water.DepthWeightedVelocity = grid.Velocity2D{Row: cell.Water.Velocity.Row * fraction, Col: cell.Water.Velocity.Col * fraction}
	cell.Water.FlowDirection = best.dir
	cell.Water.InundationClass = numeric.ClassifyInundation(cell.Water.Depth, ctx.LawrenceEpsilon)

	return moved, v
}

func wetOrthogonalCount(g *grid.Grid, c grid.Coord, dir grid.Direction) int {
	pair, ok := orthogonalPairs[dir]
	if !ok {
		return 0
	}
	count := 0
	for _, d := range pair {
		if n, ok := g.Neighbour(c, d); ok && g.At(n).Water.Depth > 0 {
			count++
		}
	}
	return count
}
