package transport

import (
	"math"

	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
)

// ShearSink receives the shear-stress increment produced by one hop's
// detachment, for the slump kernel's shear-stress patch (spec.md §4.4
// "If the slump subsystem is enabled, tau is spatially distributed across
// a square patch rather than assigned solely to the source cell"). A nil
// ShearSink means slump is disabled and the increment is simply dropped.
type ShearSink interface {
	AddShear(g *grid.Grid, at grid.Coord, tau float64)
}

// Hop describes one source->destination water transfer produced by the
// flow-routing kernel, handed to ProcessHop for the coupled detachment /
// deposition step (spec.md §4.3 "Coupling to erosion").
type Hop struct {
	Source, Dest grid.Coord // Dest is zero-value/ignored when EdgeOutflow is true
	Direction    grid.Direction
	Head         float64 // mm
	Velocity     float64 // mm/s
	MovedDepth   float64 // mm of water actually moved this hop
	EdgeOutflow  bool
	Baselevel    float64 // mm, only meaningful when EdgeOutflow && baselevel configured
	HasBaselevel bool
}

// ProcessHop runs the transport-capacity/detachment/deposition step for a
// single hop. g is the grid, source/dest cells are looked up fresh (no
// back-pointers carried in Hop).
func ProcessHop(g *grid.Grid, ctx *simctx.Context, h Hop, shear ShearSink) {
	if !ctx.EnableFlowErosion || h.MovedDepth <= 0 || h.Velocity <= 0 {
		return
	}
	src := g.At(h.Source)
	slope := h.Head / g.HopDistance(h.Direction)
	if slope <= 0 {
		return
	}
	residenceTime := g.HopDistance(h.Direction) / h.Velocity

	advectLoad(g, ctx, h)

	topLayer := src.TopNonZeroLayer()
	var bulkDensity float64
	if topLayer != nil {
		bulkDensity = topLayer.BulkDensity
	}
	capacity := Capacity(ctx, src.Water.Depth, h.Velocity, slope, g.HopDistance(h.Direction), g.CellSide, bulkDensity)
	src.Water.TransportCapacity = capacity

	load := src.Sediment.Load
	loadTotal := load[grid.Clay] + load[grid.Silt] + load[grid.Sand]

	if loadTotal > capacity {
		depositExcess(ctx, src, capacity, residenceTime)
		return
	}

	e := DetachmentRate(ctx, h.Velocity, slope, src.Water.Depth)
	actual := e * (1 - loadTotal/math.Max(capacity, 1e-12))
	if actual <= 0 {
		return
	}

	if h.EdgeOutflow {
		detachSourceOnly(g, ctx, src, h, actual, slope, shear)
		return
	}

	dst := g.At(h.Dest)
	half := actual / 2

	srcDetached, srcAchieved := grid.DetachCascade(src.LayerPointers(), half, grid.FlowErodibilitySelector, true)
	if srcAchieved > 0 {
		for c := 0; c < grid.NumSizeClasses; c++ {
			src.Sediment.Load[c] += srcDetached[c]
		}
		src.Sediment.ThisIteration.Add(grid.ProcFlow, srcDetached)
	}

	dstDetached, dstAchieved := grid.DetachCascade(dst.LayerPointers(), half, grid.FlowErodibilitySelector, true)
	if dstAchieved > 0 {
		for c := 0; c < grid.NumSizeClasses; c++ {
			dst.Sediment.Load[c] += dstDetached[c]
		}
		dst.Sediment.ThisIteration.Add(grid.ProcFlow, dstDetached)
	}

	addHeadcutDebt(src, h.Direction, ctx, slope)

	if shear != nil {
		tau := ShearStress(ctx, src.Water.Depth, slope)
		shear.AddShear(g, h.Source, tau)
	}
}

// advectLoad carries a fraction of the source cell's already-suspended
// sediment load along with the water this hop moves, proportional to the
// fraction of the cell's depth that moved (spec.md §3 Invariant 5: load is
// part of the water it rides in, so it crosses cells/edges with it).
func advectLoad(g *grid.Grid, ctx *simctx.Context, h Hop) {
	src := g.At(h.Source)
	depthBefore := src.Water.Depth
	if depthBefore <= 0 {
		return
	}
	fraction := h.MovedDepth / depthBefore
	if h.EdgeOutflow && ctx.FlumeMode {
		fraction = 1
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction <= 0 {
		return
	}
	var moved [grid.NumSizeClasses]float64
	for c := 0; c < grid.NumSizeClasses; c++ {
		moved[c] = src.Sediment.Load[c] * fraction
		src.Sediment.Load[c] -= moved[c]
	}
	if h.EdgeOutflow {
		for c := 0; c < grid.NumSizeClasses; c++ {
			src.Sediment.LostAcrossEdge[c] += moved[c]
			src.Sediment.CumulativeLostAcrossEdge[c] += moved[c]
		}
		return
	}
	dst := g.At(h.Dest)
	for c := 0; c < grid.NumSizeClasses; c++ {
		dst.Sediment.Load[c] += moved[c]
	}
}

func detachSourceOnly(g *grid.Grid, ctx *simctx.Context, src *grid.Cell, h Hop, actual, slope float64, shear ShearSink) {
	if h.HasBaselevel {
		room := src.SoilSurfaceElevation() - h.Baselevel
		if room < 0 {
			room = 0
		}
		if actual > room {
			actual = room
		}
	}
	if actual <= 0 {
		return
	}
	detached, achieved := grid.DetachCascade(src.LayerPointers(), actual, grid.FlowErodibilitySelector, true)
	if achieved <= 0 {
		return
	}
	for c := 0; c < grid.NumSizeClasses; c++ {
		src.Sediment.Load[c] += detached[c]
	}
	src.Sediment.ThisIteration.Add(grid.ProcFlow, detached)
	addHeadcutDebt(src, h.Direction, ctx, slope)
	if shear != nil {
		tau := ShearStress(ctx, src.Water.Depth, slope)
		shear.AddShear(g, h.Source, tau)
	}
}

// addHeadcutDebt implements spec.md §4.4's "Headcut-retreat debt": after
// each hop's detachment, credit constant*sin(soil-surface-slope) to the
// source cell's stored-retreat counter opposite the flow direction.
func addHeadcutDebt(src *grid.Cell, dir grid.Direction, ctx *simctx.Context, slope float64) {
	if !ctx.EnableHeadcutRetreat {
		return
	}
	angle := math.Atan(slope)
	idx := dir.Opposite().Index()
	src.StoredRetreat[idx] += ctx.Headcut.RetreatConstant * math.Sin(angle)
}

// depositExcess implements spec.md §4.4's "sediment load > T_c ->
// deposition" case: for each size class, the depositable fraction of the
// capacity deficit settles onto the top soil layer.
func depositExcess(ctx *simctx.Context, c *grid.Cell, capacity, residenceTime float64) {
	load := &c.Sediment.Load
	total := load[grid.Clay] + load[grid.Silt] + load[grid.Sand]
	deficit := total - capacity
	if deficit <= 0 {
		return
	}
	var deposited [grid.NumSizeClasses]float64
	for cl := 0; cl < grid.NumSizeClasses; cl++ {
		if load[cl] <= 0 {
			continue
		}
		vs := SettlingVelocityMMs(ctx, ctx.RepresentativeDiameterMM(cl))
		frac := DepositableFraction(vs, residenceTime, c.Water.Depth)
		share := load[cl] / total * deficit
		amt := share * frac
		if amt > load[cl] {
			amt = load[cl]
		}
		deposited[cl] = amt
		load[cl] -= amt
	}
	grid.DepositTop(c.LayerPointers(), deposited, true)
	c.Sediment.ThisIteration.Add(grid.ProcFlow, negate(deposited))
	for cl := 0; cl < grid.NumSizeClasses; cl++ {
		c.Sediment.RemovedToDeposit[cl] += deposited[cl]
	}
}

func negate(a [grid.NumSizeClasses]float64) [grid.NumSizeClasses]float64 {
	for i := range a {
		a[i] = -a[i]
	}
	return a
}
