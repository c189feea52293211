// Package rainfall implements rain injection and edge run-on of spec.md
// §4.2: a Poisson-like drop process over the active plot area, plus a
// ramped run-on contribution from enabled edges.
package rainfall

import (
	"math"

	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
)

// Runner owns the cross-iteration state rain injection needs: which
// time-series segment is active, and the low-count reconciliation residual
// for time-invariant rain.
type Runner struct {
	segment       int
	targetDepthResidual float64
	runOnStartTime      float64
	runOnStarted        bool
}

// Run injects rain and run-on for one iteration of duration dt, starting
// at simulated time simTime.
func (r *Runner) Run(g *grid.Grid, ctx *simctx.Context, dt, simTime float64) {
	r.advanceSegment(ctx, simTime)
	intensity := r.currentIntensity(ctx)
	r.injectRain(g, ctx, dt, intensity)
	r.injectRunOn(g, ctx, dt, simTime)
}

func (r *Runner) advanceSegment(ctx *simctx.Context, simTime float64) {
	for r.segment < len(ctx.Rain.Segments)-1 && simTime >= ctx.Rain.Segments[r.segment].EndTimeS {
		r.segment++
	}
}

func (r *Runner) currentIntensity(ctx *simctx.Context) float64 {
	if len(ctx.Rain.Segments) == 0 {
		return 0
	}
	return ctx.Rain.Segments[r.segment].IntensityMMPerHour
}

// injectRain implements spec.md §4.2's Poisson-like drop process.
func (r *Runner) injectRain(g *grid.Grid, ctx *simctx.Context, dt, intensityMMPerHour float64) {
	if intensityMMPerHour <= 0 || ctx.Rain.DropVolumeMM3 <= 0 {
		return
	}
	nActive := g.ActiveCellCount()
	if nActive == 0 {
		return
	}
	aCell := ctx.CellSide * ctx.CellSide

	mu := dt * intensityMMPerHour * float64(nActive) * aCell / (3600.0 * ctx.Rain.DropVolumeMM3)
	if mu <= 0 {
		return
	}
	sigma := ctx.Rain.IntensityCV * mu

	var count int
	if mu >= 30 {
		sample := ctx.Streams.Rain.Normal(mu, sigma)
		count = int(math.Round(sample))
	} else {
		count = int(math.Round(ctx.Streams.Rain.Poisson(mu)))
	}
	if count < 0 {
		count = 0
	}

	if ctx.Rain.TimeInvariant {
		targetDepthSum := mu * ctx.Rain.DropVolumeMM3 / aCell
		count, r.targetDepthResidual = reconcileLowCount(count, targetDepthSum, ctx.Rain.DropVolumeMM3/aCell, r.targetDepthResidual)
	}

	coords := g.ActiveCoords()
	if len(coords) == 0 {
		return
	}
	for i := 0; i < count; i++ {
		idx := ctx.Streams.General.IntN(len(coords))
		c := coords[idx]
		cell := g.At(c)

		volume := ctx.Streams.Rain.Normal(ctx.Rain.DropVolumeMM3, ctx.Rain.DropVolumeCV*ctx.Rain.DropVolumeMM3)
		if volume < 0 {
			volume = 0
		}
		depth := volume / aCell * cell.Rain.RainVariationMultiplier

		cell.MarkWet(ctx.Streams.General.Normal(0, 1e-3), ctx.Streams.General.Normal(0, 1e-3))
		cell.Rain.Rain += depth
		cell.Rain.RainCumulative += depth
		cell.Water.TempDepth += depth
		cell.Rain.SplashKE += dropKineticEnergy(ctx, volume)
	}
}

// dropKineticEnergy implements spec.md §4.5's splash-forcing term: ½mv²,
// with drop mass from volume and water density and v the configured rain
// speed.
func dropKineticEnergy(ctx *simctx.Context, volumeMM3 float64) float64 {
	massKg := volumeMM3 * 1e-9 * ctx.Fluid.WaterDensity
	v := ctx.Rain.DropSpeedMS
	return 0.5 * massKg * v * v
}

// reconcileLowCount implements spec.md §4.2's "low-count correction":
// for time-invariant rain, track the gap between the integrated target
// depth and what whole-drop counting actually delivers, carrying the
// residual forward so it evens out over many iterations rather than
// biasing the long-run total low.
func reconcileLowCount(count int, targetDepthSum, depthPerDrop float64, residual float64) (int, float64) {
	delivered := float64(count) * depthPerDrop
	gap := targetDepthSum - delivered + residual
	if depthPerDrop <= 0 {
		return count, gap
	}
	extra := int(math.Round(gap / depthPerDrop))
	count += extra
	if count < 0 {
		count = 0
	}
	residual = gap - float64(extra)*depthPerDrop
	return count, residual
}

// injectRunOn implements spec.md §4.2's edge run-on: a linear ramp over
// L_runon/v_runon seconds, then full credit divided among each enabled
// edge's cells.
func (r *Runner) injectRunOn(g *grid.Grid, ctx *simctx.Context, dt, simTime float64) {
	if ctx.RunOn.VelocityMMs <= 0 || ctx.RunOn.ContributingLengthMM <= 0 {
		return
	}
	if !r.runOnStarted {
		r.runOnStartTime = simTime
		r.runOnStarted = true
	}
	rampDuration := ctx.RunOn.ContributingLengthMM / ctx.RunOn.VelocityMMs
	elapsed := simTime - r.runOnStartTime
	ramp := 1.0
	if rampDuration > 0 {
		ramp = math.Min(1, elapsed/rampDuration)
	}
	if ramp <= 0 {
		return
	}

	sides := []grid.EdgeSide{grid.EdgeTop, grid.EdgeRight, grid.EdgeBottom, grid.EdgeLeft}
	for i, side := range sides {
		if !ctx.RunOn.EdgesEnabled[i] {
			continue
		}
		cells := g.EdgeCells(side)
		if len(cells) == 0 {
			continue
		}
		// Expected drops over the virtual contributing strip this side
		// represents, using the same Poisson-like rate as the plot itself,
		// scaled to the strip's footprint (L_runon by one cell side).
		intensity := r.currentIntensity(ctx)
		if intensity <= 0 || ctx.Rain.DropVolumeMM3 <= 0 {
			continue
		}
		stripArea := ctx.RunOn.ContributingLengthMM * ctx.CellSide
		mu := dt * intensity * stripArea / (3600.0 * ctx.Rain.DropVolumeMM3)
		expectedDepth := mu * ctx.Rain.DropVolumeMM3 / stripArea * ramp

		perCell := expectedDepth / float64(len(cells))
		for _, c := range cells {
			cell := g.At(c)
			cell.MarkWet(ctx.Streams.General.Normal(0, 1e-3), ctx.Streams.General.Normal(0, 1e-3))
			cell.Rain.Runon += perCell
			cell.Rain.RunonCumulative += perCell
			cell.Water.TempDepth += perCell
		}
	}
}
