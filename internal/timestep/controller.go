// Package timestep implements the per-iteration controller of spec.md
// §4.1: the nine-step process ordering, the K_infilt/K_slump cadence
// gates, and the CFL-like adaptive Δt rule with 1% per-step damping.
package timestep

import (
	"github.com/davefavismortlock/rillgrow/internal/balance"
	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/kernel/flow"
	"github.com/davefavismortlock/rillgrow/internal/kernel/headcut"
	"github.com/davefavismortlock/rillgrow/internal/kernel/infiltration"
	"github.com/davefavismortlock/rillgrow/internal/kernel/rainfall"
	"github.com/davefavismortlock/rillgrow/internal/kernel/slump"
	"github.com/davefavismortlock/rillgrow/internal/kernel/splash"
	"github.com/davefavismortlock/rillgrow/internal/kernel/transport"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
)

const (
	// DefaultDtRainingS and DefaultDtDryS are spec.md §4.1's two starting
	// step sizes.
	DefaultDtRainingS = 5e-4
	DefaultDtDryS     = 5e-2

	// maxDtChangeFraction bounds how much Δt may change in one step
	// (spec.md §4.1 "Per-step changes are damped (maximum 1% change
	// factor)").
	maxDtChangeFraction = 0.01
)

// Controller sequences one iteration end to end, owning the small pieces
// of cross-iteration state the kernels need (spec.md §9's replacement for
// the teacher's static "pointer to simulation" members): the flow router's
// last-iteration mean head, the rainfall runner's active time segment, the
// splash runner's alternating scan direction, and the elapsed-time
// accumulators for the infiltration and slump cadences (slump.Runner itself
// is stateless).
type Controller struct {
	Rain   rainfall.Runner
	Flow   flow.Router
	Splash splash.Runner
	Slump  slump.Runner

	Ledger *balance.Ledger
	Shear  transport.ShearSink // nil when slump is disabled

	Iteration int64
	SimTimeS  float64
	Dt        float64

	infiltAccumS float64
	slumpAccumS  float64
}

// NewController seeds Dt from whether the run starts while it is raining
// (spec.md §4.1's two defaults).
func NewController(ledger *balance.Ledger, shear transport.ShearSink, raining bool) *Controller {
	dt := DefaultDtDryS
	if raining {
		dt = DefaultDtRainingS
	}
	return &Controller{Ledger: ledger, Shear: shear, Dt: dt}
}

// Result reports one iteration's outcome, consumed by the driver for
// logging, output cadence, and the stability/mass-balance checks of
// spec.md §7.
type Result struct {
	Iteration   int64
	SimTimeS    float64
	Dt          float64
	MaxVelocity float64
	SplashRan   bool
	InfiltRan   bool
	SlumpRan    bool
	Drift       balance.Drift
}

// RunEvery reports whether a phase gated to run every k iterations should
// fire on this (1-indexed) iteration, the timestep analogue of the
// teacher's RunPeriodically combinator.
func RunEvery(iteration int64, k int) bool {
	if k <= 0 {
		return false
	}
	return iteration%int64(k) == 0
}

// Step advances the simulation by one iteration following spec.md §4.1's
// nine-step ordering.
func (c *Controller) Step(g *grid.Grid, ctx *simctx.Context) Result {
	c.Iteration++
	dt := c.Dt
	c.infiltAccumS += dt
	c.slumpAccumS += dt

	runInfilt := ctx.EnableInfiltration && RunEvery(c.Iteration, ctx.KInfilt)
	runSlumpCycle := ctx.EnableSlumping && RunEvery(c.Iteration, ctx.KSlump)

	before := c.Ledger.Snapshot()
	totalsBefore := balance.Collect(g)

	// 1. Reset per-iteration state.
	g.ResetIteration()
	if runSlumpCycle {
		g.ResetSlumpAccumulators()
	}

	// 2. Inject rain; inject run-on from active edges.
	c.Rain.Run(g, ctx, dt, c.SimTimeS)
	rainAdded, runonAdded := sumRainAndRunon(g)
	c.Ledger.RainAdded.Add(rainAdded)
	c.Ledger.RunonAdded.Add(runonAdded)

	// 3. Route surface water; inline flow detachment/deposition.
	flowResult := c.Flow.Route(g, ctx, dt, c.Shear)

	// 4. Infiltration/exfiltration every K_infilt iterations.
	if runInfilt {
		infiltration.Run(g, ctx, c.Ledger, c.infiltAccumS, c.SimTimeS)
		c.infiltAccumS = 0
	}

	// 5. Splash, gated by cumulative rain kinetic energy since it last ran.
	splashRan := false
	if ctx.EnableSplash {
		splashRan = c.Splash.MaybeRun(g, ctx, c.Ledger)
	}

	// 6. Slump and topple every K_slump iterations.
	if runSlumpCycle {
		c.Slump.Run(g, ctx, c.slumpAccumS)
		c.slumpAccumS = 0
	}

	// 7. Headcut retreat.
	headcut.Run(g, ctx)

	// 8. Commit staged layer thicknesses (and staged water depth) to
	// permanent state.
	offEdgeWater, offEdgeSoil := sumEdgeLoss(g)
	g.CommitStagedLayers()
	c.Ledger.OffEdgeWater.Add(offEdgeWater)
	for cl := 0; cl < grid.NumSizeClasses; cl++ {
		c.Ledger.OffEdgeSoil[cl].Add(offEdgeSoil[cl])
	}

	// 9. Update the mass-balance ledger and check invariants; adjust Δt.
	totalsAfter := balance.Collect(g)
	deltas := totalsAfter.Diff(totalsBefore)
	c.Ledger.Water.Add(deltas.Water)
	c.Ledger.SoilWater.Add(deltas.SoilWater)
	for cl := 0; cl < grid.NumSizeClasses; cl++ {
		c.Ledger.Soil[cl].Add(deltas.Soil[cl])
		c.Ledger.SedimentLoad[cl].Add(deltas.SedimentLoad[cl])
	}
	after := c.Ledger.Snapshot()
	drift := after.Drift(before)

	c.SimTimeS += dt
	c.Dt = nextDt(dt, flowResult.MaxVelocity, ctx.Alpha, g.CellSide)

	return Result{
		Iteration:   c.Iteration,
		SimTimeS:    c.SimTimeS,
		Dt:          c.Dt,
		MaxVelocity: flowResult.MaxVelocity,
		SplashRan:   splashRan,
		InfiltRan:   runInfilt,
		SlumpRan:    runSlumpCycle,
		Drift:       drift,
	}
}

// nextDt applies the CFL-like rule of spec.md §4.1: Δt_{n+1} such that
// v_max·Δt_{n+1} ≤ α·L_cell, damped to at most a 1% change from the
// previous step. A quiescent iteration (no flow) leaves Δt unchanged.
func nextDt(prevDt, maxVelocity, alpha, cellSide float64) float64 {
	if maxVelocity <= 0 || alpha <= 0 || cellSide <= 0 {
		return prevDt
	}
	candidate := alpha * cellSide / maxVelocity

	lo := prevDt * (1 - maxDtChangeFraction)
	hi := prevDt * (1 + maxDtChangeFraction)
	switch {
	case candidate < lo:
		return lo
	case candidate > hi:
		return hi
	default:
		return candidate
	}
}

func sumRainAndRunon(g *grid.Grid) (rain, runon float64) {
	g.Each(func(_ grid.Coord, c *grid.Cell) {
		rain += c.Rain.Rain
		runon += c.Rain.Runon
	})
	return rain, runon
}

func sumEdgeLoss(g *grid.Grid) (water float64, soil [grid.NumSizeClasses]float64) {
	g.Each(func(_ grid.Coord, c *grid.Cell) {
		water += c.Water.EdgeLossDepth
		for cl := 0; cl < grid.NumSizeClasses; cl++ {
			soil[cl] += c.Sediment.LostAcrossEdge[cl]
		}
	})
	return water, soil
}
