// Package sim wires the grid, kernels, timestep controller, and output
// writers into the end-to-end run loop of spec.md §2, and enforces the
// stability-breach and mass-balance-drift fatal conditions of spec.md §7.
package sim

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/davefavismortlock/rillgrow/internal/balance"
	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/output"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
	"github.com/davefavismortlock/rillgrow/internal/simerr"
	"github.com/davefavismortlock/rillgrow/internal/timestep"
)

// StabilityCaps are the per-process hard caps of spec.md §7: "10mm for
// most, 100mm for mass-movement".
type StabilityCaps struct {
	FlowDetachMM        float64
	FlowDepositMM       float64
	TransportRateMM     float64
	SplashDetachMM      float64
	SplashDepositMM     float64
	SlumpDetachMM       float64
	ToppleDetachMM      float64
}

// DefaultStabilityCaps returns spec.md §7's defaults.
func DefaultStabilityCaps() StabilityCaps {
	return StabilityCaps{
		FlowDetachMM:    10,
		FlowDepositMM:   10,
		TransportRateMM: 10,
		SplashDetachMM:  10,
		SplashDepositMM: 10,
		SlumpDetachMM:   100,
		ToppleDetachMM:  100,
	}
}

// MassBalanceTolerance governs spec.md §7's "warning vs. fatal" drift
// policy. The residual checked is one iteration's drift: the larger of the
// water residual and the largest per-class soil residual, each summed over
// all cells. It is not divided by the cell count and not accumulated
// across iterations. Under Warn it is ignored, between Warn and Fatal it is
// logged, and at or above Fatal it ends the run.
type MassBalanceTolerance struct {
	WarnMM  float64
	FatalMM float64
}

// DefaultMassBalanceTolerance returns 1e-2 mm as the warning threshold,
// with a fatal cap two orders of magnitude looser (a drift this large means
// the bookkeeping itself is broken, not just accumulated float noise). Both
// apply to the per-iteration, grid-wide residual described on
// MassBalanceTolerance.
func DefaultMassBalanceTolerance() MassBalanceTolerance {
	return MassBalanceTolerance{WarnMM: 1e-2, FatalMM: 1.0}
}

// Driver owns every piece of runtime state for one simulation run.
type Driver struct {
	Grid       *grid.Grid
	Ctx        *simctx.Context
	Controller *timestep.Controller
	Ledger     *balance.Ledger

	Stability    StabilityCaps
	MassBalance  MassBalanceTolerance

	Rasters    *output.Writer
	Table      *output.TableWriter
	TimeSeries *output.TimeSeriesWriter

	RasterFields           []string
	TimeSeriesFields       []string
	SaveIntervalIterations int

	Log *logrus.Logger

	startedAt       time.Time
	lastInfiltrated float64
}

// ProcessOrder fixes the per-iteration table's process column order; pass
// it to output.NewTableWriter so every run's table has the same columns.
var ProcessOrder = []string{
	"flow_net", "splash_net", "slump_net", "topple_net", "headcut_net",
}

// Run advances the simulation until SimTimeS reaches durationS, writing
// outputs at the configured cadence and returning the first fatal error
// encountered (spec.md §7).
func (d *Driver) Run(durationS float64) error {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	d.startedAt = time.Now()
	nCells := d.Grid.ActiveCellCount()
	if nCells == 0 {
		return &simerr.SetupError{Stage: "run", Err: fmt.Errorf("grid has no active cells")}
	}

	for d.Controller.SimTimeS < durationS {
		result := d.Controller.Step(d.Grid, d.Ctx)

		if err := d.checkStability(result, nCells); err != nil {
			return err
		}
		if err := d.checkMassBalance(result); err != nil {
			return err
		}
		if err := d.writeOutputs(result, nCells); err != nil {
			return err
		}
	}
	return nil
}

// checkStability enforces spec.md §7's per-process hard caps. The
// ThisIteration buckets store net detach-minus-deposit per process (see
// DESIGN.md), so a cell that detaches and redeposits in balance within one
// iteration would evade a true gross-detach cap; the mean absolute net
// rate used here is a documented proxy for that gross rate, not an exact
// measure of it.
func (d *Driver) checkStability(result timestep.Result, nCells int) error {
	means := processMeans(d.Grid, nCells)
	checks := []struct {
		name string
		mean float64
		cap  float64
	}{
		{"flow detachment/deposition", means["flow_net"], d.Stability.FlowDetachMM},
		{"splash detachment/deposition", means["splash_net"], d.Stability.SplashDetachMM},
		{"slump detachment", means["slump_net"], d.Stability.SlumpDetachMM},
		{"topple detachment", means["topple_net"], d.Stability.ToppleDetachMM},
	}
	for _, c := range checks {
		if c.cap <= 0 {
			continue
		}
		if abs(c.mean) > c.cap {
			return &simerr.StabilityBreachError{
				Iteration: result.Iteration, Process: c.name, MeanRate: abs(c.mean), Cap: c.cap,
			}
		}
	}
	return nil
}

func processMeans(g *grid.Grid, nCells int) map[string]float64 {
	var flow, splash, slump, topple, headcut float64
	g.Each(func(_ grid.Coord, c *grid.Cell) {
		ti := c.Sediment.ThisIteration
		flow += sum3(ti.Flow)
		splash += sum3(ti.Splash)
		slump += sum3(ti.Slump)
		topple += sum3(ti.Topple)
		headcut += sum3(ti.Headcut)
	})
	n := float64(nCells)
	return map[string]float64{
		"flow_net": flow / n, "splash_net": splash / n, "slump_net": slump / n,
		"topple_net": topple / n, "headcut_net": headcut / n,
	}
}

func sum3(v [grid.NumSizeClasses]float64) float64 { return v[0] + v[1] + v[2] }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (d *Driver) checkMassBalance(result timestep.Result) error {
	drift := result.Drift
	worst := abs(drift.WaterResidual)
	if m := drift.MaxAbsSoilResidual(); m > worst {
		worst = m
	}
	switch {
	case worst >= d.MassBalance.FatalMM:
		return &simerr.MassBalanceError{
			Iteration: result.Iteration, Quantity: "water/soil", Residual: worst, Cap: d.MassBalance.FatalMM,
		}
	case worst >= d.MassBalance.WarnMM:
		d.Log.WithFields(logrus.Fields{
			"iteration":      result.Iteration,
			"water_residual": drift.WaterResidual,
			"soil_residual":  drift.SoilResidual,
		}).Warn("rillgrow: mass-balance drift exceeds warning tolerance")
	}
	return nil
}

func (d *Driver) writeOutputs(result timestep.Result, nCells int) error {
	if d.Table != nil {
		means := processMeans(d.Grid, nCells)
		row := output.IterationRow{
			WallClock:     time.Now(),
			Iteration:     result.Iteration,
			ElapsedS:      result.SimTimeS,
			ProcessTotals: means,
			Drift:         result.Drift,
		}
		row.MeanRainMM, row.MeanRunonMM, row.MeanStorageMM, row.MeanOffEdgeWaterMM = meanWaterFields(d.Grid, nCells)
		total := d.Ledger.Infiltrated.Value()
		row.MeanInfiltratedMM = (total - d.lastInfiltrated) / float64(nCells)
		d.lastInfiltrated = total
		if err := d.Table.WriteRow(row); err != nil {
			return err
		}
	}

	if d.TimeSeries != nil {
		means := processMeans(d.Grid, nCells)
		for _, f := range d.TimeSeriesFields {
			if v, ok := means[f]; ok {
				if err := d.TimeSeries.Append(f, result.SimTimeS, v); err != nil {
					return err
				}
			}
		}
	}

	if d.Rasters != nil && d.SaveIntervalIterations > 0 && result.Iteration%int64(d.SaveIntervalIterations) == 0 {
		if err := d.Rasters.WriteFields(d.Grid, d.Ctx, result.Iteration, d.RasterFields); err != nil {
			return err
		}
	}
	return nil
}

func meanWaterFields(g *grid.Grid, nCells int) (rain, runon, storage, offEdge float64) {
	rainVals := make([]float64, 0, nCells)
	runonVals := make([]float64, 0, nCells)
	storageVals := make([]float64, 0, nCells)
	offEdgeVals := make([]float64, 0, nCells)
	g.Each(func(_ grid.Coord, c *grid.Cell) {
		rainVals = append(rainVals, c.Rain.Rain)
		runonVals = append(runonVals, c.Rain.Runon)
		storageVals = append(storageVals, c.Water.Depth)
		offEdgeVals = append(offEdgeVals, c.Water.EdgeLossDepth)
	})
	return balance.MeanOf(rainVals), balance.MeanOf(runonVals), balance.MeanOf(storageVals), balance.MeanOf(offEdgeVals)
}
