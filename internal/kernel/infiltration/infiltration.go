// Package infiltration implements the Green-Ampt explicit infiltration and
// exfiltration kernel of spec.md §4.8, invoked every K_infilt iterations.
package infiltration

import (
	"math"

	"github.com/davefavismortlock/rillgrow/internal/balance"
	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
)

const cmPerHourToMMPerSecond = 10.0 / 3600.0

// Run processes every non-missing cell's soil column top-down. dt is the
// elapsed time (s) since infiltration last ran (K_infilt iterations' worth);
// simTime is the total simulated time (s) elapsed since the run began, the
// Green-Ampt "t_sim" driving τ_T.
func Run(g *grid.Grid, ctx *simctx.Context, ledger *balance.Ledger, dt, simTime float64) {
	if !ctx.EnableInfiltration {
		return
	}
	g.Each(func(_ grid.Coord, cell *grid.Cell) {
		processCell(ctx, ledger, cell, dt, simTime)
	})
}

func processCell(ctx *simctx.Context, ledger *balance.Ledger, cell *grid.Cell, dt, simTime float64) {
	layers := cell.Layers
	for i := range layers {
		layer := &layers[i]
		capacity := layer.ThetaSat * layer.Total()
		deficit := capacity - layer.SoilWaterDepth

		if deficit < 0 {
			exfiltrate(cell, layers, i, -deficit, ledger)
			continue
		}
		if deficit <= depthTolerance {
			continue
		}

		var dAbove float64
		if i == 0 {
			dAbove = cell.Water.Depth
		} else {
			dAbove = layers[i-1].SoilWaterDepth
		}
		if dAbove <= 0 {
			continue
		}

		rate := greenAmptRate(layer, dAbove, simTime)
		transfer := rate * dt
		if transfer > deficit {
			transfer = deficit
		}
		if transfer > dAbove {
			transfer = dAbove
		}
		if transfer <= 0 {
			continue
		}

		layer.SoilWaterDepth += transfer
		if i == 0 {
			cell.Water.Depth -= transfer
			if cell.Water.Depth <= depthTolerance {
				dryOut(cell, layers, ledger)
			}
		} else {
			layers[i-1].SoilWaterDepth -= transfer
		}
	}
}

// exfiltrate implements spec.md §4.8 step 2: push over-saturation at layer
// i upward to the layer above (or surface water for the top layer); any
// remainder that the destination cannot absorb goes downward instead,
// capped by the next layer's own deficit.
func exfiltrate(cell *grid.Cell, layers []grid.SoilLayer, i int, excess float64, ledger *balance.Ledger) {
	layer := &layers[i]

	if i == 0 {
		cell.Water.Depth += excess
		layer.SoilWaterDepth -= excess
		depositPendingSediment(cell, layers, ledger)
		return
	}

	above := &layers[i-1]
	aboveRoom := above.ThetaSat*above.Total() - above.SoilWaterDepth
	if aboveRoom < 0 {
		aboveRoom = 0
	}
	moveUp := math.Min(excess, aboveRoom)
	above.SoilWaterDepth += moveUp
	layer.SoilWaterDepth -= moveUp

	remaining := excess - moveUp
	if remaining <= 0 {
		return
	}
	if i+1 >= len(layers) {
		// No deeper layer to absorb the remainder: it drains past the
		// bottom of the modelled column (spec.md §8 Invariant 1's
		// "infiltration_to_basement_below_lowest_layer" term).
		layer.SoilWaterDepth -= remaining
		if ledger != nil {
			ledger.Infiltrated.Add(remaining)
		}
		return
	}
	below := &layers[i+1]
	belowDeficit := below.ThetaSat*below.Total() - below.SoilWaterDepth
	if belowDeficit <= 0 {
		return
	}
	moveDown := math.Min(remaining, belowDeficit)
	below.SoilWaterDepth += moveDown
	layer.SoilWaterDepth -= moveDown
}

// greenAmptRate computes the explicit Green-Ampt infiltration rate (mm/s)
// for one layer, spec.md §4.8 step 3.
func greenAmptRate(layer *grid.SoilLayer, dAboveMM, simTime float64) float64 {
	kSatMMs := layer.KSat * cmPerHourToMMPerSecond
	if kSatMMs <= 0 {
		return 0
	}
	nu := 2 + 3*layer.PoreSizeLambda
	psiWf := nu * layer.AirEntryHead / (nu - 1)

	chi := (dAboveMM - psiWf) * (layer.ThetaSat - layer.ThetaInit) / kSatMMs
	if chi < 0 {
		chi = 0
	}
	t := simTime
	if t <= 0 {
		t = 1e-6
	}
	denom := t + chi
	if denom <= 0 {
		return 0
	}
	tauT := t / denom
	if tauT <= 0 {
		return 0
	}

	sqrt2 := math.Sqrt2
	rate := (sqrt2/2)*math.Pow(tauT, -0.5) +
		2.0/3.0 -
		(sqrt2/6)*math.Pow(tauT, 0.5) +
		((1-sqrt2)/3)*tauT
	if rate < 0 {
		rate = 0
	}
	return rate * kSatMMs
}

// dryOut implements spec.md §4.8 step 4: once the top layer's infiltration
// exhausts surface water, all suspended sediment is treated as deposited
// onto the top soil layer and credited to the infiltration-deposit ledger.
func dryOut(cell *grid.Cell, layers []grid.SoilLayer, ledger *balance.Ledger) {
	cell.Water.Depth = 0
	depositPendingSediment(cell, layers, ledger)
}

func depositPendingSediment(cell *grid.Cell, layers []grid.SoilLayer, ledger *balance.Ledger) {
	load := cell.Sediment.Load
	if load[grid.Clay]+load[grid.Silt]+load[grid.Sand] <= 0 {
		return
	}
	ptrs := make([]*grid.SoilLayer, len(layers))
	for i := range layers {
		ptrs[i] = &layers[i]
	}
	grid.DepositTop(ptrs, load, false)
	for cl := 0; cl < grid.NumSizeClasses; cl++ {
		cell.Sediment.InfiltrationDeposit[cl] += load[cl]
		if ledger != nil {
			ledger.InfiltDeposit[cl].Add(load[cl])
		}
	}
	cell.Sediment.Load = [grid.NumSizeClasses]float64{}
}

const depthTolerance = 1e-9
