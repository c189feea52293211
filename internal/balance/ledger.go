// Package balance implements the plot-wide mass-balance bookkeeping of
// spec.md §3 Invariant 5 and §8 (Universal invariants 1-2), using
// Neumaier-compensated summation for the cumulative counters per spec.md
// §9 ("Unbounded cumulative long-double sums... replace with Kahan (or
// Neumaier) compensated summation structs").
package balance

import "gonum.org/v1/gonum/stat"

// Accumulator is a Neumaier-compensated running sum, safe to add millions
// of small per-iteration increments to without losing precision.
type Accumulator struct {
	sum, c float64
}

// Add adds v to the running total.
func (a *Accumulator) Add(v float64) {
	t := a.sum + v
	if abs(a.sum) >= abs(v) {
		a.c += (a.sum - t) + v
	} else {
		a.c += (v - t) + a.sum
	}
	a.sum = t
}

// Value returns the compensated total.
func (a *Accumulator) Value() float64 { return a.sum + a.c }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Ledger tracks plot-wide totals for water, soil (per size class), soil
// water, and off-edge/lost sediment, so that the per-iteration drift check
// of spec.md §7/§8 can compare start-of-iteration and end-of-iteration
// totals.
type Ledger struct {
	Water       Accumulator
	SoilWater   Accumulator
	Soil        [3]Accumulator // clay, silt, sand
	SedimentLoad [3]Accumulator
	OffEdgeWater Accumulator
	OffEdgeSoil  [3]Accumulator
	// SplashOffEdgeSoil is the splash-only off-grid loss term spec.md §8
	// Invariant 2 tracks separately from flow's OffEdgeSoil: the share of a
	// splash deposit that would have landed on a missing Moore neighbour of
	// an edge cell.
	SplashOffEdgeSoil [3]Accumulator
	// InfiltDeposit is the per-size-class sediment stranded onto the top
	// soil layer when infiltration exhausts a cell's surface water (spec.md
	// §4.8 step 4, §8 Invariant 2's "Δinfilt_deposit_c" term).
	InfiltDeposit [3]Accumulator
	RainAdded     Accumulator
	RunonAdded    Accumulator
	Infiltrated   Accumulator // below the lowest layer, leaving the system
}

// Snapshot is a point-in-time copy of every ledger total, used to compute
// a drift = end - start for one iteration.
type Snapshot struct {
	Water, SoilWater   float64
	Soil, SedimentLoad [3]float64
	OffEdgeWater       float64
	OffEdgeSoil        [3]float64
	SplashOffEdgeSoil  [3]float64
	InfiltDeposit      [3]float64
	RainAdded          float64
	RunonAdded         float64
	Infiltrated        float64
}

// Snapshot returns the ledger's current totals.
func (l *Ledger) Snapshot() Snapshot {
	s := Snapshot{
		Water:        l.Water.Value(),
		SoilWater:    l.SoilWater.Value(),
		OffEdgeWater: l.OffEdgeWater.Value(),
		RainAdded:    l.RainAdded.Value(),
		RunonAdded:   l.RunonAdded.Value(),
		Infiltrated:  l.Infiltrated.Value(),
	}
	for c := 0; c < 3; c++ {
		s.Soil[c] = l.Soil[c].Value()
		s.SedimentLoad[c] = l.SedimentLoad[c].Value()
		s.OffEdgeSoil[c] = l.OffEdgeSoil[c].Value()
		s.SplashOffEdgeSoil[c] = l.SplashOffEdgeSoil[c].Value()
		s.InfiltDeposit[c] = l.InfiltDeposit[c].Value()
	}
	return s
}

// Drift evaluates the two residuals of spec.md §8's universal invariants
// over the span between two snapshots. Both should be zero up to tolerance;
// a nonzero residual means water or sediment was created or destroyed.
type Drift struct {
	// WaterResidual is Invariant 1's left side minus its right side:
	// Δdepth + off_edge_water + Δsoil_water - (rain_added + runon_added -
	// infiltration_to_basement).
	WaterResidual float64
	// SoilResidual is Invariant 2 per size class: Δlayer_thickness +
	// Δsediment_load + Δinfilt_deposit + off_edge + splash_off_edge.
	SoilResidual [3]float64
}

func (end Snapshot) Drift(start Snapshot) Drift {
	var d Drift

	deltaWater := end.Water - start.Water
	deltaSoilWater := end.SoilWater - start.SoilWater
	deltaOffEdgeWater := end.OffEdgeWater - start.OffEdgeWater
	rain := end.RainAdded - start.RainAdded
	runon := end.RunonAdded - start.RunonAdded
	infiltrated := end.Infiltrated - start.Infiltrated
	d.WaterResidual = deltaWater + deltaOffEdgeWater + deltaSoilWater - (rain + runon - infiltrated)

	for c := 0; c < 3; c++ {
		deltaSoil := end.Soil[c] - start.Soil[c]
		deltaLoad := end.SedimentLoad[c] - start.SedimentLoad[c]
		deltaInfiltDeposit := end.InfiltDeposit[c] - start.InfiltDeposit[c]
		offEdge := end.OffEdgeSoil[c] - start.OffEdgeSoil[c]
		splashOffEdge := end.SplashOffEdgeSoil[c] - start.SplashOffEdgeSoil[c]
		d.SoilResidual[c] = deltaSoil + deltaLoad + deltaInfiltDeposit + offEdge + splashOffEdge
	}
	return d
}

// MaxAbsSoilResidual returns the largest absolute per-class soil residual.
func (d Drift) MaxAbsSoilResidual() float64 {
	m := abs(d.SoilResidual[0])
	for _, v := range d.SoilResidual[1:] {
		if abs(v) > m {
			m = abs(v)
		}
	}
	return m
}

// MeanOf returns the arithmetic mean of values (0 for an empty slice) via
// gonum's stat.Mean. internal/sim uses it for the per-iteration text
// table's mean water fields (spec.md §6 per-iteration text table: "mean
// rain, run-on, infiltration, storage, ...").
func MeanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
