package grid

import (
	"math"

	"github.com/davefavismortlock/rillgrow/internal/numeric"
)

// Velocity2D is a 2-D flow velocity vector in the grid's row/col axes
// (mm/s); Row is the north-south component, Col the east-west component.
type Velocity2D struct {
	Row, Col float64
}

// Magnitude returns the scalar speed (mm/s), used for reporting and by
// Froude-number computation in internal/output.
func (v Velocity2D) Magnitude() float64 {
	return math.Hypot(v.Row, v.Col)
}

// SurfaceWater is a cell's overland-flow sub-state (spec.md §3).
type SurfaceWater struct {
	Depth     float64 // mm
	TempDepth float64 // mm, staged within the flow-routing pass
	CumulativeDepth float64 // mm*iterations, for averaging

	EdgeLossDepth           float64 // this iteration, edge cells only
	CumulativeEdgeLossDepth float64

	StreamPower       float64
	TransportCapacity float64
	FrictionFactor    float64 // reported as "missing" (NaN) when Reynolds-clamped

	FlowDirection   Direction
	InundationClass numeric.InundationClass

	Velocity             Velocity2D
	DepthWeightedVelocity Velocity2D

	CumulativeVelocity             Velocity2D // time-weighted, mm*s
	CumulativeDepthWeightedVelocity Velocity2D
}

// IsWet reports whether the cell currently carries any surface water.
func (w *SurfaceWater) IsWet() bool { return w.Depth > 0 }
