// Package simctx carries the small, read-mostly simulation context that
// replaces the teacher's static "pointer to simulation" members (spec.md
// §9): cell geometry, physical constants, and configured policy knobs,
// threaded explicitly into every kernel call instead of reached for via a
// package-global or a back-pointer from cell sub-state.
package simctx

import (
	"github.com/davefavismortlock/rillgrow/internal/numeric"
	"github.com/davefavismortlock/rillgrow/internal/rng"
)

// ErodibilityPolicy selects which erodibility triple a mass-movement-family
// process uses, resolving the two open questions of spec.md §9.
type ErodibilityPolicy int

const (
	// UseSlumpErodibility reproduces the historical RillGrow behaviour of
	// charging headcut retreat and topple against the slump erodibility
	// triple rather than a dedicated one.
	UseSlumpErodibility ErodibilityPolicy = iota
	// UseDedicatedErodibility names a headcut/topple-specific erodibility
	// triple. SoilLayer carries no such triple, and neither the headcut nor
	// the topple kernel reads the policy fields: both use the slump triple
	// whichever value is set.
	UseDedicatedErodibility
)

// FluidConstants holds the configured physical constants shared by every
// kernel (spec.md §6 "fluid constants (ρ, g, ν)").
type FluidConstants struct {
	WaterDensity      float64 // kg/m^3
	Gravity           float64 // m/s^2
	KinematicViscosity float64 // m^2/s
	DepositionGrainDensity float64 // kg/m^3
}

// NearingConstants are the transport-capacity/detachment constants of
// spec.md §4.4 / §6.
type NearingConstants struct {
	Alpha, Beta, Gamma, Delta float64
	K                         float64 // detachment rate coefficient
	TensileStrength           float64 // T, soil tensile strength
	CVTensileStrength         float64 // CV_T
	CVShearStress             float64 // CV_taub
}

// SlumpConstants are the mass-movement parameters of spec.md §4.6 / §6.
type SlumpConstants struct {
	CriticalShearStress    float64
	SlumpAngleOfRestTan    float64 // tan(phi_rest)
	ToppleCriticalAngleTan float64 // tan(phi_topple_critical)
	ToppleAngleOfRestTan   float64
	PatchSizeMM            float64
	ToppleMaxDepth         int // recursion/queue depth bound (spec.md default 100)
}

// HeadcutConstants are the headcut-retreat parameters of spec.md §4.7.
type HeadcutConstants struct {
	RetreatConstant float64 // "constant" multiplying sin(slope) in the debt accumulator
}

// RainSegment is one piecewise-constant interval of the rain time-series
// (spec.md §4.2, §6).
type RainSegment struct {
	EndTimeS           float64
	IntensityMMPerHour float64
}

// RainConstants are the rainfall-stochastics parameters of spec.md §4.2.
type RainConstants struct {
	Segments      []RainSegment
	DropVolumeMM3 float64
	IntensityCV   float64 // coefficient of variation of rainfall intensity
	DropVolumeCV  float64 // coefficient of variation of individual drop volume
	TimeInvariant bool    // enables the low-count reconciliation correction

	// DropSpeedMS is the configured raindrop terminal speed (spec.md §6
	// "rain_speed (m s^-1)"), used only for splash kinetic energy
	// (spec.md §4.5: "KE is this-period rainfall KE on the cell, ½mv²,
	// with drop mass from drop diameter and rain speed").
	DropSpeedMS float64
}

// RunOnConstants are the edge run-on parameters of spec.md §4.2.
type RunOnConstants struct {
	ContributingLengthMM float64    // L_runon
	VelocityMMs          float64    // v_runon
	EdgesEnabled         [4]bool    // indexed as EdgesClosed (Top, Right, Bottom, Left)
}

// Context is passed by value (it is small and read-mostly) or by pointer
// into every kernel. Nothing in it is mutated once the run starts except
// Streams, whose own internal state is the generator's.
type Context struct {
	CellSide float64 // L_cell, mm

	Fluid    FluidConstants
	Nearing  NearingConstants
	Slump    SlumpConstants
	Headcut  HeadcutConstants
	Rain     RainConstants
	RunOn    RunOnConstants

	Friction       numeric.FrictionModel
	FrictionConstantF float64
	ReynoldsA, ReynoldsB float64
	ReynoldsMaxVelocity  float64
	LawrenceEpsilon, LawrencePr, LawrenceCd float64

	OffEdgeConstant float64 // multiplies last-iter mean head for synthetic off-edge head
	FlumeMode       bool    // edge sediment carried off fully rather than proportionally

	// EdgesClosed is indexed by grid.EdgeSide-1 (Top, Right, Bottom, Left):
	// true means that edge behaves as an interior boundary (spec.md §4.3
	// "closed edges cause the cell to behave as an interior cell").
	EdgesClosed [4]bool

	HeadcutErodibilityPolicy ErodibilityPolicy
	ToppleErodibilityPolicy  ErodibilityPolicy

	EnableFlowErosion    bool
	EnableSplash         bool
	EnableSlumping       bool
	EnableHeadcutRetreat bool
	EnableInfiltration   bool

	KInfilt int // run infiltration every K_infilt iterations
	KSlump  int // run slump/topple every K_slump iterations

	Alpha float64 // Courant-like damping coefficient (0.95 default)

	Splash              SplashEfficiency
	SplashKEThreshold   float64 // grid-wide cumulative KE (spec.md §4.1 step 5)

	// SizeClassBoundaries gives, in mm, clay_min, clay_silt, silt_sand,
	// sand_max from spec.md §6, used to derive each class's representative
	// (midpoint) grain diameter for settling-velocity calculations.
	SizeClassBoundaries [4]float64

	Streams *rng.Streams
}

// EdgeOpen reports whether water/sediment may leave the grid across side.
func (ctx *Context) EdgeOpen(side int) bool {
	if side < 0 || side >= len(ctx.EdgesClosed) {
		return false
	}
	return !ctx.EdgesClosed[side]
}

// RepresentativeDiameterMM returns the midpoint-of-range grain diameter
// (mm) for size class c, per spec.md §4.4 ("a representative grain
// diameter (midpoint of the class range)").
func (ctx *Context) RepresentativeDiameterMM(c int) float64 {
	b := ctx.SizeClassBoundaries
	switch c {
	case 0: // clay
		return (b[0] + b[1]) / 2
	case 1: // silt
		return (b[1] + b[2]) / 2
	default: // sand
		return (b[2] + b[3]) / 2
	}
}

// SplashEfficiency holds the two distinct "efficiency" knobs spec.md §4.5
// uses: a configured scalar η multiplying every splash ΔZ, and Φ, a
// cubic-spline attenuation applied only when ΔZ is negative (detachment),
// as a function of ponded water depth.
type SplashEfficiency struct {
	EfficiencyConstant float64
	Phi                *numeric.Spline
}
