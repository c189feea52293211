package grid

// Cell is one element of the regular rectangular grid (spec.md §3). It
// holds only its own data — no back-pointer to its parent grid or to a
// simulation-wide singleton (spec.md §9's re-architecture note). Kernels
// that need sibling state take the grid and a Coord and look siblings up
// through the grid, the same way the teacher's CellManipulator functions
// take a *Cell and a Δt rather than reaching through a stored pointer.
type Cell struct {
	Edge    EdgeSide
	Missing bool

	Basement                float64 // mm, impermeable bedrock floor
	InitialSurfaceElevation float64 // mm, recorded for reporting only

	Layers []SoilLayer // top-first

	Water    SurfaceWater
	Rain     RainAndRunon
	Sediment SedimentLoad

	// StoredRetreat accumulates headcut-retreat debt per compass direction
	// (spec.md §3, §4.7), indexed by Direction.Index().
	StoredRetreat [8]float64
	HasRetreated  bool

	// ShearAccum accumulates shear stress spread here by the slump
	// shear-stress patch (spec.md §4.4/§4.6), drained each slump cycle.
	ShearAccum float64
}

// SoilSurfaceElevation returns basement + sum of committed layer
// thicknesses (spec.md §3 Invariant 7: "the only definition of the soil
// surface").
func (c *Cell) SoilSurfaceElevation() float64 {
	e := c.Basement
	for i := range c.Layers {
		e += c.Layers[i].Total()
	}
	return e
}

// TopElevation returns soil-surface elevation plus surface-water depth
// (spec.md §3 Invariant 8).
func (c *Cell) TopElevation() float64 {
	return c.SoilSurfaceElevation() + c.Water.Depth
}

// TopNonZeroLayer returns a pointer to the shallowest layer with nonzero
// committed thickness, or nil if the whole column is exhausted. Several
// kernels (transport capacity's bulk-density lookup, headcut baselevel
// capping) need "the current soil surface material", which is this layer.
func (c *Cell) TopNonZeroLayer() *SoilLayer {
	for i := range c.Layers {
		if c.Layers[i].Total() > depthTolerance {
			return &c.Layers[i]
		}
	}
	if len(c.Layers) > 0 {
		return &c.Layers[0]
	}
	return nil
}

// LayerPointers returns []*SoilLayer for the cascade helpers in
// soillayer.go, which want pointers rather than a value-copied slice.
func (c *Cell) LayerPointers() []*SoilLayer {
	ptrs := make([]*SoilLayer, len(c.Layers))
	for i := range c.Layers {
		ptrs[i] = &c.Layers[i]
	}
	return ptrs
}

// MarkWet applies spec.md §3 Invariant 6: a dry cell that becomes wet
// (rain or run-on) has its velocity re-seeded with a small Gaussian
// perturbation and its sediment load zeroed. seed is a small random value
// supplied by the caller (from the General RNG stream) so that this
// package does not itself depend on internal/rng.
func (c *Cell) MarkWet(seedRow, seedCol float64) {
	wasDry := c.Water.Depth <= 0
	if wasDry {
		c.Water.Velocity = Velocity2D{Row: seedRow, Col: seedCol}
		c.Sediment.Load = [NumSizeClasses]float64{}
	}
}
