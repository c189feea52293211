package grid

import "math"

// Coord addresses a cell by (row, col), row-major, row increasing
// southward and col increasing eastward.
type Coord struct {
	Row, Col int
}

// Grid is the regular rectangular grid of cells (spec.md §3 Lifecycle):
// created once at setup from a DEM, populated from configuration, and
// never reallocated mid-run.
type Grid struct {
	NX, NY   int     // columns, rows
	CellSide float64 // L_cell, mm (both axes assumed equal, spec.md §6)

	cells []Cell // row-major, length NX*NY
}

// NewGrid allocates a grid of nx columns by ny rows. Cells start as
// Missing; callers populate them from the DEM and configuration.
func NewGrid(nx, ny int, cellSide float64) *Grid {
	g := &Grid{NX: nx, NY: ny, CellSide: cellSide}
	g.cells = make([]Cell, nx*ny)
	for i := range g.cells {
		g.cells[i].Missing = true
	}
	return g
}

func (g *Grid) inBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < g.NY && c.Col >= 0 && c.Col < g.NX
}

func (g *Grid) index(c Coord) int { return c.Row*g.NX + c.Col }

// At returns a pointer to the cell at c. Callers must ensure c is in
// bounds; the core never constructs a Coord it hasn't validated, so this
// panics rather than returning an error (an out-of-bounds Coord is a
// programming error, not a recoverable per-cell condition).
func (g *Grid) At(c Coord) *Cell {
	return &g.cells[g.index(c)]
}

// InBounds reports whether c addresses a real grid position.
func (g *Grid) InBounds(c Coord) bool { return g.inBounds(c) }

// Valid reports whether c is in bounds and the cell there is not Missing.
func (g *Grid) Valid(c Coord) bool {
	return g.inBounds(c) && !g.cells[g.index(c)].Missing
}

// Neighbour returns the coordinate in direction d from c, and whether that
// coordinate is both in bounds and non-missing.
func (g *Grid) Neighbour(c Coord, d Direction) (Coord, bool) {
	dr, dc := d.Offset()
	n := Coord{Row: c.Row + dr, Col: c.Col + dc}
	return n, g.Valid(n)
}

// HopDistance returns the planar distance (mm) of a one-cell hop in
// direction d: L_cell orthogonal, L_cell*sqrt(2) diagonal (spec.md §4.3).
func (g *Grid) HopDistance(d Direction) float64 {
	if d.IsDiagonal() {
		return g.CellSide * math.Sqrt2
	}
	return g.CellSide
}

// Each calls fn once for every non-missing cell, in row-major order.
func (g *Grid) Each(fn func(c Coord, cell *Cell)) {
	for row := 0; row < g.NY; row++ {
		for col := 0; col < g.NX; col++ {
			idx := row*g.NX + col
			if g.cells[idx].Missing {
				continue
			}
			fn(Coord{Row: row, Col: col}, &g.cells[idx])
		}
	}
}

// EachReverse is Each but in reverse row-major order, used by splash's
// alternating-direction scan (spec.md §4.5).
func (g *Grid) EachReverse(fn func(c Coord, cell *Cell)) {
	for row := g.NY - 1; row >= 0; row-- {
		for col := g.NX - 1; col >= 0; col-- {
			idx := row*g.NX + col
			if g.cells[idx].Missing {
				continue
			}
			fn(Coord{Row: row, Col: col}, &g.cells[idx])
		}
	}
}

// ActiveCellCount returns the number of non-missing cells.
func (g *Grid) ActiveCellCount() int {
	n := 0
	for i := range g.cells {
		if !g.cells[i].Missing {
			n++
		}
	}
	return n
}

// ActiveCoords returns the coordinates of every non-missing cell, used by
// rainfall injection's uniform cell sampling (spec.md §4.2). Computed
// fresh rather than cached: rain injection runs once per iteration, not in
// a hot inner loop over cells.
func (g *Grid) ActiveCoords() []Coord {
	out := make([]Coord, 0, len(g.cells))
	g.Each(func(c Coord, _ *Cell) { out = append(out, c) })
	return out
}

// EdgeCells returns the coordinates of every non-missing cell flagged with
// the given edge side.
func (g *Grid) EdgeCells(side EdgeSide) []Coord {
	var out []Coord
	g.Each(func(c Coord, cell *Cell) {
		if cell.Edge == side {
			out = append(out, c)
		}
	})
	return out
}

// ResetIteration clears the per-iteration accumulators the timestep
// controller is responsible for (spec.md §4.1 step 1): this-iteration
// rain/runon, staged water depth, flow direction/diagnostics, and sediment
// process-contribution ledgers. It also re-stages layer thicknesses from
// the last committed values so the flow pass sees a consistent snapshot
// (spec.md §3).
func (g *Grid) ResetIteration() {
	g.Each(func(_ Coord, cell *Cell) {
		cell.Rain.Rain = 0
		cell.Rain.Runon = 0
		cell.Water.TempDepth = cell.Water.Depth
		cell.Water.EdgeLossDepth = 0
		cell.Water.FlowDirection = None
		cell.Water.StreamPower = 0
		cell.Water.TransportCapacity = 0
		cell.Sediment.ResetIteration()
		for i := range cell.Layers {
			cell.Layers[i].ResetStagedFromCommitted()
		}
	})
}

// ResetSlumpAccumulators clears per-slump-cycle accumulators; called by the
// timestep controller only on iterations that will run the slump/topple
// phase (spec.md §4.1).
func (g *Grid) ResetSlumpAccumulators() {
	// Shear stress accumulates in each cell's ShearAccum and is drained by
	// slump.Runner.Run at the end of every slump cycle, so nothing
	// cell-local needs clearing here. Kept as an explicit hook so the controller's ordering
	// documented in spec.md §4.1 stays visible at the call site.
}

// CommitStagedLayers folds each layer's staged flow-detachment delta into
// Thickness, and TempDepth into Depth, for every cell (spec.md §4.1 step
// 8). Runs unconditionally once per iteration; SoilLayer.CommitStaged adds
// rather than overwrites, so direct same-iteration writes from splash,
// slump, topple, and headcut retreat are preserved.
func (g *Grid) CommitStagedLayers() {
	g.Each(func(_ Coord, cell *Cell) {
		for i := range cell.Layers {
			cell.Layers[i].CommitStaged()
		}
		cell.Water.Depth = cell.Water.TempDepth
		cell.Sediment.AccumulateIteration()
	})
}
