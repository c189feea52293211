// Package output writes the GIS rasters and per-iteration text table of
// spec.md §6 Outputs, behind the same narrow I/O boundary internal/raster
// keeps for inputs: the core simulation packages never import this
// package or internal/raster.
package output

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/kernel/transport"
	"github.com/davefavismortlock/rillgrow/internal/raster"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
	"github.com/davefavismortlock/rillgrow/internal/simerr"
)

// Extractor pulls one scalar field out of a cell for raster output
// (spec.md §6 Outputs: "elevation, water depth, flow direction, flow
// speed, stream power, friction factor, shear stress, Reynolds, Froude,
// transport capacity, detachment/deposit fields for each process ... and
// net elevation change").
type Extractor func(g *grid.Grid, ctx *simctx.Context, c grid.Coord, cell *grid.Cell) float64

// Fields is every raster field name §6 calls for, keyed for
// config.OutputConfig.Fields selection.
var Fields = map[string]Extractor{
	"elevation":            func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 { return c.TopElevation() },
	"soil_surface":         func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 { return c.SoilSurfaceElevation() },
	"net_elevation_change": func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 {
		return c.SoilSurfaceElevation() - c.InitialSurfaceElevation
	},
	"water_depth":        func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 { return c.Water.Depth },
	"flow_direction":      func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 { return float64(c.Water.FlowDirection) },
	"flow_speed":          func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 { return c.Water.Velocity.Magnitude() },
	"stream_power":        func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 { return c.Water.StreamPower },
	"friction_factor":      func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 { return c.Water.FrictionFactor },
	"transport_capacity":  func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 { return c.Water.TransportCapacity },
	"shear_stress":        shearStressField,
	"reynolds":             reynoldsField,
	"froude":                froudeField,

	"flow_detach_cumulative":    cumulativeProcess(grid.ProcFlow),
	"splash_detach_cumulative":  cumulativeProcess(grid.ProcSplash),
	"slump_detach_cumulative":   cumulativeProcess(grid.ProcSlump),
	"topple_detach_cumulative":  cumulativeProcess(grid.ProcTopple),
	"headcut_detach_cumulative": cumulativeProcess(grid.ProcHeadcut),

	"flow_net_this_iteration":    netProcess(grid.ProcFlow),
	"splash_net_this_iteration":  netProcess(grid.ProcSplash),
	"slump_net_this_iteration":   netProcess(grid.ProcSlump),
	"topple_net_this_iteration":  netProcess(grid.ProcTopple),
	"headcut_net_this_iteration": netProcess(grid.ProcHeadcut),

	"sediment_load": func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 { return c.Sediment.Total() },
}

func cumulativeProcess(p grid.Process) Extractor {
	return func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 {
		return sumClasses(processTriple(&c.Sediment.CumulativeContributions, p))
	}
}

func netProcess(p grid.Process) Extractor {
	return func(_ *grid.Grid, _ *simctx.Context, _ grid.Coord, c *grid.Cell) float64 {
		return sumClasses(processTriple(&c.Sediment.ThisIteration, p))
	}
}

func processTriple(pc *grid.ProcessContributions, p grid.Process) [grid.NumSizeClasses]float64 {
	switch p {
	case grid.ProcFlow:
		return pc.Flow
	case grid.ProcSplash:
		return pc.Splash
	case grid.ProcSlump:
		return pc.Slump
	case grid.ProcTopple:
		return pc.Topple
	default:
		return pc.Headcut
	}
}

func sumClasses(v [grid.NumSizeClasses]float64) float64 { return v[0] + v[1] + v[2] }

// downstreamSlope looks up the cell's flow-direction neighbour and
// returns the (positive-downhill) slope and hop distance used to
// recompute shear stress, Reynolds number, and Froude number for
// reporting, the same way internal/kernel/flow computed them during
// routing (spec.md §4.3/§4.4).
func downstreamSlope(g *grid.Grid, c grid.Coord, cell *grid.Cell) (slope, hop float64, ok bool) {
	if cell.Water.FlowDirection == grid.None {
		return 0, 0, false
	}
	n, valid := g.Neighbour(c, cell.Water.FlowDirection)
	if !valid {
		return 0, 0, false
	}
	hop = g.HopDistance(cell.Water.FlowDirection)
	drop := cell.TopElevation() - g.At(n).TopElevation()
	return drop / hop, hop, true
}

func shearStressField(g *grid.Grid, ctx *simctx.Context, c grid.Coord, cell *grid.Cell) float64 {
	slope, _, ok := downstreamSlope(g, c, cell)
	if !ok || slope <= 0 {
		return 0
	}
	return transport.ShearStress(ctx, cell.Water.Depth, slope)
}

func reynoldsField(g *grid.Grid, ctx *simctx.Context, c grid.Coord, cell *grid.Cell) float64 {
	if ctx.Fluid.KinematicViscosity <= 0 || cell.Water.Depth <= 0 {
		return 0
	}
	r := numericHydraulicRadius(g, c, cell)
	return cell.Water.Velocity.Magnitude() * r / ctx.Fluid.KinematicViscosity
}

func froudeField(_ *grid.Grid, ctx *simctx.Context, _ grid.Coord, cell *grid.Cell) float64 {
	if cell.Water.Depth <= 0 || ctx.Fluid.Gravity <= 0 {
		return 0
	}
	denom := math.Sqrt(ctx.Fluid.Gravity * 1e3 * cell.Water.Depth) // g (m/s^2 -> mm/s^2) * depth (mm)
	if denom <= 0 {
		return 0
	}
	return cell.Water.Velocity.Magnitude() / denom
}

func numericHydraulicRadius(g *grid.Grid, c grid.Coord, cell *grid.Cell) float64 {
	wet := 0
	for _, d := range []grid.Direction{grid.N, grid.E, grid.S, grid.W} {
		if n, ok := g.Neighbour(c, d); ok && g.At(n).Water.IsWet() {
			wet++
			if wet >= 2 {
				break
			}
		}
	}
	switch wet {
	case 2:
		return cell.Water.Depth
	case 1:
		return g.CellSide * cell.Water.Depth / (g.CellSide + cell.Water.Depth)
	default:
		return g.CellSide * cell.Water.Depth / (g.CellSide + 2*cell.Water.Depth)
	}
}

// Writer owns the output directory and grid geolocation shared by every
// raster this run writes.
type Writer struct {
	Dir        string
	CellSizeMM float64
	X0, Y0     float64
	Log        *logrus.Logger
}

// NewWriter returns a Writer logging through a default logrus logger if
// log is nil.
func NewWriter(dir string, cellSizeMM, x0, y0 float64, log *logrus.Logger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{Dir: dir, CellSizeMM: cellSizeMM, X0: x0, Y0: y0, Log: log}
}

// WriteFields extracts each named field over every cell and writes it as
// a raster named "<field>_<iteration>.nc". Unknown field names are
// skipped with a warning rather than failing the whole write.
func (w *Writer) WriteFields(g *grid.Grid, ctx *simctx.Context, iteration int64, fieldNames []string) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return &simerr.IOError{Operation: "create output directory", Path: w.Dir, Err: err}
	}
	for _, name := range fieldNames {
		extract, ok := Fields[name]
		if !ok {
			w.Log.WithField("field", name).Warn("rillgrow: unknown output field, skipping")
			continue
		}
		values := make([][]float64, g.NY)
		for row := range values {
			values[row] = make([]float64, g.NX)
		}
		g.Each(func(c grid.Coord, cell *grid.Cell) {
			values[c.Row][c.Col] = extract(g, ctx, c, cell)
		})

		path := filepath.Join(w.Dir, fmt.Sprintf("%s_%08d.nc", name, iteration))
		if err := raster.WriteRaster(path, name, "", values, w.CellSizeMM, w.X0, w.Y0); err != nil {
			return err
		}
		w.Log.WithFields(logrus.Fields{"field": name, "iteration": iteration, "path": path}).Debug("rillgrow: wrote raster")
	}
	return nil
}
