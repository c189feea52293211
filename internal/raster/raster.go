// Package raster reads the DEM and optional rain-variation grids of
// spec.md §6 (Inputs 1 and 4) from netcdf files, and writes output
// rasters (spec.md §6 Outputs). Grounded on the teacher's
// LoadCTMData/CTMData.Write pair in vargrid.go: cdf.Open/cdf.Create for
// the file layer, sparse.DenseArray as the in-memory grid container.
// Nothing outside this package and internal/output imports cdf or sparse
// directly, keeping the narrow I/O boundary SPEC_FULL.md calls for.
package raster

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/davefavismortlock/rillgrow/internal/simerr"
)

const fileDataVersion = "rillgrow-raster-1.0"

// Grid is a plain row-major, y-then-x dense raster with its geolocation.
// It is the hand-off type between this package and internal/config's
// BuildGrid: config never imports cdf or sparse itself.
type Grid struct {
	NX, NY     int
	CellSizeMM float64
	X0, Y0     float64
	Values     [][]float64 // [row][col], row 0 = north
}

// LoadDEM reads an elevation raster (mm) from a netcdf file written in the
// layout Write produces, or by any compatible upstream tool exposing an
// "elevation" variable plus the x0/y0/dx/dy/nx/ny attributes the teacher's
// CTM data format uses.
func LoadDEM(path string) (*Grid, error) {
	return load(path, "elevation")
}

// LoadRainVariation reads an optional per-cell rain-intensity multiplier
// raster (spec.md §6 "rain variation raster, optional").
func LoadRainVariation(path string) (*Grid, error) {
	return load(path, "rain_variation")
}

func load(path, variable string) (*Grid, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &simerr.SetupError{Stage: "open raster", Path: path, Err: err}
	}
	defer file.Close()

	f, err := cdf.Open(file)
	if err != nil {
		return nil, &simerr.SetupError{Stage: "read raster header", Path: path, Err: err}
	}

	version, _ := f.Header.GetAttribute("", "data_version").(string)
	if version != "" && version != fileDataVersion {
		return nil, &simerr.SetupError{Stage: "read raster header", Path: path,
			Err: fmt.Errorf("raster data version %q is incompatible with %q", version, fileDataVersion)}
	}

	nx := attrInt(f, "nx")
	ny := attrInt(f, "ny")
	dx := attrFloat(f, "dx")
	x0 := attrFloat(f, "x0")
	y0 := attrFloat(f, "y0")

	dims := f.Header.Lengths(variable)
	if len(dims) != 2 {
		return nil, &simerr.SetupError{Stage: "read raster", Path: path,
			Err: fmt.Errorf("variable %q has %d dimensions, want 2", variable, len(dims))}
	}

	data := sparse.ZerosDense(dims...)
	tmp := make([]float32, len(data.Elements))
	r := f.Reader(variable, nil, nil)
	if _, err := r.Read(tmp); err != nil {
		return nil, &simerr.SetupError{Stage: "read raster", Path: path, Err: err}
	}
	for i, v := range tmp {
		data.Elements[i] = float64(v)
	}

	g := &Grid{NX: nx, NY: ny, CellSizeMM: dx, X0: x0, Y0: y0}
	g.Values = make([][]float64, dims[0])
	for row := 0; row < dims[0]; row++ {
		g.Values[row] = make([]float64, dims[1])
		for col := 0; col < dims[1]; col++ {
			g.Values[row][col] = data.Elements[row*dims[1]+col]
		}
	}
	if g.NX == 0 {
		g.NX = dims[1]
	}
	if g.NY == 0 {
		g.NY = dims[0]
	}
	return g, nil
}

func attrInt(f *cdf.File, name string) int {
	v := f.Header.GetAttribute("", name)
	switch t := v.(type) {
	case []int32:
		if len(t) > 0 {
			return int(t[0])
		}
	case []int64:
		if len(t) > 0 {
			return int(t[0])
		}
	}
	return 0
}

func attrFloat(f *cdf.File, name string) float64 {
	if v, ok := f.Header.GetAttribute("", name).([]float64); ok && len(v) > 0 {
		return v[0]
	}
	return 0
}

// WriteRaster writes a named single-variable output raster (spec.md §6
// Outputs: elevation, water depth, flow direction/speed, etc.), in the
// same netcdf layout LoadDEM reads.
func WriteRaster(path, variable, units string, values [][]float64, cellSizeMM, x0, y0 float64) error {
	f, err := os.Create(path)
	if err != nil {
		return &simerr.IOError{Operation: "create raster", Path: path, Err: err}
	}
	defer f.Close()

	ny := len(values)
	nx := 0
	if ny > 0 {
		nx = len(values[0])
	}

	data := sparse.ZerosDense(ny, nx)
	for row := 0; row < ny; row++ {
		for col := 0; col < nx; col++ {
			data.Elements[row*nx+col] = values[row][col]
		}
	}

	h := cdf.NewHeader([]string{"y", "x"}, []int{ny, nx})
	h.AddAttribute("", "comment", "rillgrow output raster")
	h.AddAttribute("", "data_version", fileDataVersion)
	h.AddAttribute("", "x0", []float64{x0})
	h.AddAttribute("", "y0", []float64{y0})
	h.AddAttribute("", "dx", []float64{cellSizeMM})
	h.AddAttribute("", "dy", []float64{cellSizeMM})
	h.AddAttribute("", "nx", []int32{int32(nx)})
	h.AddAttribute("", "ny", []int32{int32(ny)})
	h.AddVariable(variable, []string{"y", "x"}, []float32{0})
	h.AddAttribute(variable, "units", units)
	h.Define()

	cdfFile, err := cdf.Create(f, h)
	if err != nil {
		return &simerr.IOError{Operation: "write raster header", Path: path, Err: err}
	}

	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := cdfFile.Header.Lengths(variable)
	start := make([]int, len(end))
	w := cdfFile.Writer(variable, start, end)
	if _, err := w.Write(data32); err != nil {
		return &simerr.IOError{Operation: "write raster", Path: path, Err: err}
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		return &simerr.IOError{Operation: "finalize raster", Path: path, Err: err}
	}
	return nil
}
