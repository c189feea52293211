package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/numeric"
	"github.com/davefavismortlock/rillgrow/internal/simerr"
)

const minimalConfigYAML = `
simulation_duration: 100
files:
  dem_file: dem.nc
friction:
  friction_model: dw_constant
layers:
  - name: topsoil
    thickness_mm: 500
    percent_clay: 20
    percent_silt: 30
    percent_sand: 50
    bulk_density: 1500
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rundata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesCadenceDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfigYAML)
	rd, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, rd.Cadence.KInfilt)
	assert.Equal(t, 10, rd.Cadence.KSlump)
	assert.InDelta(t, 0.95, rd.Cadence.CourantAlpha, 1e-9)
	assert.InDelta(t, 1.0, rd.Cadence.OffEdgeConstant, 1e-9)
	assert.Equal(t, 100, rd.Slump.ToppleMaxDepth)
	assert.Equal(t, 1000, rd.Output.SaveIntervalIterations)
}

func TestLoadMissingFileIsSetupError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var setupErr *simerr.SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "read run data", setupErr.Stage)
}

func TestValidateRejectsNonPositiveDuration(t *testing.T) {
	rd := &RunData{SimulationDurationS: 0, Layers: []LayerConfig{{}}, Files: FilesConfig{DEMFile: "x"}, Friction: FrictionConfig{Model: "dw_constant"}}
	err := rd.validate()
	var setupErr *simerr.SetupError
	require.ErrorAs(t, err, &setupErr)
}

func TestValidateRejectsNoLayers(t *testing.T) {
	rd := &RunData{SimulationDurationS: 10, Files: FilesConfig{DEMFile: "x"}, Friction: FrictionConfig{Model: "dw_constant"}}
	assert.Error(t, rd.validate())
}

func TestValidateRejectsMissingDEMFile(t *testing.T) {
	rd := &RunData{SimulationDurationS: 10, Layers: []LayerConfig{{}}, Friction: FrictionConfig{Model: "dw_constant"}}
	assert.Error(t, rd.validate())
}

func TestValidateRejectsUnsupportedFrictionModel(t *testing.T) {
	rd := &RunData{SimulationDurationS: 10, Layers: []LayerConfig{{}}, Files: FilesConfig{DEMFile: "x"}, Friction: FrictionConfig{Model: "manning"}}
	assert.Error(t, rd.validate())
}

func TestValidateAcceptsEachSupportedFrictionModel(t *testing.T) {
	for _, model := range []string{"dw_constant", "dw_reynolds", "dw_lawrence"} {
		rd := &RunData{SimulationDurationS: 10, Layers: []LayerConfig{{}}, Files: FilesConfig{DEMFile: "x"}, Friction: FrictionConfig{Model: model}}
		assert.NoError(t, rd.validate(), model)
	}
}

func TestBuildContextSelectsFrictionModel(t *testing.T) {
	rd := &RunData{}
	rd.Friction.Model = "dw_reynolds"
	ctx := rd.BuildContext(100, nil, 1, 2)
	assert.Equal(t, numeric.FrictionReynolds, ctx.Friction)

	rd.Friction.Model = "dw_lawrence"
	ctx = rd.BuildContext(100, nil, 1, 2)
	assert.Equal(t, numeric.FrictionLawrence, ctx.Friction)

	rd.Friction.Model = "dw_constant"
	ctx = rd.BuildContext(100, nil, 1, 2)
	assert.Equal(t, numeric.FrictionConstant, ctx.Friction)
}

func TestBuildContextTranslatesSlumpPercentToTan(t *testing.T) {
	rd := &RunData{}
	rd.Slump.SlumpAngleOfRestPercent = 50
	ctx := rd.BuildContext(100, nil, 1, 2)
	assert.InDelta(t, 0.5, ctx.Slump.SlumpAngleOfRestTan, 1e-9)
}

func TestBuildContextPicksFirstConfiguredRunOnEdge(t *testing.T) {
	rd := &RunData{}
	rd.Rain.Left.Runon = true
	rd.Rain.Left.RunonLengthMM = 500
	rd.Rain.Left.RunonSpeedMMPerS = 10
	ctx := rd.BuildContext(100, nil, 1, 2)
	assert.Equal(t, 500.0, ctx.RunOn.ContributingLengthMM)
	assert.Equal(t, 10.0, ctx.RunOn.VelocityMMs)
	assert.Equal(t, [4]bool{false, false, false, true}, ctx.RunOn.EdgesEnabled)
}

func TestDropVolumeMM3IsSphereVolume(t *testing.T) {
	v := dropVolumeMM3(2) // radius 1mm sphere
	assert.InDelta(t, (4.0/3.0)*3.14159265*1*1*1, v, 1e-3)
}

func TestDropVolumeCVPropagatesFromDiameter(t *testing.T) {
	assert.InDelta(t, 0.3, dropVolumeCV(2, 0.2), 1e-9)
	assert.Equal(t, 0.0, dropVolumeCV(0, 1))
}

func TestBuildRainSegmentsFlattensTimeInvariantRain(t *testing.T) {
	rc := RainConfig{IntensityMMPerH: 30, DurationS: 600}
	segs := buildRainSegments(rc)
	assert.Len(t, segs, 1)
	assert.Equal(t, 600.0, segs[0].EndTimeS)
}

func TestBuildRainSegmentsUsesSeriesWhenTimeVarying(t *testing.T) {
	rc := RainConfig{TimeVarying: true, Series: []RainSegmentConfig{
		{TimeS: 10, IntensityMMPerH: 5}, {TimeS: 20, IntensityMMPerH: 50},
	}}
	segs := buildRainSegments(rc)
	assert.Len(t, segs, 2)
	assert.Equal(t, 50.0, segs[1].IntensityMMPerHour)
}

func TestElevationUnitScaleExplicitFactorWins(t *testing.T) {
	fc := FilesConfig{DEMZUnit: "m", DEMZFactor: 2.5}
	assert.Equal(t, 2.5, fc.ElevationUnitScale())
}

func TestElevationUnitScaleFromDeclaredUnit(t *testing.T) {
	assert.Equal(t, 10.0, FilesConfig{DEMZUnit: "cm"}.ElevationUnitScale())
	assert.Equal(t, 1000.0, FilesConfig{DEMZUnit: "m"}.ElevationUnitScale())
	assert.Equal(t, 1.0, FilesConfig{}.ElevationUnitScale())
}

func TestBuildGridPopulatesNonNaNCellsAndSkipsNaN(t *testing.T) {
	rd := &RunData{Layers: []LayerConfig{{ThicknessMM: 100, PercentClay: 100, BulkDensity: 1500}}}
	elevation := [][]float64{{10, 20}, {30, math.NaN()}}

	g, err := rd.BuildGrid(elevation, nil, 100)
	require.NoError(t, err)

	c00 := g.At(grid.Coord{Row: 0, Col: 0})
	assert.False(t, c00.Missing)
	assert.Equal(t, 10.0, c00.InitialSurfaceElevation)

	c11 := g.At(grid.Coord{Row: 1, Col: 1})
	assert.True(t, c11.Missing)
}

func TestBuildGridRejectsEmptyDEM(t *testing.T) {
	rd := &RunData{}
	_, err := rd.BuildGrid(nil, nil, 100)
	var setupErr *simerr.SetupError
	require.ErrorAs(t, err, &setupErr)
}

func TestBuildGridRejectsRaggedRows(t *testing.T) {
	rd := &RunData{Layers: []LayerConfig{{ThicknessMM: 100, BulkDensity: 1500}}}
	_, err := rd.BuildGrid([][]float64{{1, 2}, {3}}, nil, 100)
	assert.Error(t, err)
}

func TestBuildGridAssignsEdgeSidesWithTopBottomPriority(t *testing.T) {
	rd := &RunData{Layers: []LayerConfig{{ThicknessMM: 100, BulkDensity: 1500}}}
	elevation := [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	g, err := rd.BuildGrid(elevation, nil, 100)
	require.NoError(t, err)

	assert.Equal(t, grid.EdgeTop, g.At(grid.Coord{Row: 0, Col: 0}).Edge) // corner: top wins over left
	assert.Equal(t, grid.Interior, g.At(grid.Coord{Row: 1, Col: 1}).Edge)
	assert.Equal(t, grid.EdgeLeft, g.At(grid.Coord{Row: 1, Col: 0}).Edge)
}

func TestBuildGridUsesRainVariationRasterWhenProvided(t *testing.T) {
	rd := &RunData{Layers: []LayerConfig{{ThicknessMM: 100, BulkDensity: 1500}}}
	elevation := [][]float64{{1, 1}}
	rainVar := [][]float64{{2, 3}}
	g, err := rd.BuildGrid(elevation, rainVar, 100)
	require.NoError(t, err)
	assert.Equal(t, 3.0, g.At(grid.Coord{Row: 0, Col: 1}).Rain.RainVariationMultiplier)
}

func TestBuildLayersSplitsThicknessByPercent(t *testing.T) {
	rd := &RunData{Layers: []LayerConfig{{ThicknessMM: 100, PercentClay: 20, PercentSilt: 30, PercentSand: 50}}}
	layers := rd.buildLayers()
	assert.InDelta(t, 20.0, layers[0].Thickness[grid.Clay], 1e-9)
	assert.InDelta(t, 30.0, layers[0].Thickness[grid.Silt], 1e-9)
	assert.InDelta(t, 50.0, layers[0].Thickness[grid.Sand], 1e-9)
}
