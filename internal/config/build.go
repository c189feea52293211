package config

import (
	"math"

	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/numeric"
	"github.com/davefavismortlock/rillgrow/internal/rng"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
	"github.com/davefavismortlock/rillgrow/internal/simerr"
)

// BuildContext translates a parsed RunData into the read-mostly Context
// threaded through every kernel. attenuation is the splash-efficiency
// spline built from the table named by Splash.AttenuationFile (loaded by
// the caller; internal/config has no raster/table-file dependency of its
// own, per SPEC_FULL.md's narrow-I/O-boundary design).
func (rd *RunData) BuildContext(cellSideMM float64, attenuation *numeric.Spline, rainSeed, generalSeed uint64) *simctx.Context {
	ctx := &simctx.Context{
		CellSide: cellSideMM,
		Fluid: simctx.FluidConstants{
			WaterDensity:           rd.SizeClass.WaterDensity,
			Gravity:                rd.SizeClass.Gravity,
			KinematicViscosity:     rd.SizeClass.KinematicViscosity,
			DepositionGrainDensity: rd.SizeClass.DepositionGrainDensity,
		},
		Nearing: simctx.NearingConstants{
			Alpha: rd.Nearing.Alpha, Beta: rd.Nearing.Beta,
			Gamma: rd.Nearing.Gamma, Delta: rd.Nearing.Delta,
			K:                 rd.Nearing.K,
			TensileStrength:   rd.Nearing.TensileStrength,
			CVTensileStrength: rd.Nearing.CVTensileStrength,
			CVShearStress:     rd.Nearing.CVShearStress,
		},
		Slump: simctx.SlumpConstants{
			CriticalShearStress:    rd.Slump.CriticalShearStress,
			SlumpAngleOfRestTan:    percentToTan(rd.Slump.SlumpAngleOfRestPercent),
			ToppleCriticalAngleTan: percentToTan(rd.Slump.ToppleCriticalAnglePercent),
			ToppleAngleOfRestTan:   percentToTan(rd.Slump.ToppleAngleOfRestPercent),
			PatchSizeMM:            rd.Slump.PatchSizeMM,
			ToppleMaxDepth:         rd.Slump.ToppleMaxDepth,
		},
		Headcut: simctx.HeadcutConstants{RetreatConstant: rd.Nearing.K},
		Rain: simctx.RainConstants{
			Segments:      buildRainSegments(rd.Rain),
			DropVolumeMM3: dropVolumeMM3(rd.Rain.DropDiameterMM),
			IntensityCV:   rd.Rain.IntensityCV,
			DropVolumeCV:  dropVolumeCV(rd.Rain.DropDiameterMM, rd.Rain.DropDiameterStd),
			TimeInvariant: !rd.Rain.TimeVarying,
			DropSpeedMS:   rd.Rain.SpeedMS,
		},
		RunOn: simctx.RunOnConstants{
			ContributingLengthMM: runOnLength(rd.Rain),
			VelocityMMs:          runOnSpeed(rd.Rain),
			EdgesEnabled: [4]bool{
				rd.Rain.Top.Runon, rd.Rain.Right.Runon,
				rd.Rain.Bottom.Runon, rd.Rain.Left.Runon,
			},
		},
		FrictionConstantF:   rd.Friction.Constant,
		ReynoldsA:           rd.Friction.ReynoldsA,
		ReynoldsB:           rd.Friction.ReynoldsB,
		ReynoldsMaxVelocity: rd.Friction.ReynoldsMaxVelocity,
		LawrenceEpsilon:     rd.Friction.LawrenceEpsilon,
		LawrencePr:          rd.Friction.LawrencePr,
		LawrenceCd:          rd.Friction.LawrenceCd,
		OffEdgeConstant:     rd.Cadence.OffEdgeConstant,
		FlumeMode:           rd.Cadence.FlumeMode,
		EdgesClosed: [4]bool{
			rd.Rain.Top.Closed, rd.Rain.Right.Closed,
			rd.Rain.Bottom.Closed, rd.Rain.Left.Closed,
		},
		HeadcutErodibilityPolicy: simctx.UseSlumpErodibility,
		ToppleErodibilityPolicy:  simctx.UseSlumpErodibility,
		EnableFlowErosion:        rd.Enable.FlowErosion,
		EnableSplash:             rd.Enable.Splash,
		EnableSlumping:           rd.Enable.Slumping,
		EnableHeadcutRetreat:     rd.Enable.HeadcutRetreat,
		EnableInfiltration:       rd.Enable.Infiltration,
		KInfilt:                  rd.Cadence.KInfilt,
		KSlump:                   rd.Cadence.KSlump,
		Alpha:                    rd.Cadence.CourantAlpha,
		Splash: simctx.SplashEfficiency{
			EfficiencyConstant: rd.Splash.EfficiencyConstant,
			Phi:                attenuation,
		},
		SplashKEThreshold: rd.Splash.KEThreshold,
		SizeClassBoundaries: [4]float64{
			rd.SizeClass.ClayMinMM, rd.SizeClass.ClaySiltMM,
			rd.SizeClass.SiltSandMM, rd.SizeClass.SandMaxMM,
		},
		Streams: rng.NewStreams(rainSeed, generalSeed),
	}

	switch rd.Friction.Model {
	case "dw_reynolds":
		ctx.Friction = numeric.FrictionReynolds
	case "dw_lawrence":
		ctx.Friction = numeric.FrictionLawrence
	default:
		ctx.Friction = numeric.FrictionConstant
	}
	return ctx
}

func percentToTan(percent float64) float64 { return percent / 100.0 }

// dropVolumeMM3 treats the configured drop diameter as a sphere's
// diameter (spec.md §6 "drop_diameter (mm)").
func dropVolumeMM3(diameterMM float64) float64 {
	r := diameterMM / 2
	return (4.0 / 3.0) * math.Pi * r * r * r
}

// dropVolumeCV propagates diameter's coefficient of variation to volume
// (volume ~ diameter^3, so CV_volume ~= 3*CV_diameter for small CV).
func dropVolumeCV(diameterMM, stdMM float64) float64 {
	if diameterMM <= 0 {
		return 0
	}
	return 3 * stdMM / diameterMM
}

func runOnLength(rc RainConfig) float64 {
	for _, e := range []EdgeConfig{rc.Top, rc.Right, rc.Bottom, rc.Left} {
		if e.Runon && e.RunonLengthMM > 0 {
			return e.RunonLengthMM
		}
	}
	return 0
}

func runOnSpeed(rc RainConfig) float64 {
	for _, e := range []EdgeConfig{rc.Top, rc.Right, rc.Bottom, rc.Left} {
		if e.Runon && e.RunonSpeedMMPerS > 0 {
			return e.RunonSpeedMMPerS
		}
	}
	return 0
}

func buildRainSegments(rc RainConfig) []simctx.RainSegment {
	if !rc.TimeVarying || len(rc.Series) == 0 {
		return []simctx.RainSegment{{EndTimeS: rc.DurationS, IntensityMMPerHour: rc.IntensityMMPerH}}
	}
	segs := make([]simctx.RainSegment, len(rc.Series))
	for i, s := range rc.Series {
		segs[i] = simctx.RainSegment{EndTimeS: s.TimeS, IntensityMMPerHour: s.IntensityMMPerH}
	}
	return segs
}

// ElevationUnitScale returns the multiplier that converts a raw DEM
// sample to millimetres (spec.md §6 Input 1: "declared z-unit among {mm,
// cm, m} and a conversion factor"). An explicit nonzero DEMZFactor always
// wins; otherwise the declared unit name is looked up directly.
func (fc FilesConfig) ElevationUnitScale() float64 {
	if fc.DEMZFactor != 0 {
		return fc.DEMZFactor
	}
	switch fc.DEMZUnit {
	case "cm":
		return 10
	case "m":
		return 1000
	default: // "mm" or unspecified
		return 1
	}
}

// BuildGrid allocates a Grid sized to elevationMM and populates every
// non-NaN cell from elevationMM, rainVariation, and the layer stack of
// rd.Layers (spec.md §3 Lifecycle, §6 "Layer definitions"). rainVariation
// may be nil, meaning every cell's RainVariationMultiplier is 1.
func (rd *RunData) BuildGrid(elevationMM [][]float64, rainVariation [][]float64, cellSideMM float64) (*grid.Grid, error) {
	ny := len(elevationMM)
	if ny == 0 {
		return nil, &simerr.SetupError{Stage: "build grid", Err: errEmptyDEM}
	}
	nx := len(elevationMM[0])
	if nx == 0 {
		return nil, &simerr.SetupError{Stage: "build grid", Err: errEmptyDEM}
	}

	g := grid.NewGrid(nx, ny, cellSideMM)
	for row := 0; row < ny; row++ {
		if len(elevationMM[row]) != nx {
			return nil, &simerr.SetupError{Stage: "build grid", Err: errRaggedDEM}
		}
		for col := 0; col < nx; col++ {
			z := elevationMM[row][col]
			if math.IsNaN(z) {
				continue
			}
			c := g.At(grid.Coord{Row: row, Col: col})
			c.Missing = false
			c.InitialSurfaceElevation = z
			c.Layers = rd.buildLayers()
			c.Basement = z - totalLayerThickness(c.Layers)
			c.Edge = edgeSideOf(row, col, nx, ny)

			mult := 1.0
			if rainVariation != nil && row < len(rainVariation) && col < len(rainVariation[row]) {
				mult = rainVariation[row][col]
			}
			c.Rain.RainVariationMultiplier = mult
		}
	}
	return g, nil
}

func (rd *RunData) buildLayers() []grid.SoilLayer {
	layers := make([]grid.SoilLayer, len(rd.Layers))
	for i, lc := range rd.Layers {
		l := grid.SoilLayer{
			Name:              lc.Name,
			BulkDensity:       lc.BulkDensity,
			FlowErodibility:   lc.FlowErodibility,
			SplashErodibility: lc.SplashErodibility,
			SlumpErodibility:  lc.SlumpErodibility,
			AirEntryHead:      lc.AirEntryHead,
			PoreSizeLambda:    lc.PoreSizeLambda,
			ThetaSat:          lc.ThetaSat,
			ThetaInit:         lc.ThetaInit,
			KSat:              lc.KSat,
			SoilWaterDepth:    lc.ThetaInit * lc.ThicknessMM,
		}
		l.Thickness[grid.Clay] = lc.ThicknessMM * lc.PercentClay / 100
		l.Thickness[grid.Silt] = lc.ThicknessMM * lc.PercentSilt / 100
		l.Thickness[grid.Sand] = lc.ThicknessMM * lc.PercentSand / 100
		l.ResetStagedFromCommitted()
		layers[i] = l
	}
	return layers
}

func totalLayerThickness(layers []grid.SoilLayer) float64 {
	var t float64
	for i := range layers {
		t += layers[i].Total()
	}
	return t
}

// edgeSideOf assigns at most one EdgeSide per cell (a rectangular grid's
// corner cells sit on two perimeter sides at once); top/bottom take
// priority over left/right, an arbitrary but fixed tie-break.
func edgeSideOf(row, col, nx, ny int) grid.EdgeSide {
	switch {
	case row == 0:
		return grid.EdgeTop
	case row == ny-1:
		return grid.EdgeBottom
	case col == 0:
		return grid.EdgeLeft
	case col == nx-1:
		return grid.EdgeRight
	default:
		return grid.Interior
	}
}
