// Package config loads the run-data document of spec.md §6 into a RunData
// tree via viper (so the teacher's supported formats - YAML, TOML, JSON -
// all work unmodified) and builds the simulation context and grid from it.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/davefavismortlock/rillgrow/internal/simerr"
)

// EdgeConfig is one plot edge's closure/run-on configuration (spec.md §6
// "Per-edge {top,right,bottom,left}").
type EdgeConfig struct {
	Closed             bool    `mapstructure:"closed"`
	Runon              bool    `mapstructure:"runon"`
	RunonLengthMM      float64 `mapstructure:"runon_length_mm"`
	RunonSpeedMMPerS   float64 `mapstructure:"runon_speed_mm_per_s"`
	RunonRainVariation float64 `mapstructure:"runon_rain_variation"`
}

// RainSegmentConfig is one piecewise-constant interval of a time-varying
// rain time-series.
type RainSegmentConfig struct {
	TimeS             float64 `mapstructure:"time_s"`
	IntensityMMPerH   float64 `mapstructure:"intensity_mm_per_h"`
}

// RainConfig holds spec.md §6's rain/run-on input group.
type RainConfig struct {
	IntensityMMPerH float64             `mapstructure:"rain_intensity"`
	IntensityCV     float64             `mapstructure:"rain_intensity_cv"`
	DurationS       float64             `mapstructure:"rain_duration"`
	DropDiameterMM  float64             `mapstructure:"drop_diameter"`
	DropDiameterStd float64             `mapstructure:"drop_diameter_std"`
	SpeedMS         float64             `mapstructure:"rain_speed"`
	TimeVarying     bool                `mapstructure:"time_varying_rain"`
	Series          []RainSegmentConfig `mapstructure:"rain_series"`

	Top    EdgeConfig `mapstructure:"top"`
	Right  EdgeConfig `mapstructure:"right"`
	Bottom EdgeConfig `mapstructure:"bottom"`
	Left   EdgeConfig `mapstructure:"left"`
}

// FrictionConfig holds spec.md §6's friction-model selection and its
// per-model parameters.
type FrictionConfig struct {
	Model string `mapstructure:"friction_model"`

	Constant float64 `mapstructure:"ff_constant"`

	ReynoldsA           float64 `mapstructure:"ff_reynolds_a"`
	ReynoldsB           float64 `mapstructure:"ff_reynolds_b"`
	ReynoldsMaxVelocity float64 `mapstructure:"ff_reynolds_max_velocity_mm_s"`

	LawrenceEpsilon float64 `mapstructure:"ff_lawrence_epsilon"`
	LawrencePr      float64 `mapstructure:"ff_lawrence_pr"`
	LawrenceCd      float64 `mapstructure:"ff_lawrence_cd"`
}

// EnableConfig toggles each optional process (spec.md §6).
type EnableConfig struct {
	FlowErosion    bool `mapstructure:"enable_flow_erosion"`
	Splash         bool `mapstructure:"enable_splash"`
	Slumping       bool `mapstructure:"enable_slumping"`
	HeadcutRetreat bool `mapstructure:"enable_headcut_retreat"`
	Infiltration   bool `mapstructure:"enable_infiltration"`
}

// LayerConfig is one soil layer definition (spec.md §6 "Layer
// definitions... ordered top to basement").
type LayerConfig struct {
	Name        string  `mapstructure:"name"`
	ThicknessMM float64 `mapstructure:"thickness_mm"`

	PercentClay float64 `mapstructure:"percent_clay"`
	PercentSilt float64 `mapstructure:"percent_silt"`
	PercentSand float64 `mapstructure:"percent_sand"`

	BulkDensity float64 `mapstructure:"bulk_density"`

	FlowErodibility   [3]float64 `mapstructure:"flow_erodibility"`
	SplashErodibility [3]float64 `mapstructure:"splash_erodibility"`
	SlumpErodibility  [3]float64 `mapstructure:"slump_erodibility"`

	AirEntryHead   float64 `mapstructure:"air_entry_head"`
	PoreSizeLambda float64 `mapstructure:"pore_size_lambda"`
	ThetaSat       float64 `mapstructure:"theta_sat"`
	ThetaInit      float64 `mapstructure:"theta_init"`
	KSat           float64 `mapstructure:"k_sat"`
}

// SizeClassConfig gives the three sediment size-class boundaries (spec.md
// §6) and the bulk fluid/grain constants used throughout transport.
type SizeClassConfig struct {
	ClayMinMM  float64 `mapstructure:"clay_min"`
	ClaySiltMM float64 `mapstructure:"clay_silt"`
	SiltSandMM float64 `mapstructure:"silt_sand"`
	SandMaxMM  float64 `mapstructure:"sand_max"`

	DepositionGrainDensity float64 `mapstructure:"deposition_grain_density"`
	WaterDensity           float64 `mapstructure:"water_density"`
	Gravity                float64 `mapstructure:"gravity"`
	KinematicViscosity     float64 `mapstructure:"kinematic_viscosity"`
}

// NearingConfig holds the Nearing flow-erosion constants (spec.md §6).
type NearingConfig struct {
	Alpha             float64 `mapstructure:"alpha"`
	Beta              float64 `mapstructure:"beta"`
	Gamma             float64 `mapstructure:"gamma"`
	Delta             float64 `mapstructure:"delta"`
	K                 float64 `mapstructure:"k"`
	TensileStrength   float64 `mapstructure:"tensile_strength"`
	CVTensileStrength float64 `mapstructure:"cv_tensile_strength"`
	CVShearStress     float64 `mapstructure:"cv_shear_stress"`
}

// SlumpConfig holds the slump/topple parameters (spec.md §6). Angles are
// given as percent slope (rise/run * 100), matching the spec's
// "*_percent" key names; internal/config converts these to tan(phi).
type SlumpConfig struct {
	CriticalShearStress       float64 `mapstructure:"critical_shear_stress"`
	SlumpAngleOfRestPercent   float64 `mapstructure:"slump_angle_of_rest_percent"`
	ToppleCriticalAnglePercent float64 `mapstructure:"topple_critical_angle_percent"`
	ToppleAngleOfRestPercent  float64 `mapstructure:"topple_angle_of_rest_percent"`
	PatchSizeMM               float64 `mapstructure:"patch_size_mm"`
	ToppleMaxDepth            int     `mapstructure:"topple_max_depth"`
}

// SplashConfig holds the splash parameters and the path to the
// splash-efficiency-vs-depth table (spec.md §6).
type SplashConfig struct {
	EfficiencyConstant float64 `mapstructure:"splash_efficiency"`
	AttenuationFile    string  `mapstructure:"splash_attenuation_file"`
	KEThreshold        float64 `mapstructure:"splash_ke_threshold"`
}

// BaselevelConfig is the optional closed-edge baselevel (spec.md §6).
type BaselevelConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ElevationMM float64 `mapstructure:"elevation_mm"`
}

// CadenceConfig holds the controller's periodic-phase and CFL parameters.
type CadenceConfig struct {
	KInfilt         int     `mapstructure:"k_infilt"`
	KSlump          int     `mapstructure:"k_slump"`
	CourantAlpha    float64 `mapstructure:"courant_alpha"`
	OffEdgeConstant float64 `mapstructure:"off_edge_constant"`
	FlumeMode       bool    `mapstructure:"flume_mode"`
}

// FilesConfig names the raster/table input files (spec.md §6 Inputs 1-2,4).
type FilesConfig struct {
	DEMFile           string  `mapstructure:"dem_file"`
	DEMZUnit          string  `mapstructure:"dem_z_unit"`
	DEMZFactor        float64 `mapstructure:"dem_z_factor"`
	RainVariationFile string  `mapstructure:"rain_variation_file"`
}

// OutputConfig governs save cadence and field selection (spec.md §6
// Outputs).
type OutputConfig struct {
	SaveIntervalIterations int      `mapstructure:"save_interval_iterations"`
	SaveTimesS             []float64 `mapstructure:"save_times_s"`
	Fields                 []string `mapstructure:"output_fields"`
	TimeSeriesFields       []string `mapstructure:"time_series_fields"`
	Directory              string   `mapstructure:"output_directory"`
}

// SeedConfig holds the two RNG seeds (spec.md §6, §5).
type SeedConfig struct {
	Rain    uint64 `mapstructure:"rain_seed"`
	General uint64 `mapstructure:"general_seed"`
}

// RunData is the fully parsed run-data document of spec.md §6.
type RunData struct {
	SimulationDurationS float64 `mapstructure:"simulation_duration"`

	Rain       RainConfig      `mapstructure:"rain"`
	Friction   FrictionConfig  `mapstructure:"friction"`
	Enable     EnableConfig    `mapstructure:"enable"`
	Layers     []LayerConfig   `mapstructure:"layers"`
	SizeClass  SizeClassConfig `mapstructure:"size_classes"`
	Nearing    NearingConfig   `mapstructure:"nearing"`
	Slump      SlumpConfig     `mapstructure:"slump"`
	Splash     SplashConfig    `mapstructure:"splash"`
	Baselevel  BaselevelConfig `mapstructure:"baselevel"`
	Cadence    CadenceConfig   `mapstructure:"cadence"`
	Files      FilesConfig     `mapstructure:"files"`
	Output     OutputConfig    `mapstructure:"output"`
	Seeds      SeedConfig      `mapstructure:"seeds"`
}

// Load reads and unmarshals the run-data document at path, applying the
// defaults of spec.md §4.1 (K_infilt=4, K_slump=10, alpha=0.95) for any
// cadence key the document omits.
func Load(path string) (*RunData, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("cadence.k_infilt", 4)
	v.SetDefault("cadence.k_slump", 10)
	v.SetDefault("cadence.courant_alpha", 0.95)
	v.SetDefault("cadence.off_edge_constant", 1.0)
	v.SetDefault("slump.topple_max_depth", 100)
	v.SetDefault("output.save_interval_iterations", 1000)

	if err := v.ReadInConfig(); err != nil {
		return nil, &simerr.SetupError{Stage: "read run data", Path: path, Err: err}
	}

	var rd RunData
	if err := v.Unmarshal(&rd); err != nil {
		return nil, &simerr.SetupError{Stage: "parse run data", Path: path, Err: err}
	}
	if err := rd.validate(); err != nil {
		return nil, err
	}
	return &rd, nil
}

// validate reports the minimal structural requirements the builder relies
// on (spec.md §7 "Setup error... fatal; reported through the setup return
// channel; no simulation state is touched").
func (rd *RunData) validate() error {
	if rd.SimulationDurationS <= 0 {
		return &simerr.SetupError{Stage: "validate run data", Err: fmt.Errorf("simulation_duration must be positive")}
	}
	if len(rd.Layers) == 0 {
		return &simerr.SetupError{Stage: "validate run data", Err: fmt.Errorf("at least one soil layer must be defined")}
	}
	if rd.Files.DEMFile == "" {
		return &simerr.SetupError{Stage: "validate run data", Err: fmt.Errorf("files.dem_file is required")}
	}
	switch rd.Friction.Model {
	case "dw_constant", "dw_reynolds", "dw_lawrence":
	default:
		return &simerr.SetupError{Stage: "validate run data", Err: fmt.Errorf("unsupported friction_model %q (manning is a reserved, unimplemented alternative)", rd.Friction.Model)}
	}
	return nil
}
