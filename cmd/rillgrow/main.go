// Command rillgrow runs one rill-erosion simulation end to end: it loads a
// run-data document and its referenced rasters/tables, builds the grid and
// simulation context, and drives the timestep loop until the configured
// duration elapses or a fatal error stops it (spec.md §6/§7).
package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/davefavismortlock/rillgrow/internal/balance"
	"github.com/davefavismortlock/rillgrow/internal/config"
	"github.com/davefavismortlock/rillgrow/internal/kernel/slump"
	"github.com/davefavismortlock/rillgrow/internal/kernel/transport"
	"github.com/davefavismortlock/rillgrow/internal/numeric"
	"github.com/davefavismortlock/rillgrow/internal/output"
	"github.com/davefavismortlock/rillgrow/internal/raster"
	"github.com/davefavismortlock/rillgrow/internal/sim"
	"github.com/davefavismortlock/rillgrow/internal/simerr"
	"github.com/davefavismortlock/rillgrow/internal/timestep"
)

// Exit codes (spec.md §6): distinct nonzero codes per failure category, so
// a caller can distinguish "fix your config" from "the run blew up
// numerically" without parsing stderr.
const (
	exitOK = iota
	exitBadCLIParameter
	exitBadConfiguration
	exitMissingInputFile
	exitOutOfMemory
	exitOutputIOFailure
	exitStabilityBreach
	exitMassBalanceBreach
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := newRootCmd(log)
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd(log *logrus.Logger) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rillgrow",
		Short: "Cellular, physically-based hydro-geomorphic rill-erosion simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return &simerr.SetupError{Stage: "parse CLI arguments", Err: fmt.Errorf("--config is required")}
			}
			return run(configPath, log)
		},
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the run-data document")
	return cmd
}

func run(configPath string, log *logrus.Logger) error {
	rd, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dem, err := raster.LoadDEM(rd.Files.DEMFile)
	if err != nil {
		return err
	}
	scale := rd.Files.ElevationUnitScale()
	elevationMM := scaleGrid(dem.Values, scale)

	var rainVariation [][]float64
	if rd.Files.RainVariationFile != "" {
		rv, err := raster.LoadRainVariation(rd.Files.RainVariationFile)
		if err != nil {
			return err
		}
		rainVariation = rv.Values
	}

	var attenuation *numeric.Spline
	if rd.Splash.AttenuationFile != "" {
		attenuation, err = raster.LoadSplashEfficiencyTable(rd.Splash.AttenuationFile)
		if err != nil {
			return err
		}
	}

	ctx := rd.BuildContext(dem.CellSizeMM, attenuation, rd.Seeds.Rain, rd.Seeds.General)
	g, err := rd.BuildGrid(elevationMM, rainVariation, dem.CellSizeMM)
	if err != nil {
		return err
	}

	ledger := &balance.Ledger{}
	var shear transport.ShearSink
	if rd.Enable.Slumping {
		shear = &slump.ShearSink{Patch: slump.NewPatch(rd.Slump.PatchSizeMM, dem.CellSizeMM)}
	}

	raining := rd.Rain.IntensityMMPerH > 0
	controller := timestep.NewController(ledger, shear, raining)

	driver := &sim.Driver{
		Grid:                   g,
		Ctx:                    ctx,
		Controller:              controller,
		Ledger:                 ledger,
		Stability:              sim.DefaultStabilityCaps(),
		MassBalance:            sim.DefaultMassBalanceTolerance(),
		RasterFields:           rd.Output.Fields,
		TimeSeriesFields:       rd.Output.TimeSeriesFields,
		SaveIntervalIterations: rd.Output.SaveIntervalIterations,
		Log:                    log,
	}

	if rd.Output.Directory != "" {
		driver.Rasters = output.NewWriter(rd.Output.Directory, dem.CellSizeMM, dem.X0, dem.Y0, log)

		table, err := output.NewTableWriter(rd.Output.Directory+"/iterations.tsv", sim.ProcessOrder)
		if err != nil {
			return err
		}
		defer table.Close()
		driver.Table = table

		if len(rd.Output.TimeSeriesFields) > 0 {
			driver.TimeSeries = output.NewTimeSeriesWriter(rd.Output.Directory + "/timeseries")
			defer driver.TimeSeries.Close()
		}
	}

	log.WithFields(logrus.Fields{
		"nx": g.NX, "ny": g.NY, "cell_side_mm": g.CellSide, "duration_s": rd.SimulationDurationS,
	}).Info("rillgrow: starting run")

	return driver.Run(rd.SimulationDurationS)
}

func scaleGrid(values [][]float64, scale float64) [][]float64 {
	if scale == 1 {
		return values
	}
	out := make([][]float64, len(values))
	for row := range values {
		out[row] = make([]float64, len(values[row]))
		for col, v := range values[row] {
			if math.IsNaN(v) {
				out[row][col] = v
				continue
			}
			out[row][col] = v * scale
		}
	}
	return out
}

func exitCodeFor(err error) int {
	var setupErr *simerr.SetupError
	var ioErr *simerr.IOError
	var stabilityErr *simerr.StabilityBreachError
	var massErr *simerr.MassBalanceError

	switch {
	case errors.As(err, &setupErr):
		return exitCodeForSetup(setupErr)
	case errors.As(err, &ioErr):
		return exitOutputIOFailure
	case errors.As(err, &stabilityErr):
		return exitStabilityBreach
	case errors.As(err, &massErr):
		return exitMassBalanceBreach
	default:
		return exitBadConfiguration
	}
}

// exitCodeForSetup distinguishes a missing input file from any other
// configuration problem: both arrive as *simerr.SetupError, but only the
// file-loading stages name "raster"/"splash attenuation file" in Stage.
func exitCodeForSetup(e *simerr.SetupError) int {
	switch e.Stage {
	case "open raster", "read raster header", "read raster",
		"open splash attenuation file", "parse splash attenuation file", "read splash attenuation file":
		return exitMissingInputFile
	case "read run data", "parse run data", "validate run data", "build grid":
		return exitBadConfiguration
	case "parse CLI arguments":
		return exitBadCLIParameter
	default:
		return exitBadConfiguration
	}
}
