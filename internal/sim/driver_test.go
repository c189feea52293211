package sim

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davefavismortlock/rillgrow/internal/balance"
	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/output"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
	"github.com/davefavismortlock/rillgrow/internal/simerr"
	"github.com/davefavismortlock/rillgrow/internal/timestep"
)

func driverTestGrid() *grid.Grid {
	g := grid.NewGrid(2, 1, 100)
	for _, c := range []grid.Coord{{Row: 0, Col: 0}, {Row: 0, Col: 1}} {
		cell := g.At(c)
		cell.Missing = false
		cell.Layers = []grid.SoilLayer{{Thickness: [grid.NumSizeClasses]float64{100, 0, 0}, BulkDensity: 1500}}
	}
	return g
}

func TestSum3AddsThreeSizeClasses(t *testing.T) {
	assert.Equal(t, 6.0, sum3([grid.NumSizeClasses]float64{1, 2, 3}))
}

func TestAbsNegatesNegativeValuesOnly(t *testing.T) {
	assert.Equal(t, 3.0, abs(-3))
	assert.Equal(t, 3.0, abs(3))
}

func TestProcessMeansDividesByActiveCellCount(t *testing.T) {
	g := driverTestGrid()
	g.At(grid.Coord{Row: 0, Col: 0}).Sediment.ThisIteration.Flow = [grid.NumSizeClasses]float64{2, 0, 0}

	means := processMeans(g, 2)
	assert.Equal(t, 1.0, means["flow_net"])
	assert.Equal(t, 0.0, means["splash_net"])
}

func TestMeanWaterFieldsAveragesAcrossActiveCells(t *testing.T) {
	g := driverTestGrid()
	g.At(grid.Coord{Row: 0, Col: 0}).Rain.Rain = 4
	g.At(grid.Coord{Row: 0, Col: 0}).Water.Depth = 10
	g.At(grid.Coord{Row: 0, Col: 1}).Water.EdgeLossDepth = 2

	rain, runon, storage, offEdge := meanWaterFields(g, 2)
	assert.Equal(t, 2.0, rain)
	assert.Equal(t, 0.0, runon)
	assert.Equal(t, 5.0, storage)
	assert.Equal(t, 1.0, offEdge)
}

func TestCheckStabilityPassesBelowCap(t *testing.T) {
	d := &Driver{Grid: driverTestGrid(), Stability: DefaultStabilityCaps()}
	err := d.checkStability(timestep.Result{Iteration: 1}, 2)
	assert.NoError(t, err)
}

func TestCheckStabilityBreachesAboveFlowCap(t *testing.T) {
	g := driverTestGrid()
	g.At(grid.Coord{Row: 0, Col: 0}).Sediment.ThisIteration.Flow = [grid.NumSizeClasses]float64{100, 0, 0}
	d := &Driver{Grid: g, Stability: DefaultStabilityCaps()}

	err := d.checkStability(timestep.Result{Iteration: 3}, 2)
	var breach *simerr.StabilityBreachError
	require.ErrorAs(t, err, &breach)
	assert.Equal(t, int64(3), breach.Iteration)
}

func TestCheckStabilitySkipsDisabledCap(t *testing.T) {
	g := driverTestGrid()
	g.At(grid.Coord{Row: 0, Col: 0}).Sediment.ThisIteration.Flow = [grid.NumSizeClasses]float64{1000, 0, 0}
	caps := DefaultStabilityCaps()
	caps.FlowDetachMM = 0
	d := &Driver{Grid: g, Stability: caps}

	assert.NoError(t, d.checkStability(timestep.Result{Iteration: 1}, 2))
}

func TestCheckMassBalancePassesUnderWarnThreshold(t *testing.T) {
	d := &Driver{MassBalance: DefaultMassBalanceTolerance(), Log: logrus.New()}
	result := timestep.Result{Drift: balance.Drift{WaterResidual: 1e-6}}
	assert.NoError(t, d.checkMassBalance(result))
}

func TestCheckMassBalanceWarnsButDoesNotFailBetweenThresholds(t *testing.T) {
	d := &Driver{MassBalance: DefaultMassBalanceTolerance(), Log: logrus.New()}
	result := timestep.Result{Drift: balance.Drift{WaterResidual: 0.1}}
	assert.NoError(t, d.checkMassBalance(result))
}

func TestCheckMassBalanceFailsAtFatalThreshold(t *testing.T) {
	d := &Driver{MassBalance: DefaultMassBalanceTolerance(), Log: logrus.New()}
	result := timestep.Result{Iteration: 9, Drift: balance.Drift{WaterResidual: 10}}

	err := d.checkMassBalance(result)
	var mbErr *simerr.MassBalanceError
	require.ErrorAs(t, err, &mbErr)
	assert.Equal(t, int64(9), mbErr.Iteration)
}

func TestWriteOutputsWritesTableRow(t *testing.T) {
	g := driverTestGrid()
	path := filepath.Join(t.TempDir(), "table.tsv")
	tw, err := output.NewTableWriter(path, ProcessOrder)
	require.NoError(t, err)
	defer tw.Close()

	d := &Driver{Grid: g, Table: tw, Ledger: &balance.Ledger{}, Log: logrus.New()}
	require.NoError(t, d.writeOutputs(timestep.Result{Iteration: 1, SimTimeS: 1}, 2))
}

func TestWriteOutputsWritesRastersOnlyAtConfiguredInterval(t *testing.T) {
	g := driverTestGrid()
	dir := t.TempDir()
	d := &Driver{
		Grid: g, Ledger: &balance.Ledger{}, Log: logrus.New(),
		Rasters:                output.NewWriter(dir, 100, 0, 0, nil),
		RasterFields:           []string{"elevation"},
		SaveIntervalIterations: 2,
		Ctx:                    &simctx.Context{},
	}

	require.NoError(t, d.writeOutputs(timestep.Result{Iteration: 1}, 2))
	require.NoError(t, d.writeOutputs(timestep.Result{Iteration: 2}, 2))

	entries, err := filepathGlob(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1) // only iteration 2 matched the interval
}

func TestRunFailsFastWhenGridHasNoActiveCells(t *testing.T) {
	g := grid.NewGrid(1, 1, 100) // every cell starts Missing
	d := &Driver{
		Grid:       g,
		Ctx:        &simctx.Context{},
		Controller: timestep.NewController(&balance.Ledger{}, nil, false),
		Ledger:     &balance.Ledger{},
	}

	err := d.Run(10)
	var setupErr *simerr.SetupError
	require.ErrorAs(t, err, &setupErr)
}

func TestRunAdvancesUntilDurationReachedOnQuiescentGrid(t *testing.T) {
	g := driverTestGrid()
	ledger := &balance.Ledger{}
	d := &Driver{
		Grid:        g,
		Ctx:         &simctx.Context{},
		Controller:  timestep.NewController(ledger, nil, false),
		Ledger:      ledger,
		Stability:   DefaultStabilityCaps(),
		MassBalance: DefaultMassBalanceTolerance(),
	}
	d.Controller.Dt = 1

	err := d.Run(3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d.Controller.SimTimeS, 3.0)
}

func filepathGlob(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "elevation_*.nc"))
}
