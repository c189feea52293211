package splash

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davefavismortlock/rillgrow/internal/balance"
	"github.com/davefavismortlock/rillgrow/internal/grid"
	"github.com/davefavismortlock/rillgrow/internal/numeric"
	"github.com/davefavismortlock/rillgrow/internal/simctx"
)

func splashTestContext() *simctx.Context {
	return &simctx.Context{
		Splash: simctx.SplashEfficiency{
			EfficiencyConstant: 1e-6,
			Phi:                numeric.NewSpline([]float64{0, 10}, []float64{1, 1}),
		},
		SplashKEThreshold: 1.0,
	}
}

func splashGrid() *grid.Grid {
	g := grid.NewGrid(3, 3, 100)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			c := grid.Coord{Row: row, Col: col}
			cell := g.At(c)
			cell.Missing = false
			cell.Layers = []grid.SoilLayer{{
				Thickness:        [grid.NumSizeClasses]float64{100, 100, 100},
				BulkDensity:      1500,
				SplashErodibility: [grid.NumSizeClasses]float64{1, 1, 1},
			}}
			cell.Layers[0].ResetStagedFromCommitted()
		}
	}
	// Raise the centre above its neighbours (negative Laplacian), so it
	// detaches whenever it carries splash KE.
	centre := grid.Coord{Row: 1, Col: 1}
	g.At(centre).Layers[0].Thickness[0] += 50
	g.At(centre).Layers[0].ResetStagedFromCommitted()
	return g
}

func TestMaybeRunSkipsBelowThreshold(t *testing.T) {
	g := splashGrid()
	ctx := splashTestContext()
	var r Runner
	ran := r.MaybeRun(g, ctx, nil)
	assert.False(t, ran)
}

func TestMaybeRunDrainsKEAndRunsAboveThreshold(t *testing.T) {
	g := splashGrid()
	ctx := splashTestContext()
	g.At(grid.Coord{Row: 1, Col: 1}).Rain.SplashKE = 10

	var r Runner
	ran := r.MaybeRun(g, ctx, nil)

	assert.True(t, ran)
	g.Each(func(_ grid.Coord, c *grid.Cell) {
		assert.Equal(t, 0.0, c.Rain.SplashKE)
	})
}

func TestRunWithLedgerDetachesRaisedCell(t *testing.T) {
	g := splashGrid()
	ctx := splashTestContext()
	centre := grid.Coord{Row: 1, Col: 1}
	g.At(centre).Rain.SplashKE = 10

	var ledger balance.Ledger
	var r Runner
	r.run(g, ctx, &ledger)

	centreCell := g.At(centre)
	total := centreCell.Sediment.ThisIteration.Splash[0] +
		centreCell.Sediment.ThisIteration.Splash[1] +
		centreCell.Sediment.ThisIteration.Splash[2]
	assert.Greater(t, total, 0.0) // net detach at the raised centre
}

func TestRunWithoutLedgerDoesNotPanic(t *testing.T) {
	g := splashGrid()
	ctx := splashTestContext()
	g.At(grid.Coord{Row: 1, Col: 1}).Rain.SplashKE = 10
	var r Runner
	assert.NotPanics(t, func() { r.run(g, ctx, nil) })
}

func TestRunAlternatesScanDirectionEachCall(t *testing.T) {
	var r Runner
	assert.False(t, r.reverse)
	g := splashGrid()
	ctx := splashTestContext()
	r.run(g, ctx, nil)
	assert.True(t, r.reverse)
	r.run(g, ctx, nil)
	assert.False(t, r.reverse)
}

func TestLaplacianZeroOnFlatGridInterior(t *testing.T) {
	g := grid.NewGrid(3, 3, 100)
	elev := make(map[grid.Coord]float64)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			c := grid.Coord{Row: row, Col: col}
			g.At(c).Missing = false
			elev[c] = 10 // perfectly flat
		}
	}
	lap, missing := laplacian(g, elev, grid.Coord{Row: 1, Col: 1})
	assert.Equal(t, 0.0, lap)
	assert.Equal(t, 0, missing)
}

func TestLaplacianCountsMissingNeighboursAtCorner(t *testing.T) {
	g := grid.NewGrid(3, 3, 100)
	elev := make(map[grid.Coord]float64)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			c := grid.Coord{Row: row, Col: col}
			g.At(c).Missing = false
			elev[c] = 0
		}
	}
	_, missing := laplacian(g, elev, grid.Coord{Row: 0, Col: 0})
	assert.Equal(t, 5, missing) // corner cell: 3 of 8 Moore neighbours exist
}

func TestNegateFlipsAllThreeClasses(t *testing.T) {
	got := negate([grid.NumSizeClasses]float64{1, -2, 3})
	assert.Equal(t, [grid.NumSizeClasses]float64{-1, 2, -3}, got)
}
