package balance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davefavismortlock/rillgrow/internal/grid"
)

func TestCollectSumsActiveCellsOnly(t *testing.T) {
	g := grid.NewGrid(2, 1, 100)
	a := g.At(grid.Coord{Row: 0, Col: 0})
	a.Missing = false
	a.Water.Depth = 4
	a.Layers = []grid.SoilLayer{{Thickness: [grid.NumSizeClasses]float64{1, 2, 3}, SoilWaterDepth: 6}}

	// (0,1) stays Missing and must not contribute.
	b := g.At(grid.Coord{Row: 0, Col: 1})
	b.Water.Depth = 1000

	totals := Collect(g)

	assert.Equal(t, 4.0, totals.Water)
	assert.Equal(t, 6.0, totals.SoilWater)
	assert.Equal(t, [3]float64{1, 2, 3}, totals.Soil)
}

func TestDiffIsEndMinusStart(t *testing.T) {
	start := GridTotals{Water: 10, Soil: [3]float64{1, 2, 3}}
	end := GridTotals{Water: 15, Soil: [3]float64{1, 5, 3}}

	d := end.Diff(start)
	assert.Equal(t, 5.0, d.Water)
	assert.Equal(t, [3]float64{0, 3, 0}, d.Soil)
}
