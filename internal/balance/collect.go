package balance

import "github.com/davefavismortlock/rillgrow/internal/grid"

// GridTotals is an instantaneous sum over every active cell, used as the
// before/after snapshot for the per-iteration drift check of spec.md §8
// Invariants 1-2. Unlike Ledger's Accumulators (lifetime running totals,
// for reporting), this is recomputed fresh each time: the grid only has a
// few thousand to a few hundred thousand cells, so summing it once per
// iteration is cheap relative to the per-cell kernel work already done.
type GridTotals struct {
	Water        float64
	SoilWater    float64
	Soil         [3]float64
	SedimentLoad [3]float64
}

// Collect sums water depth, soil-water content, per-size-class soil
// thickness, and per-size-class suspended load over every non-missing
// cell.
func Collect(g *grid.Grid) GridTotals {
	var t GridTotals
	g.Each(func(_ grid.Coord, c *grid.Cell) {
		t.Water += c.Water.Depth
		for _, l := range c.Layers {
			t.SoilWater += l.SoilWaterDepth
			t.Soil[grid.Clay] += l.Thickness[grid.Clay]
			t.Soil[grid.Silt] += l.Thickness[grid.Silt]
			t.Soil[grid.Sand] += l.Thickness[grid.Sand]
		}
		t.SedimentLoad[grid.Clay] += c.Sediment.Load[grid.Clay]
		t.SedimentLoad[grid.Silt] += c.Sediment.Load[grid.Silt]
		t.SedimentLoad[grid.Sand] += c.Sediment.Load[grid.Sand]
	})
	return t
}

// Diff returns end-start for each field, the raw per-iteration change
// before it is checked against rain/runon/infiltration/off-edge inputs.
func (end GridTotals) Diff(start GridTotals) GridTotals {
	d := GridTotals{Water: end.Water - start.Water, SoilWater: end.SoilWater - start.SoilWater}
	for c := 0; c < 3; c++ {
		d.Soil[c] = end.Soil[c] - start.Soil[c]
		d.SedimentLoad[c] = end.SedimentLoad[c] - start.SedimentLoad[c]
	}
	return d
}
