package slump

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davefavismortlock/rillgrow/internal/grid"
)

func TestNewPatchWeightsSumToOne(t *testing.T) {
	p := NewPatch(250, 100) // q = 2
	var total float64
	for _, w := range p.weights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestNewPatchCentreHasHighestWeight(t *testing.T) {
	p := NewPatch(250, 100)
	centre := p.weights[offset{0, 0}]
	for off, w := range p.weights {
		if off != (offset{0, 0}) {
			assert.GreaterOrEqual(t, centre, w)
		}
	}
}

func TestNewPatchMinimumRadiusIsOneCell(t *testing.T) {
	p := NewPatch(1, 100) // patchRadius smaller than cell side still yields q=1
	// A q=1 patch is a 3x3 block, so at most 9 weighted offsets.
	assert.LessOrEqual(t, len(p.weights), 9)
	assert.Greater(t, len(p.weights), 0)
}

func TestShearSinkDropsOffGridWeight(t *testing.T) {
	g := grid.NewGrid(1, 1, 100)
	g.At(grid.Coord{Row: 0, Col: 0}).Missing = false

	sink := &ShearSink{Patch: NewPatch(250, 100)}
	// Must not panic even though every neighbour of the sole cell is
	// off-grid; the only non-off-grid weight is the centre's own cell.
	assert.NotPanics(t, func() {
		sink.AddShear(g, grid.Coord{Row: 0, Col: 0}, 10)
	})
	assert.Greater(t, g.At(grid.Coord{Row: 0, Col: 0}).ShearAccum, 0.0)
}
