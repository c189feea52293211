package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectionOffsets(t *testing.T) {
	row, col := N.Offset()
	assert.Equal(t, -1, row)
	assert.Equal(t, 0, col)

	row, col = SE.Offset()
	assert.Equal(t, 1, row)
	assert.Equal(t, 1, col)
}

func TestDirectionIsDiagonal(t *testing.T) {
	for _, d := range []Direction{NE, SE, SW, NW} {
		assert.True(t, d.IsDiagonal(), d)
	}
	for _, d := range []Direction{N, E, S, W} {
		assert.False(t, d.IsDiagonal(), d)
	}
}

func TestDirectionOppositeIsInvolution(t *testing.T) {
	for _, d := range AllDirections {
		assert.Equal(t, d, d.Opposite().Opposite())
		assert.NotEqual(t, d, d.Opposite())
	}
	assert.Equal(t, None, None.Opposite())
}

func TestDirectionIndexCoversAllEight(t *testing.T) {
	seen := make(map[int]bool)
	for _, d := range AllDirections {
		idx := d.Index()
		assert.False(t, seen[idx], "index %d reused", idx)
		seen[idx] = true
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 8)
	}
}

func TestDirectionIndexPanicsOnNone(t *testing.T) {
	assert.Panics(t, func() { None.Index() })
}
