package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoilSurfaceAndTopElevation(t *testing.T) {
	c := &Cell{
		Basement: 1000,
		Layers: []SoilLayer{
			{Thickness: [NumSizeClasses]float64{10, 0, 0}},
			{Thickness: [NumSizeClasses]float64{0, 20, 0}},
		},
	}
	assert.Equal(t, 1030.0, c.SoilSurfaceElevation())

	c.Water.Depth = 5
	assert.Equal(t, 1035.0, c.TopElevation())
}

func TestTopNonZeroLayerSkipsExhaustedLayers(t *testing.T) {
	c := &Cell{
		Layers: []SoilLayer{
			{Name: "top", Thickness: [NumSizeClasses]float64{0, 0, 0}},
			{Name: "bottom", Thickness: [NumSizeClasses]float64{5, 0, 0}},
		},
	}
	l := c.TopNonZeroLayer()
	assert.Equal(t, "bottom", l.Name)
}

func TestTopNonZeroLayerFallsBackToFirstWhenColumnExhausted(t *testing.T) {
	c := &Cell{Layers: []SoilLayer{{Name: "only"}}}
	l := c.TopNonZeroLayer()
	assert.NotNil(t, l)
	assert.Equal(t, "only", l.Name)
}

func TestTopNonZeroLayerNilWhenNoLayers(t *testing.T) {
	c := &Cell{}
	assert.Nil(t, c.TopNonZeroLayer())
}

func TestMarkWetSeedsVelocityOnlyWhenWasDry(t *testing.T) {
	c := &Cell{}
	c.Sediment.Load = [NumSizeClasses]float64{1, 1, 1}
	c.MarkWet(0.5, -0.25)

	assert.Equal(t, Velocity2D{Row: 0.5, Col: -0.25}, c.Water.Velocity)
	assert.Equal(t, [NumSizeClasses]float64{}, c.Sediment.Load)
}

func TestMarkWetNoOpWhenAlreadyWet(t *testing.T) {
	c := &Cell{}
	c.Water.Depth = 3
	c.Water.Velocity = Velocity2D{Row: 9, Col: 9}
	c.Sediment.Load = [NumSizeClasses]float64{1, 1, 1}

	c.MarkWet(0.5, -0.25)

	assert.Equal(t, Velocity2D{Row: 9, Col: 9}, c.Water.Velocity)
	assert.Equal(t, [NumSizeClasses]float64{1, 1, 1}, c.Sediment.Load)
}
