package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoilLayerStagingRoundTrip(t *testing.T) {
	l := SoilLayer{Thickness: [NumSizeClasses]float64{10, 20, 30}}
	l.ResetStagedFromCommitted()

	// No staged writes at all: committing should leave Thickness unchanged.
	l.CommitStaged()
	assert.Equal(t, [NumSizeClasses]float64{10, 20, 30}, l.Thickness)
}

func TestSoilLayerCommitStagedAddsNetFlowDeltaOnly(t *testing.T) {
	l := SoilLayer{Thickness: [NumSizeClasses]float64{10, 20, 30}}
	l.ResetStagedFromCommitted()

	// Flow detaches 4mm of sand via the staged path.
	l.TempThickness[Sand] -= 4

	// Splash writes directly to the committed Thickness within the same
	// iteration, independent of the staged flow delta.
	l.Thickness[Clay] += 1

	l.CommitStaged()

	assert.Equal(t, 11.0, l.Thickness[Clay], "splash's direct write must survive CommitStaged")
	assert.Equal(t, 20.0, l.Thickness[Silt])
	assert.Equal(t, 26.0, l.Thickness[Sand], "flow's net staged delta must be added, not overwritten")
}

func TestSoilLayerSaturationFractionClamped(t *testing.T) {
	l := SoilLayer{Thickness: [NumSizeClasses]float64{10, 0, 0}, ThetaSat: 0.4}
	l.SoilWaterDepth = -1
	assert.Equal(t, 0.0, l.SaturationFraction())

	l.SoilWaterDepth = 1000
	assert.Equal(t, 1.0, l.SaturationFraction())

	l.SoilWaterDepth = 2 // capacity = 0.4*10 = 4
	assert.InDelta(t, 0.5, l.SaturationFraction(), 1e-9)
}

func TestSoilLayerSaturationFractionZeroCapacity(t *testing.T) {
	l := SoilLayer{}
	assert.Equal(t, 0.0, l.SaturationFraction())
}

func TestDetachCascadeFallsThroughExhaustedLayer(t *testing.T) {
	top := &SoilLayer{Thickness: [NumSizeClasses]float64{2, 0, 0}, FlowErodibility: [NumSizeClasses]float64{1, 1, 1}}
	bottom := &SoilLayer{Thickness: [NumSizeClasses]float64{10, 0, 0}, FlowErodibility: [NumSizeClasses]float64{1, 1, 1}}

	byClass, achieved := DetachCascade([]*SoilLayer{top, bottom}, 5, FlowErodibilitySelector, false)

	assert.InDelta(t, 5.0, achieved, 1e-9)
	assert.InDelta(t, 5.0, byClass[Clay], 1e-9)
	assert.InDelta(t, 0.0, top.Thickness[Clay], 1e-9, "top layer's available clay is exhausted first")
	assert.InDelta(t, 7.0, bottom.Thickness[Clay], 1e-9)
}

func TestDetachCascadeCannotExceedTotalAvailable(t *testing.T) {
	top := &SoilLayer{Thickness: [NumSizeClasses]float64{1, 0, 0}, FlowErodibility: [NumSizeClasses]float64{1, 1, 1}}
	_, achieved := DetachCascade([]*SoilLayer{top}, 100, FlowErodibilitySelector, false)
	assert.InDelta(t, 1.0, achieved, 1e-9)
}

func TestDepositTopCreditsShallowestLayerEvenWhenExhausted(t *testing.T) {
	top := &SoilLayer{Thickness: [NumSizeClasses]float64{0, 0, 0}}
	bottom := &SoilLayer{Thickness: [NumSizeClasses]float64{10, 10, 10}}

	DepositTop([]*SoilLayer{top, bottom}, [NumSizeClasses]float64{1, 2, 3}, false)

	assert.Equal(t, [NumSizeClasses]float64{1, 2, 3}, top.Thickness)
	assert.Equal(t, [NumSizeClasses]float64{10, 10, 10}, bottom.Thickness)
}
