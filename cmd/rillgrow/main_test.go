package main

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davefavismortlock/rillgrow/internal/simerr"
)

func TestScaleGridNoOpWhenScaleIsOne(t *testing.T) {
	in := [][]float64{{1, 2}, {3, 4}}
	out := scaleGrid(in, 1)
	assert.Equal(t, in[0], out[0])
}

func TestScaleGridMultipliesEveryValue(t *testing.T) {
	in := [][]float64{{1, 2}, {3, 4}}
	out := scaleGrid(in, 10)
	assert.Equal(t, []float64{10, 20}, out[0])
	assert.Equal(t, []float64{30, 40}, out[1])
}

func TestScaleGridPreservesNaN(t *testing.T) {
	in := [][]float64{{math.NaN(), 2}}
	out := scaleGrid(in, 1000)
	assert.True(t, math.IsNaN(out[0][0]))
	assert.Equal(t, 2000.0, out[0][1])
}

func TestExitCodeForDistinguishesErrorTypes(t *testing.T) {
	assert.Equal(t, exitOutputIOFailure, exitCodeFor(&simerr.IOError{Operation: "x", Err: fmt.Errorf("boom")}))
	assert.Equal(t, exitStabilityBreach, exitCodeFor(&simerr.StabilityBreachError{}))
	assert.Equal(t, exitMassBalanceBreach, exitCodeFor(&simerr.MassBalanceError{}))
	assert.Equal(t, exitBadConfiguration, exitCodeFor(errors.New("anything else")))
}

func TestExitCodeForSetupDistinguishesMissingFileFromBadConfig(t *testing.T) {
	assert.Equal(t, exitMissingInputFile, exitCodeForSetup(&simerr.SetupError{Stage: "open raster"}))
	assert.Equal(t, exitBadConfiguration, exitCodeForSetup(&simerr.SetupError{Stage: "validate run data"}))
	assert.Equal(t, exitBadCLIParameter, exitCodeForSetup(&simerr.SetupError{Stage: "parse CLI arguments"}))
	assert.Equal(t, exitBadConfiguration, exitCodeForSetup(&simerr.SetupError{Stage: "something unexpected"}))
}

func TestExitCodeForRoutesSetupErrorsThroughExitCodeForSetup(t *testing.T) {
	assert.Equal(t, exitMissingInputFile, exitCodeFor(&simerr.SetupError{Stage: "open splash attenuation file"}))
}
