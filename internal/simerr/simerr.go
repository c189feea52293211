// Package simerr defines the typed error hierarchy of spec.md §7: setup
// errors, I/O errors, stability breaches, and mass-balance drift, each
// fatal with a distinct meaning so cmd/rillgrow can map them to distinct
// process exit codes.
package simerr

import "fmt"

// SetupError reports missing or malformed configuration, a missing input
// file, or an unsupported output format (spec.md §7 "Setup error...
// fatal; reported through the setup return channel; no simulation state
// is touched").
type SetupError struct {
	Stage string // e.g. "read run data", "load DEM"
	Path  string // input file path, if applicable
	Err   error
}

func (e *SetupError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("setup error (%s): %s: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("setup error (%s): %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// IOError reports a failed write to an output raster, time series, or log
// (spec.md §7 "I/O error... Fatal; the engine ends the run reporting the
// failure and exits nonzero").
type IOError struct {
	Operation string // e.g. "write raster", "append time series"
	Path      string
	Err       error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("I/O error (%s): %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// StabilityBreachError reports an iteration whose mean per-cell rate for
// some process exceeded its configured hard cap (spec.md §7: 10mm for
// most processes, 100mm for mass-movement).
type StabilityBreachError struct {
	Iteration int64
	Process   string  // e.g. "flow detachment", "slump detachment"
	MeanRate  float64 // mm per cell, this iteration
	Cap       float64
}

func (e *StabilityBreachError) Error() string {
	return fmt.Sprintf("stability breach at iteration %d: %s mean rate %.4gmm exceeds cap %.4gmm",
		e.Iteration, e.Process, e.MeanRate, e.Cap)
}

// MassBalanceError reports a per-iteration mass-balance residual (spec.md
// §8 Invariants 1-2) that exceeds the configured hard cap. A residual
// between the warning tolerance and the hard cap is logged, not returned;
// this type represents only the fatal case.
type MassBalanceError struct {
	Iteration int64
	Quantity  string // "water/soil" as reported by sim.Driver
	Residual  float64 // mm, summed over all cells, for this one iteration
	Cap       float64
}

func (e *MassBalanceError) Error() string {
	return fmt.Sprintf("mass-balance drift at iteration %d: %s residual %.4gmm exceeds cap %.4gmm",
		e.Iteration, e.Quantity, e.Residual, e.Cap)
}
