package grid

// RainAndRunon is a cell's precipitation/run-on input sub-state
// (spec.md §3, §4.2).
type RainAndRunon struct {
	Rain     float64 // mm, this iteration
	RainCumulative float64

	Runon     float64 // mm, this iteration
	RunonCumulative float64

	// RainVariationMultiplier is sampled once at setup from the optional
	// rain-variation raster; defaults to 1.
	RainVariationMultiplier float64

	// SplashKE accumulates raindrop kinetic energy (½·m·v²) since splash
	// last ran on this cell; drained to zero each time splash runs
	// (spec.md §4.5, §4.1 step 5: "if cumulative KE since last splash
	// exceeds threshold, run splash").
	SplashKE float64
}
