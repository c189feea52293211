package numeric

import "math"

// SettlingVelocity returns the still-water settling speed of a grain of
// diameter d (m) with density grainDensity (kg/m^3) in a fluid of density
// waterDensity (kg/m^3) and kinematic viscosity nu (m^2/s), using Cheng's
// (1997) formula. Used by the transport kernel (spec.md §4.4) to compute,
// for each of the three sediment size classes, how much of a cell's
// suspended load can fall out within one hop's residence time.
func SettlingVelocity(d, grainDensity, waterDensity, nu float64) float64 {
	if d <= 0 {
		return 0
	}
	s := grainDensity / waterDensity
	const g = 9.80665
	dStar := d * math.Cbrt(g*(s-1)/(nu*nu))
	inner := math.Sqrt(25+1.2*dStar*dStar) - 5
	if inner < 0 {
		inner = 0
	}
	return (nu / d) * math.Pow(inner, 1.5)
}
