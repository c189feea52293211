package raster

import "errors"

var (
	errBadSplashRow     = errors.New("splash attenuation row must have two numeric columns")
	errShortSplashTable = errors.New("splash attenuation table needs at least two rows")
)
