package config

import "errors"

var (
	errEmptyDEM  = errors.New("elevation raster has zero rows or columns")
	errRaggedDEM = errors.New("elevation raster rows have inconsistent lengths")
)
