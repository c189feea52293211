package raster

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/davefavismortlock/rillgrow/internal/numeric"
	"github.com/davefavismortlock/rillgrow/internal/simerr"
)

// LoadSplashEfficiencyTable reads the two-column text table of spec.md §6
// input 4 (`depth_multiplier efficiency`, ascending in depth) and builds
// the cubic spline internal/numeric uses for splash detachment
// attenuation. No ecosystem table reader in the example pack fits a
// whitespace-delimited two-column text file (encoding/csv assumes a
// delimiter character, not arbitrary whitespace), so this is a direct
// bufio.Scanner parse.
func LoadSplashEfficiencyTable(path string) (*numeric.Spline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &simerr.SetupError{Stage: "open splash attenuation file", Path: path, Err: err}
	}
	defer f.Close()

	var x, y []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, &simerr.SetupError{Stage: "parse splash attenuation file", Path: path,
				Err: errBadSplashRow}
		}
		depth, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, &simerr.SetupError{Stage: "parse splash attenuation file", Path: path, Err: err}
		}
		eff, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &simerr.SetupError{Stage: "parse splash attenuation file", Path: path, Err: err}
		}
		x = append(x, depth)
		y = append(y, eff)
	}
	if err := scanner.Err(); err != nil {
		return nil, &simerr.SetupError{Stage: "read splash attenuation file", Path: path, Err: err}
	}
	if len(x) < 2 {
		return nil, &simerr.SetupError{Stage: "parse splash attenuation file", Path: path, Err: errShortSplashTable}
	}
	return numeric.NewSpline(x, y), nil
}
