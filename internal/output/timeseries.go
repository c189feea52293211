package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/davefavismortlock/rillgrow/internal/simerr"
)

// TimeSeriesWriter appends one (elapsed_s, value) line per call to a
// per-quantity text file, implementing spec.md §6's optional "per-quantity
// time series" output.
type TimeSeriesWriter struct {
	dir   string
	files map[string]*os.File
}

func NewTimeSeriesWriter(dir string) *TimeSeriesWriter {
	return &TimeSeriesWriter{dir: dir, files: make(map[string]*os.File)}
}

func (t *TimeSeriesWriter) Append(quantity string, elapsedS, value float64) error {
	f, ok := t.files[quantity]
	if !ok {
		if err := os.MkdirAll(t.dir, 0o755); err != nil {
			return &simerr.IOError{Operation: "create time series directory", Path: t.dir, Err: err}
		}
		path := filepath.Join(t.dir, quantity+".tsv")
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return &simerr.IOError{Operation: "open time series", Path: path, Err: err}
		}
		t.files[quantity] = f
	}
	if _, err := fmt.Fprintf(f, "%.6g\t%.6g\n", elapsedS, value); err != nil {
		return &simerr.IOError{Operation: "append time series", Path: f.Name(), Err: err}
	}
	return nil
}

func (t *TimeSeriesWriter) Close() error {
	var firstErr error
	for _, f := range t.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = &simerr.IOError{Operation: "close time series", Path: f.Name(), Err: err}
		}
	}
	return firstErr
}
