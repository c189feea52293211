package output

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/davefavismortlock/rillgrow/internal/balance"
	"github.com/davefavismortlock/rillgrow/internal/simerr"
)

// IterationRow is one row of the per-iteration text table of spec.md §6
// Outputs: "wall-clock, elapsed, mean rain, run-on, infiltration, storage,
// off-edge losses, detachment/deposit totals for each process".
type IterationRow struct {
	WallClock         time.Time
	Iteration         int64
	ElapsedS          float64
	MeanRainMM        float64
	MeanRunonMM       float64
	MeanInfiltratedMM float64
	MeanStorageMM     float64
	MeanOffEdgeWaterMM float64
	ProcessTotals     map[string]float64 // process name -> mean mm this iteration
	Drift             balance.Drift
}

// TableWriter appends IterationRow records to a tab-separated text table,
// flushing after every row so a run killed mid-flight leaves a readable
// partial file (spec.md §7: I/O failures are fatal, not silently
// swallowed, so every write error is surfaced immediately).
type TableWriter struct {
	f  *os.File
	tw *tabwriter.Writer

	processOrder []string
	wroteHeader  bool
}

// NewTableWriter opens (creating if necessary) the per-iteration table at
// path and prepares it for appending. processOrder fixes the column order
// for per-process totals across the life of the run.
func NewTableWriter(path string, processOrder []string) (*TableWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &simerr.IOError{Operation: "create iteration table", Path: path, Err: err}
	}
	return &TableWriter{
		f:            f,
		tw:           tabwriter.NewWriter(f, 2, 4, 2, ' ', 0),
		processOrder: processOrder,
	}, nil
}

func (t *TableWriter) WriteRow(row IterationRow) error {
	if !t.wroteHeader {
		cols := []string{"iteration", "wall_clock", "elapsed_s", "mean_rain_mm", "mean_runon_mm",
			"mean_infiltrated_mm", "mean_storage_mm", "mean_off_edge_water_mm",
			"water_residual_mm", "clay_residual_mm", "silt_residual_mm", "sand_residual_mm"}
		for _, p := range t.processOrder {
			cols = append(cols, p+"_mm")
		}
		if _, err := fmt.Fprintln(t.tw, joinTab(cols)); err != nil {
			return &simerr.IOError{Operation: "write iteration table header", Err: err}
		}
		t.wroteHeader = true
	}

	vals := []string{
		fmt.Sprintf("%d", row.Iteration),
		row.WallClock.Format(time.RFC3339),
		fmt.Sprintf("%.6g", row.ElapsedS),
		fmt.Sprintf("%.6g", row.MeanRainMM),
		fmt.Sprintf("%.6g", row.MeanRunonMM),
		fmt.Sprintf("%.6g", row.MeanInfiltratedMM),
		fmt.Sprintf("%.6g", row.MeanStorageMM),
		fmt.Sprintf("%.6g", row.MeanOffEdgeWaterMM),
		fmt.Sprintf("%.6g", row.Drift.WaterResidual),
		fmt.Sprintf("%.6g", row.Drift.SoilResidual[0]),
		fmt.Sprintf("%.6g", row.Drift.SoilResidual[1]),
		fmt.Sprintf("%.6g", row.Drift.SoilResidual[2]),
	}
	for _, p := range t.processOrder {
		vals = append(vals, fmt.Sprintf("%.6g", row.ProcessTotals[p]))
	}
	if _, err := fmt.Fprintln(t.tw, joinTab(vals)); err != nil {
		return &simerr.IOError{Operation: "write iteration table row", Err: err}
	}
	if err := t.tw.Flush(); err != nil {
		return &simerr.IOError{Operation: "flush iteration table", Err: err}
	}
	return nil
}

func (t *TableWriter) Close() error {
	if err := t.tw.Flush(); err != nil {
		return &simerr.IOError{Operation: "flush iteration table", Err: err}
	}
	return t.f.Close()
}

func joinTab(fields []string) string {
	out := fields[0]
	for _, f := range fields[1:] {
		out += "\t" + f
	}
	return out
}
