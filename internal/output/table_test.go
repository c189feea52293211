package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davefavismortlock/rillgrow/internal/balance"
)

func TestJoinTabSeparatesFieldsWithTabs(t *testing.T) {
	assert.Equal(t, "a\tb\tc", joinTab([]string{"a", "b", "c"}))
}

func TestNewTableWriterFailsOnUnwritablePath(t *testing.T) {
	_, err := NewTableWriter(filepath.Join(t.TempDir(), "no-such-dir", "table.tsv"), nil)
	assert.Error(t, err)
}

func TestWriteRowWritesHeaderOnlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.tsv")
	tw, err := NewTableWriter(path, []string{"flow", "splash"})
	require.NoError(t, err)

	require.NoError(t, tw.WriteRow(IterationRow{Iteration: 1, ProcessTotals: map[string]float64{"flow": 1, "splash": 2}}))
	require.NoError(t, tw.WriteRow(IterationRow{Iteration: 2, ProcessTotals: map[string]float64{"flow": 3, "splash": 4}}))
	require.NoError(t, tw.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(string(contents))
	require.Len(t, lines, 3) // header + two rows
	assert.Contains(t, lines[0], "flow_mm")
	assert.Contains(t, lines[0], "splash_mm")
}

func TestWriteRowIncludesDriftResiduals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.tsv")
	tw, err := NewTableWriter(path, nil)
	require.NoError(t, err)
	defer tw.Close()

	row := IterationRow{Iteration: 1, Drift: balance.Drift{WaterResidual: 0.5, SoilResidual: [3]float64{0.1, 0.2, 0.3}}}
	require.NoError(t, tw.WriteRow(row))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "0.5")
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
