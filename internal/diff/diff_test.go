package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_InPlaceChange(t *testing.T) {
	d := Compute("a.go", "a.go (rewritten)", "a\nb\nc\n", "a\nB\nc\n")

	want := "--- a.go\n+++ a.go (rewritten)\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n"
	if diff := cmp.Diff(want, d.Unified()); diff != "" {
		t.Errorf("unified mismatch (-want +got):\n%s", diff)
	}

	added, removed := d.Stats()
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	require.Len(t, d.Hunks, 1)
	lines := d.Hunks[0].Lines
	assert.Equal(t, Line{OldNum: 2, Content: "b", Type: LineRemoved}, lines[1])
	assert.Equal(t, Line{NewNum: 2, Content: "B", Type: LineAdded}, lines[2])
}

func TestCompute_Identical(t *testing.T) {
	d := Compute("a", "b", "same\ntext\n", "same\ntext\n")
	assert.True(t, d.Empty())
	assert.Empty(t, d.Unified())
}

func TestCompute_AppendedLines(t *testing.T) {
	d := Compute("a", "b", "x\ny\n", "x\ny\n\nvar (\n)\n")

	require.Len(t, d.Hunks, 1)
	h := d.Hunks[0]
	assert.Equal(t, "@@ -1,2 +1,5 @@", h.Header())
	added, removed := d.Stats()
	assert.Equal(t, 3, added)
	assert.Zero(t, removed)
}

func TestCompute_InsertIntoEmpty(t *testing.T) {
	d := Compute("a", "b", "", "one\n")
	require.Len(t, d.Hunks, 1)
	assert.Equal(t, "@@ -0,0 +1,1 @@", d.Hunks[0].Header())
}

func TestCompute_SeparateHunks(t *testing.T) {
	var oldLines, newLines []string
	for i := 1; i <= 30; i++ {
		line := fmt.Sprintf("line %d", i)
		oldLines = append(oldLines, line)
		switch i {
		case 2, 25:
			newLines = append(newLines, line+" changed")
		default:
			newLines = append(newLines, line)
		}
	}
	d := Compute("a", "b", strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n")

	require.Len(t, d.Hunks, 2)
	assert.Equal(t, "@@ -1,5 +1,5 @@", d.Hunks[0].Header())
	assert.Equal(t, "@@ -22,7 +22,7 @@", d.Hunks[1].Header())
}

func TestCompute_NearbyChangesMerge(t *testing.T) {
	e := NewEngine()
	e.Context = 1
	d := e.Compute("a", "b", "1\n2\n3\n4\n5\n", "1\nX\n3\nY\n5\n")
	require.Len(t, d.Hunks, 1)
	assert.Equal(t, "@@ -1,5 +1,5 @@", d.Hunks[0].Header())
}
