// Package diff computes line diffs between an original source file and its
// rewritten form, using the sergi/go-diff library.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
)

// Line is a single line of a hunk. OldNum and NewNum are 1-based and zero
// on the side the line does not exist.
type Line struct {
	OldNum  int
	NewNum  int
	Content string
	Type    LineType
}

// Hunk is a group of changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Header returns the unified-diff hunk header.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// FileDiff represents the changes to one file.
type FileDiff struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// Empty reports whether the two sides are identical.
func (d *FileDiff) Empty() bool {
	return len(d.Hunks) == 0
}

// Stats counts added and removed lines.
func (d *FileDiff) Stats() (added, removed int) {
	for _, h := range d.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return added, removed
}

// Unified renders d in unified diff format.
func (d *FileDiff) Unified() string {
	if d.Empty() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", d.OldPath, d.NewPath)
	for _, h := range d.Hunks {
		sb.WriteString(h.Header())
		sb.WriteByte('\n')
		for _, l := range h.Lines {
			sb.WriteByte(" +-"[l.Type])
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Engine computes line diffs.
type Engine struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	Context int // context lines around each change
}

// NewEngine creates an engine with three lines of context.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &Engine{dmp: dmp, Context: 3}
}

// DefaultEngine is used by Compute.
var DefaultEngine = NewEngine()

// Compute diffs oldContent against newContent with the default engine.
func Compute(oldPath, newPath, oldContent, newContent string) *FileDiff {
	return DefaultEngine.Compute(oldPath, newPath, oldContent, newContent)
}

// Compute diffs oldContent against newContent line by line.
func (e *Engine) Compute(oldPath, newPath, oldContent, newContent string) *FileDiff {
	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	return &FileDiff{
		OldPath: oldPath,
		NewPath: newPath,
		Hunks:   e.group(operations(diffs)),
	}
}

// operation is one line with the number of old and new lines before it.
type operation struct {
	typ       LineType
	oldBefore int
	newBefore int
	content   string
}

func operations(diffs []diffmatchpatch.Diff) []operation {
	var ops []operation
	oldLine, newLine := 0, 0
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			op := operation{oldBefore: oldLine, newBefore: newLine, content: line}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				op.typ = LineContext
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				op.typ = LineRemoved
				oldLine++
			case diffmatchpatch.DiffInsert:
				op.typ = LineAdded
				newLine++
			}
			ops = append(ops, op)
		}
	}
	return ops
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\n")
	}
	return lines
}

// group merges changes closer than 2*Context lines into one hunk.
func (e *Engine) group(ops []operation) []Hunk {
	var hunks []Hunk
	start, end := -1, -1
	flush := func() {
		if start >= 0 {
			hunks = append(hunks, hunk(ops[start:end+1]))
		}
	}

	for i, op := range ops {
		if op.typ == LineContext {
			continue
		}
		from := max(i-e.Context, 0)
		to := min(i+e.Context, len(ops)-1)
		if start >= 0 && from <= end+1 {
			end = max(end, to)
			continue
		}
		flush()
		start, end = from, to
	}
	flush()
	return hunks
}

func hunk(ops []operation) Hunk {
	h := Hunk{
		OldStart: ops[0].oldBefore + 1,
		NewStart: ops[0].newBefore + 1,
		Lines:    make([]Line, 0, len(ops)),
	}
	for _, op := range ops {
		l := Line{Content: op.content, Type: op.typ}
		if op.typ != LineAdded {
			h.OldCount++
			l.OldNum = op.oldBefore + 1
		}
		if op.typ != LineRemoved {
			h.NewCount++
			l.NewNum = op.newBefore + 1
		}
		h.Lines = append(h.Lines, l)
	}
	if h.OldCount == 0 {
		h.OldStart--
	}
	if h.NewCount == 0 {
		h.NewStart--
	}
	return h
}
