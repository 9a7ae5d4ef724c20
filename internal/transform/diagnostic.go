package transform

import (
	"fmt"
	"go/token"
	"sort"
	"strings"
)

// Kind classifies a Diagnostic.
type Kind string

const (
	KindMalformed   Kind = "malformed"     // directive argument is not a type expression
	KindAsyncOnSync Kind = "async-on-sync" // async directive on a function without a leading context.Context
	KindUnsupported Kind = "unsupported"   // signature the rewrite cannot carry
	KindDuplicate   Kind = "duplicate"     // more than one directive on a function
	KindMisplaced   Kind = "misplaced"     // directive not in a function doc comment
	KindNoBody      Kind = "no-body"       // function declared without a body
)

// Diagnostic is a build-time error pointing at a source position.
type Diagnostic struct {
	Pos     token.Position
	Kind    Kind
	Message string
}

// Error formats the diagnostic the way the compiler does.
func (d Diagnostic) Error() string {
	if !d.Pos.IsValid() {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Pos, d.Message)
}

// Diagnostics is a list of problems found in one or more files.
type Diagnostics []Diagnostic

// Error joins all diagnostics, one per line.
func (ds Diagnostics) Error() string {
	lines := make([]string, len(ds))
	for i, d := range ds {
		lines[i] = d.Error()
	}
	return strings.Join(lines, "\n")
}

// Sort orders diagnostics by file, line and column.
func (ds Diagnostics) Sort() {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i].Pos, ds[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Err returns nil when ds is empty and the sorted list otherwise.
func (ds Diagnostics) Err() error {
	if len(ds) == 0 {
		return nil
	}
	ds.Sort()
	return ds
}

// Count returns the number of diagnostics of the given kind.
func (ds Diagnostics) Count(kind Kind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

type reporter struct {
	fset  *token.FileSet
	diags Diagnostics
}

func (r *reporter) report(pos token.Pos, kind Kind, format string, args ...interface{}) {
	r.diags = append(r.diags, Diagnostic{
		Pos:     r.fset.Position(pos),
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}
