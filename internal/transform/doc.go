// Package transform rewrites functions annotated with ctxwrap directives.
//
// A directive sits in a function's doc comment:
//
//	//ctxwrap:wrap Timer
//	func Load(path string) ([]byte, error) { ... }
//
//	//ctxwrap:async Tracer[_]
//	func Fetch(ctx context.Context, id string) (*Item, error) { ... }
//
// Rewrite produces a replacement file in which each annotated body delegates
// to the runtime package (ctxwrap/pkg/wrap) with the original statements moved
// verbatim into a closure. Edits are spliced into the source text rather than
// reprinted, so every original line keeps its number and compiler errors in
// the rewritten file still point at the user's code.
//
// Problems are reported as Diagnostics, never silently skipped.
package transform
