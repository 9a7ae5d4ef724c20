// Package wrap is the runtime half of ctxwrap: the context protocol that user
// types implement and the dispatch engine that sequences their hooks around a
// wrapped function body.
//
// A context type describes what happens before and after a call:
//
//	type Doubler struct{ wrap.NopBefore }
//
//	func (d *Doubler) After(_ *wrap.CallerContext, r *wrap.Result[int]) error {
//		r.Value *= 2
//		return nil
//	}
//
// Functions are wrapped either at build time, by annotating them and compiling
// through the overlay produced by the ctxwrap command:
//
//	//ctxwrap:wrap Doubler
//	func Answer() int { return 21 }
//
// or at run time, by decorating a callable:
//
//	answer := wrap.Func[Doubler]("Answer", func() (int, error) { return 21, nil })
//
// # Activation
//
// Every call constructs a fresh context with new(C), then runs, strictly in
// order: the optional Init, Before, the body, After. A failing Init or Before
// stops the activation before the body runs. A body error is passed to After
// through Result. A body panic skips After and propagates unchanged. An error
// returned by After replaces whatever the body produced.
//
// # Asynchronous functions
//
// A function whose first parameter is a context.Context is asynchronous. The
// AsyncHooks capability receives that context so hooks may block on it, and the
// engine refuses to start the body, or to run After, once the context is done.
package wrap
