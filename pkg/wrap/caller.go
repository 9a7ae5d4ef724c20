package wrap

import "strings"

// CallerContext describes the wrapped function. Rewritten code declares one per
// function at package level, so building it costs nothing per call.
type CallerContext struct {
	name      string
	pkg       string
	receiver  string
	signature string
	position  string
	async     bool
}

// CallerOption configures a CallerContext.
type CallerOption func(*CallerContext)

// InPackage records the package the wrapped function lives in.
func InPackage(pkg string) CallerOption {
	return func(c *CallerContext) { c.pkg = pkg }
}

// WithReceiver records the receiver type of a wrapped method, e.g. "*Server".
func WithReceiver(recv string) CallerOption {
	return func(c *CallerContext) { c.receiver = recv }
}

// WithSignature records the printed function type.
func WithSignature(sig string) CallerOption {
	return func(c *CallerContext) { c.signature = sig }
}

// AtPosition records where the function is declared ("file.go:12").
func AtPosition(pos string) CallerOption {
	return func(c *CallerContext) { c.position = pos }
}

// Async marks the wrapped function as taking a context.Context first.
func Async() CallerOption {
	return func(c *CallerContext) { c.async = true }
}

// NewCaller creates the descriptor for the function called name.
func NewCaller(name string, opts ...CallerOption) *CallerContext {
	c := &CallerContext{name: name}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FnName returns the name of the wrapped function as written in source.
func (c *CallerContext) FnName() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Package returns the package name, or "" when unknown.
func (c *CallerContext) Package() string {
	if c == nil {
		return ""
	}
	return c.pkg
}

// Receiver returns the receiver type of a method, or "" for plain functions.
func (c *CallerContext) Receiver() string {
	if c == nil {
		return ""
	}
	return c.receiver
}

// Signature returns the function type as printed from source.
func (c *CallerContext) Signature() string {
	if c == nil {
		return ""
	}
	return c.signature
}

// Position returns the declaration position, or "" when unknown.
func (c *CallerContext) Position() string {
	if c == nil {
		return ""
	}
	return c.position
}

// IsAsync reports whether the function takes a context.Context first.
func (c *CallerContext) IsAsync() bool {
	if c == nil {
		return false
	}
	return c.async
}

// QualifiedName returns pkg.Func or pkg.(*T).Method.
func (c *CallerContext) QualifiedName() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	if c.pkg != "" {
		b.WriteString(c.pkg)
		b.WriteByte('.')
	}
	if c.receiver != "" {
		if strings.HasPrefix(c.receiver, "*") {
			b.WriteString("(" + c.receiver + ")")
		} else {
			b.WriteString(c.receiver)
		}
		b.WriteByte('.')
	}
	b.WriteString(c.name)
	return b.String()
}

// String implements fmt.Stringer.
func (c *CallerContext) String() string {
	return c.QualifiedName()
}
