package transform

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"
)

// DirectiveKind selects the capability a directive asks for.
type DirectiveKind int

const (
	DirectiveWrap  DirectiveKind = iota // synchronous hooks
	DirectiveAsync                      // context-aware hooks
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveWrap:
		return "wrap"
	case DirectiveAsync:
		return "async"
	default:
		return fmt.Sprintf("DirectiveKind(%d)", int(k))
	}
}

// Directive is one parsed //<prefix>:<verb> <Type> comment.
type Directive struct {
	Kind DirectiveKind
	Type ast.Expr // context type as parsed from Text
	Text string   // context type, printed without comments
	Pos  token.Pos
}

// ParseDirective reports whether c is a directive for prefix and, if so,
// parses it. A non-nil error means the comment is a directive but its
// argument is unusable.
func ParseDirective(prefix string, c *ast.Comment) (*Directive, bool, error) {
	lead := "//" + prefix + ":"
	if !strings.HasPrefix(c.Text, lead) {
		return nil, false, nil
	}
	rest := c.Text[len(lead):]

	verb, arg := rest, ""
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		verb, arg = rest[:i], strings.TrimSpace(rest[i+1:])
	}

	d := &Directive{Pos: c.Pos()}
	switch verb {
	case "wrap":
		d.Kind = DirectiveWrap
	case "async":
		d.Kind = DirectiveAsync
	default:
		return nil, true, fmt.Errorf("unknown directive %s%s (want %swrap or %sasync)", lead, verb, lead, lead)
	}

	if arg == "" {
		return nil, true, fmt.Errorf("%s%s requires a context type", lead, verb)
	}
	expr, err := parser.ParseExpr(arg)
	if err != nil {
		return nil, true, fmt.Errorf("%s%s: %q is not a type expression", lead, verb, arg)
	}
	if err := validateContextType(expr); err != nil {
		return nil, true, fmt.Errorf("%s%s: %w", lead, verb, err)
	}
	d.Type = expr
	d.Text = exprString(expr)
	return d, true, nil
}

// validateContextType accepts T, pkg.T and their instantiations.
func validateContextType(e ast.Expr) error {
	switch e := e.(type) {
	case *ast.IndexExpr:
		if err := validateTypeName(e.X); err != nil {
			return err
		}
		return validateTypeArg(e.Index)
	case *ast.IndexListExpr:
		if err := validateTypeName(e.X); err != nil {
			return err
		}
		for _, arg := range e.Indices {
			if err := validateTypeArg(arg); err != nil {
				return err
			}
		}
		return nil
	default:
		return validateTypeName(e)
	}
}

func validateTypeName(e ast.Expr) error {
	switch e := e.(type) {
	case *ast.Ident:
		if e.Name == "_" {
			return fmt.Errorf("_ may only be used as a type argument")
		}
		return nil
	case *ast.SelectorExpr:
		if x, ok := e.X.(*ast.Ident); ok && x.Name != "_" {
			return nil
		}
		return fmt.Errorf("%s is not a qualified type name", exprString(e))
	case *ast.StarExpr:
		return fmt.Errorf("pointer type %s not allowed; name the context type", exprString(e))
	default:
		return fmt.Errorf("%s is not a type name", exprString(e))
	}
}

func validateTypeArg(e ast.Expr) error {
	switch e := e.(type) {
	case *ast.Ident:
		return nil
	case *ast.SelectorExpr, *ast.IndexExpr, *ast.IndexListExpr:
		return validateContextType(e)
	case *ast.StarExpr:
		return validateTypeArg(e.X)
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.InterfaceType, *ast.StructType:
		return nil
	default:
		return fmt.Errorf("type argument %s is not a type", exprString(e))
	}
}

// HasPlaceholder reports whether the context type uses _ for the value type.
func (d *Directive) HasPlaceholder() bool {
	found := false
	ast.Inspect(d.Type, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && id.Name == "_" {
			found = true
		}
		return !found
	})
	return found
}

// Instantiate returns the context type with every _ replaced by value.
func (d *Directive) Instantiate(value string) string {
	if !d.HasPlaceholder() {
		return d.Text
	}
	// Reparse so the stored expression stays untouched.
	expr, err := parser.ParseExpr(d.Text)
	if err != nil {
		return d.Text
	}
	ast.Inspect(expr, func(n ast.Node) bool {
		if id, ok := n.(*ast.Ident); ok && id.Name == "_" {
			id.Name = value
		}
		return true
	})
	return exprString(expr)
}

func exprString(e ast.Node) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), e); err != nil {
		return fmt.Sprintf("%T", e)
	}
	return buf.String()
}
