package transform

import (
	"fmt"
	"go/ast"
	"strconv"
	"strings"
)

// Shape is the result list of a wrapped function, as far as the runtime cares.
type Shape int

const (
	ShapeVoid       Shape = iota // ()
	ShapeError                   // (error)
	ShapeValue                   // (T)
	ShapeValueError              // (T, error)
)

func (s Shape) String() string {
	switch s {
	case ShapeVoid:
		return "()"
	case ShapeError:
		return "(error)"
	case ShapeValue:
		return "(T)"
	case ShapeValueError:
		return "(T, error)"
	default:
		return "Shape(" + strconv.Itoa(int(s)) + ")"
	}
}

// AnalyzeShape classifies the results of ft. value is the type of the
// non-error result, nil for ShapeVoid and ShapeError.
func AnalyzeShape(ft *ast.FuncType) (shape Shape, value ast.Expr, err error) {
	results := flatten(ft.Results)
	switch len(results) {
	case 0:
		return ShapeVoid, nil, nil
	case 1:
		if isError(results[0]) {
			return ShapeError, nil, nil
		}
		return ShapeValue, results[0], nil
	case 2:
		if isError(results[1]) {
			return ShapeValueError, results[0], nil
		}
	}

	types := make([]string, len(results))
	for i, r := range results {
		types[i] = exprString(r)
	}
	return 0, nil, fmt.Errorf("result list (%s) is not supported; return (T), (T, error), error or nothing",
		strings.Join(types, ", "))
}

func flatten(fields *ast.FieldList) []ast.Expr {
	if fields == nil {
		return nil
	}
	var types []ast.Expr
	for _, f := range fields.List {
		n := len(f.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			types = append(types, f.Type)
		}
	}
	return types
}

func isError(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "error"
}

// contextNames records how a file refers to package context.
type contextNames struct {
	names map[string]bool
	dot   bool
}

func contextImports(file *ast.File) contextNames {
	cn := contextNames{names: make(map[string]bool)}
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != "context" {
			continue
		}
		switch {
		case imp.Name == nil:
			cn.names["context"] = true
		case imp.Name.Name == ".":
			cn.dot = true
		case imp.Name.Name != "_":
			cn.names[imp.Name.Name] = true
		}
	}
	return cn
}

func (cn contextNames) isContext(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.SelectorExpr:
		x, ok := e.X.(*ast.Ident)
		return ok && cn.names[x.Name] && e.Sel.Name == "Context"
	case *ast.Ident:
		return cn.dot && e.Name == "Context"
	}
	return false
}

// IsAsync reports whether ft's first parameter is a context.Context, as
// imported by file.
func IsAsync(file *ast.File, ft *ast.FuncType) bool {
	return contextImports(file).isContext(firstParam(ft))
}

func firstParam(ft *ast.FuncType) ast.Expr {
	if ft.Params == nil || len(ft.Params.List) == 0 {
		return nil
	}
	return ft.Params.List[0].Type
}
