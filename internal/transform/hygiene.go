package transform

import (
	"go/ast"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// CollectIdents returns every identifier spelled in files, plus the names
// their unnamed imports bind. Generated names are chosen outside this set.
func CollectIdents(files ...*ast.File) map[string]bool {
	idents := make(map[string]bool)
	for _, f := range files {
		ast.Inspect(f, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.Ident:
				idents[n.Name] = true
			case *ast.ImportSpec:
				if n.Name != nil {
					break
				}
				if p, err := strconv.Unquote(n.Path.Value); err == nil {
					for _, name := range importNames(p) {
						idents[name] = true
					}
				}
			}
			return true
		})
	}
	return idents
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// importNames guesses the package names an import path may bind.
func importNames(importPath string) []string {
	elem := path.Base(importPath)
	if majorVersion.MatchString(elem) {
		if dir := path.Dir(importPath); dir != "." {
			elem = path.Base(dir)
		}
	}
	names := []string{elem}
	if i := strings.IndexByte(elem, '.'); i > 0 {
		names = append(names, elem[:i])
	}
	for _, prefix := range []string{"go-", "go"} {
		if trimmed := strings.TrimPrefix(elem, prefix); trimmed != elem && trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// namer hands out identifiers that collide with nothing reserved and with
// nothing it handed out before.
type namer struct {
	taken map[string]bool
}

func newNamer(sets ...map[string]bool) *namer {
	n := &namer{taken: make(map[string]bool)}
	for _, set := range sets {
		for name := range set {
			n.taken[name] = true
		}
	}
	return n
}

func (n *namer) fresh(base string) string {
	name := base
	for i := 1; n.taken[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	n.taken[name] = true
	return name
}

// bodyScope returns the names fd declares for its body: receiver,
// parameters and named results.
func bodyScope(fd *ast.FuncDecl) map[string]*ast.Ident {
	scope := make(map[string]*ast.Ident)
	for _, fl := range []*ast.FieldList{fd.Recv, fd.Type.Params, fd.Type.Results} {
		if fl == nil {
			continue
		}
		for _, f := range fl.List {
			for _, name := range f.Names {
				if name.Name != "_" {
					scope[name.Name] = name
				}
			}
		}
	}
	return scope
}

// hiddenRefs returns the identifiers type expression e resolves outside
// itself that scope redeclares.
func hiddenRefs(scope map[string]*ast.Ident, e ast.Expr) []string {
	refs := make(map[string]bool)
	typeRefs(e, refs)
	var hidden []string
	for name := range refs {
		if scope[name] != nil {
			hidden = append(hidden, name)
		}
	}
	sort.Strings(hidden)
	return hidden
}

// typeRefs collects qualifiers and type names, skipping selectors and the
// names of fields and parameters inside struct, func and interface types.
func typeRefs(n ast.Node, refs map[string]bool) {
	ast.Inspect(n, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.SelectorExpr:
			typeRefs(n.X, refs)
			return false
		case *ast.Field:
			typeRefs(n.Type, refs)
			return false
		case *ast.Ident:
			refs[n.Name] = true
		}
		return true
	})
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]`)

func sanitize(s string) string {
	return nonIdent.ReplaceAllString(s, "_")
}
