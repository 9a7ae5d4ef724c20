package transform

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"ctxwrap/internal/logging"
)

const (
	DefaultPrefix        = "ctxwrap"
	DefaultRuntimeImport = "ctxwrap/pkg/wrap"
	DefaultAlias         = "ctxwrap"
)

// Options control how directives are recognised and what the rewritten file imports.
type Options struct {
	Prefix        string          // directive prefix, "ctxwrap" for //ctxwrap:wrap
	RuntimeImport string          // import path of the runtime package
	Alias         string          // preferred import name for the runtime package
	Reserved      map[string]bool // identifiers used anywhere in the package
}

func (o Options) withDefaults() (Options, error) {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	if o.RuntimeImport == "" {
		o.RuntimeImport = DefaultRuntimeImport
	}
	if o.Alias == "" {
		o.Alias = DefaultAlias
	}
	if !token.IsIdentifier(o.Alias) || o.Alias == "_" {
		return o, fmt.Errorf("transform: import alias %q is not an identifier", o.Alias)
	}
	if strings.ContainsAny(o.Prefix, " \t:") {
		return o, fmt.Errorf("transform: directive prefix %q contains a separator", o.Prefix)
	}
	return o, nil
}

// Wrapped describes one rewritten function.
type Wrapped struct {
	Name      string
	Receiver  string // receiver type as written, "" for functions
	Kind      DirectiveKind
	Context   string // context type with _ instantiated
	Shape     Shape
	Async     bool // first parameter is a context.Context
	CallerVar string
	Pos       token.Position
}

// QualifiedName returns Name or Receiver.Name.
func (w Wrapped) QualifiedName() string {
	if w.Receiver == "" {
		return w.Name
	}
	return "(" + w.Receiver + ")." + w.Name
}

// Output is the result of rewriting one file.
type Output struct {
	Filename string
	Source   []byte
	Wrapped  []Wrapped
	Alias    string // runtime import name, "" when nothing was wrapped
}

// Changed reports whether Source differs from the input.
func (o *Output) Changed() bool {
	return len(o.Wrapped) > 0
}

// RewriteSource parses src and rewrites it. It is Rewrite for callers that do
// not hold an AST; identifiers of the file itself are always reserved.
func RewriteSource(filename string, src []byte, opts Options) (*Output, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("transform: parse %s: %w", filename, err)
	}
	return Rewrite(fset, file, src, opts)
}

// Rewrite rewrites every annotated function of file. src must be the exact
// text file was parsed from, with comments.
//
// The returned error is a Diagnostics value when the file has directive
// problems; in that case no Output is produced.
func Rewrite(fset *token.FileSet, file *ast.File, src []byte, opts Options) (*Output, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	tf := fset.File(file.Package)
	if tf == nil {
		return nil, errors.New("transform: file is not in the file set")
	}
	if tf.Size() != len(src) {
		return nil, fmt.Errorf("transform: %s: source is %d bytes but was parsed from %d", tf.Name(), len(src), tf.Size())
	}

	r := &rewriter{
		fset:  fset,
		tf:    tf,
		file:  file,
		src:   src,
		opts:  opts,
		ctx:   contextImports(file),
		names: newNamer(opts.Reserved, CollectIdents(file)),
		rep:   &reporter{fset: fset},
	}

	targets := r.collect()
	out := &Output{Filename: tf.Name(), Source: src}
	if len(targets) == 0 {
		if err := r.rep.diags.Err(); err != nil {
			return nil, err
		}
		return out, nil
	}

	r.alias = r.names.fresh(opts.Alias)
	for _, t := range targets {
		r.rewriteFunc(t.fn, t.dir)
	}
	if err := r.rep.diags.Err(); err != nil {
		return nil, err
	}

	r.edits = append(r.edits, edit{
		off:  tf.Offset(file.Name.End()),
		end:  tf.Offset(file.Name.End()),
		text: fmt.Sprintf("; import %s %s", r.alias, strconv.Quote(opts.RuntimeImport)),
	})
	r.edits = append(r.edits, edit{off: len(src), end: len(src), text: r.callerDecls()})

	rewritten, err := applyEdits(src, r.edits)
	if err != nil {
		return nil, err
	}
	out.Source = rewritten
	out.Wrapped = r.wrapped
	out.Alias = r.alias

	logging.TransformDebug("rewrote %d function(s) in %s", len(r.wrapped), filepath.Base(tf.Name()))
	return out, nil
}

type target struct {
	fn  *ast.FuncDecl
	dir *Directive
}

type rewriter struct {
	fset  *token.FileSet
	tf    *token.File
	file  *ast.File
	src   []byte
	opts  Options
	ctx   contextNames
	names *namer
	rep   *reporter

	alias   string
	edits   []edit
	wrapped []Wrapped
	callers []string
	aliases []string
}

// collect finds every directive comment and pairs it with its function.
func (r *rewriter) collect() []target {
	owners := make(map[*ast.Comment]*ast.FuncDecl)
	for _, decl := range r.file.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && fd.Doc != nil {
			for _, c := range fd.Doc.List {
				owners[c] = fd
			}
		}
	}

	found := make(map[*ast.FuncDecl]*Directive)
	var targets []target
	for _, cg := range r.file.Comments {
		for _, c := range cg.List {
			d, ok, err := ParseDirective(r.opts.Prefix, c)
			if !ok {
				continue
			}
			fd := owners[c]
			if fd == nil {
				r.rep.report(c.Pos(), KindMisplaced, "%s must be in the doc comment of a function declaration", directiveHead(c.Text))
				continue
			}
			if err != nil {
				r.rep.report(c.Pos(), KindMalformed, "%v", err)
				continue
			}
			if first, dup := found[fd]; dup {
				r.rep.report(c.Pos(), KindDuplicate, "%s has more than one %s directive (first at line %d)",
					funcName(fd), r.opts.Prefix, r.fset.Position(first.Pos).Line)
				continue
			}
			found[fd] = d
			targets = append(targets, target{fn: fd, dir: d})
		}
	}

	sort.SliceStable(targets, func(i, j int) bool { return targets[i].fn.Pos() < targets[j].fn.Pos() })
	return targets
}

func (r *rewriter) rewriteFunc(fd *ast.FuncDecl, d *Directive) {
	if fd.Body == nil {
		r.rep.report(fd.Name.Pos(), KindNoBody, "%s has no body to wrap", funcName(fd))
		return
	}
	shape, value, err := AnalyzeShape(fd.Type)
	if err != nil {
		r.rep.report(fd.Type.Results.Pos(), KindUnsupported, "cannot wrap %s: %v", funcName(fd), err)
		return
	}
	async := r.ctx.isContext(firstParam(fd.Type))
	if d.Kind == DirectiveAsync && !async {
		r.rep.report(d.Pos, KindAsyncOnSync,
			"//%s:async requires %s to take a context.Context as its first parameter; use //%s:wrap for synchronous functions",
			r.opts.Prefix, funcName(fd), r.opts.Prefix)
		return
	}

	valueType := r.alias + ".Void"
	if value != nil {
		valueType = r.oneLine(value)
	}
	ctxType := d.Instantiate(valueType)
	ctxRef, results, ok := r.hoist(fd, ctxType)
	if !ok {
		return
	}
	caller := r.callerVar(fd)

	args := caller
	runner := "RunSync"
	if d.Kind == DirectiveAsync {
		runner = "RunAsync"
		args = r.contextParam(fd) + ", " + caller
	}
	call := fmt.Sprintf("%s.%s[%s](%s, ", r.alias, runner, ctxRef, args)

	var prefix, suffix string
	switch shape {
	case ShapeValueError:
		prefix = fmt.Sprintf(" return %sfunc() %s {", call, results)
		suffix = "}) "
	case ShapeValue:
		prefix = fmt.Sprintf(" return %[1]s.Must(%[2]s%[1]s.Body(func() %[3]s {", r.alias, call, results)
		suffix = "}))) "
	case ShapeError:
		prefix = fmt.Sprintf(" return %[1]s.ErrOf(%[2]s%[1]s.ErrBody(func() %[3]s {", r.alias, call, results)
		suffix = "}))) "
	case ShapeVoid:
		prefix = fmt.Sprintf(" %[1]s.MustVoid(%[2]s%[1]s.VoidBody(func() {", r.alias, call)
		suffix = "}))) "
	}

	lbrace := r.tf.Offset(fd.Body.Lbrace) + 1
	rbrace := r.tf.Offset(fd.Body.Rbrace)
	r.edits = append(r.edits,
		edit{off: lbrace, end: lbrace, text: prefix},
		edit{off: rbrace, end: rbrace, text: suffix},
	)

	r.callers = append(r.callers, fmt.Sprintf("\t%s = %s", caller, r.newCaller(fd, async)))
	w := Wrapped{
		Name:      fd.Name.Name,
		Kind:      d.Kind,
		Context:   ctxType,
		Shape:     shape,
		Async:     async,
		CallerVar: caller,
		Pos:       r.fset.Position(fd.Pos()),
	}
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		recv := fd.Recv.List[0].Type
		w.Receiver = r.text(recv.Pos(), recv.End())
	}
	r.wrapped = append(r.wrapped, w)
}

// contextParam returns the name of fd's context parameter, naming it first
// when the declaration left it unnamed or blank.
func (r *rewriter) contextParam(fd *ast.FuncDecl) string {
	params := fd.Type.Params.List
	first := params[0]
	if len(first.Names) > 0 && first.Names[0].Name != "_" {
		return first.Names[0].Name
	}

	name := r.names.fresh(r.opts.Alias + "Ctx")
	if len(first.Names) > 0 {
		blank := first.Names[0]
		r.edits = append(r.edits, edit{off: r.tf.Offset(blank.Pos()), end: r.tf.Offset(blank.End()), text: name})
		return name
	}

	// Go does not mix named and unnamed parameters, so name them all.
	for i, p := range params {
		off := r.tf.Offset(p.Type.Pos())
		text := "_ "
		if i == 0 {
			text = name + " "
		}
		r.edits = append(r.edits, edit{off: off, end: off, text: text})
	}
	return name
}

// hoist returns the context type and result list to spell inside fd's body.
// Type expressions naming something that a receiver, parameter or named
// result hides in the body are replaced by package-level aliases.
func (r *rewriter) hoist(fd *ast.FuncDecl, ctxType string) (ctxRef, results string, ok bool) {
	scope := bodyScope(fd)
	if len(scope) == 0 {
		return ctxType, r.resultsText(fd.Type), true
	}
	ctxExpr, err := parser.ParseExpr(ctxType)
	if err != nil {
		r.rep.report(fd.Name.Pos(), KindMalformed, "cannot wrap %s: context type %s: %v", funcName(fd), ctxType, err)
		return "", "", false
	}

	var fields []*ast.Field
	if fd.Type.Results != nil {
		fields = fd.Type.Results.List
	}
	ctxHidden := hiddenRefs(scope, ctxExpr)
	hidden := append([]string(nil), ctxHidden...)
	fieldHidden := make([]bool, len(fields))
	for i, f := range fields {
		h := hiddenRefs(scope, f.Type)
		fieldHidden[i] = len(h) > 0
		hidden = append(hidden, h...)
	}
	if len(hidden) == 0 {
		return ctxType, r.resultsText(fd.Type), true
	}

	sort.Strings(hidden)
	shadow := scope[hidden[0]]
	if hasRecvTypeParams(fd) {
		r.rep.report(shadow.Pos(), KindUnsupported,
			"cannot wrap %s: %s shadows a name used in its context or result types; rename it", funcName(fd), shadow.Name)
		return "", "", false
	}
	tpDecl, tpArgs, ok := r.typeParams(fd.Type.TypeParams)
	if !ok {
		r.rep.report(shadow.Pos(), KindUnsupported,
			"cannot wrap %s: %s shadows a name used in its types and blank type parameters cannot be forwarded; rename it",
			funcName(fd), shadow.Name)
		return "", "", false
	}

	key := r.funcKey(fd)
	ctxRef = ctxType
	if len(ctxHidden) > 0 {
		name := r.names.fresh(r.opts.Alias + "Context_" + key)
		r.aliases = append(r.aliases, fmt.Sprintf("\t%s%s = %s", name, tpDecl, ctxType))
		ctxRef = name + tpArgs
	}

	parts := make([]string, len(fields))
	named := false
	for i, f := range fields {
		typ := r.oneLine(f.Type)
		if fieldHidden[i] {
			name := r.names.fresh(fmt.Sprintf("%sResult_%s_%d", r.opts.Alias, key, i))
			r.aliases = append(r.aliases, fmt.Sprintf("\t%s%s = %s", name, tpDecl, typ))
			typ = name + tpArgs
		}
		if len(f.Names) > 0 {
			named = true
			typ = identList(f.Names) + " " + typ
		}
		parts[i] = typ
	}
	results = strings.Join(parts, ", ")
	if named || len(parts) > 1 {
		results = "(" + results + ")"
	}
	logging.TransformDebug("%s: %s shadowed in the body, types hoisted to package level", funcName(fd), strings.Join(hidden, ", "))
	return ctxRef, results, true
}

// typeParams returns the declaration and instantiation forms of a type
// parameter list, "[K comparable, V any]" and "[K, V]".
func (r *rewriter) typeParams(tp *ast.FieldList) (decl, args string, ok bool) {
	if tp == nil || len(tp.List) == 0 {
		return "", "", true
	}
	var decls, names []string
	for _, f := range tp.List {
		for _, n := range f.Names {
			if n.Name == "_" {
				return "", "", false
			}
		}
		decls = append(decls, identList(f.Names)+" "+r.oneLine(f.Type))
		for _, n := range f.Names {
			names = append(names, n.Name)
		}
	}
	return "[" + strings.Join(decls, ", ") + "]", "[" + strings.Join(names, ", ") + "]", true
}

// funcKey names fd in generated identifiers.
func (r *rewriter) funcKey(fd *ast.FuncDecl) string {
	key := fd.Name.Name
	if recv := receiverBase(fd); recv != "" {
		key = recv + "_" + key
	}
	if fd.Recv == nil && (fd.Name.Name == "init" || fd.Name.Name == "_") {
		pos := r.fset.Position(fd.Pos())
		file := strings.TrimSuffix(filepath.Base(pos.Filename), ".go")
		key += "_" + sanitize(file) + "_" + strconv.Itoa(pos.Line)
	}
	return key
}

func (r *rewriter) callerVar(fd *ast.FuncDecl) string {
	return r.names.fresh(r.opts.Alias + "Caller_" + r.funcKey(fd))
}

func (r *rewriter) newCaller(fd *ast.FuncDecl, async bool) string {
	pos := r.fset.Position(fd.Pos())
	opts := []string{
		fmt.Sprintf("%s.InPackage(%s)", r.alias, strconv.Quote(r.file.Name.Name)),
	}
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		recv := fd.Recv.List[0].Type
		opts = append(opts, fmt.Sprintf("%s.WithReceiver(%s)", r.alias, strconv.Quote(r.text(recv.Pos(), recv.End()))))
	}
	opts = append(opts,
		fmt.Sprintf("%s.WithSignature(%s)", r.alias, strconv.Quote(signature(fd))),
		fmt.Sprintf("%s.AtPosition(%s)", r.alias, strconv.Quote(fmt.Sprintf("%s:%d", filepath.Base(pos.Filename), pos.Line))),
	)
	if async {
		opts = append(opts, r.alias+".Async()")
	}
	return fmt.Sprintf("%s.NewCaller(%s, %s)", r.alias, strconv.Quote(fd.Name.Name), strings.Join(opts, ", "))
}

func (r *rewriter) callerDecls() string {
	var b strings.Builder
	if len(r.src) > 0 && r.src[len(r.src)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString("\nvar (\n")
	for _, line := range r.callers {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(")\n")
	if len(r.aliases) > 0 {
		b.WriteString("\ntype (\n")
		for _, line := range r.aliases {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString(")\n")
	}
	return b.String()
}

// resultsText returns the result list as written, names included. Lists
// spanning several lines are reprinted on one so that no line shifts.
func (r *rewriter) resultsText(ft *ast.FuncType) string {
	res := ft.Results
	if res == nil || len(res.List) == 0 {
		return ""
	}
	from, to := res.Pos(), res.End()
	if res.Opening.IsValid() {
		from, to = res.Opening, res.Closing+1
	}
	if text := r.text(from, to); !strings.Contains(text, "\n") {
		return text
	}
	fn := exprString(&ast.FuncType{Params: &ast.FieldList{}, Results: res})
	return strings.TrimPrefix(collapse(fn), "func() ")
}

func (r *rewriter) oneLine(e ast.Expr) string {
	if text := r.text(e.Pos(), e.End()); !strings.Contains(text, "\n") {
		return text
	}
	return collapse(exprString(e))
}

func (r *rewriter) text(from, to token.Pos) string {
	return string(r.src[r.tf.Offset(from):r.tf.Offset(to)])
}

func receiverBase(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	t := fd.Recv.List[0].Type
	for {
		switch x := t.(type) {
		case *ast.StarExpr:
			t = x.X
		case *ast.ParenExpr:
			t = x.X
		case *ast.IndexExpr:
			t = x.X
		case *ast.IndexListExpr:
			t = x.X
		case *ast.Ident:
			return x.Name
		default:
			return ""
		}
	}
}

func hasRecvTypeParams(fd *ast.FuncDecl) bool {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return false
	}
	t := fd.Recv.List[0].Type
	for {
		switch x := t.(type) {
		case *ast.StarExpr:
			t = x.X
		case *ast.ParenExpr:
			t = x.X
		case *ast.IndexExpr, *ast.IndexListExpr:
			return true
		default:
			return false
		}
	}
}

func identList(names []*ast.Ident) string {
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = n.Name
	}
	return strings.Join(s, ", ")
}

func funcName(fd *ast.FuncDecl) string {
	if recv := receiverBase(fd); recv != "" {
		return recv + "." + fd.Name.Name
	}
	return fd.Name.Name
}

// signature prints fd's type on one line, without comments.
func signature(fd *ast.FuncDecl) string {
	var buf bytes.Buffer
	cfg := printer.Config{Mode: printer.RawFormat}
	if err := cfg.Fprint(&buf, token.NewFileSet(), fd.Type); err != nil {
		return ""
	}
	return collapse(buf.String())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func directiveHead(text string) string {
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		return text[:i]
	}
	return text
}
