// Package overlay turns annotated packages into a go build -overlay file.
//
// Builder finds packages, rewrites their annotated files with package
// transform and writes the results next to an overlay.json that maps every
// original file to its rewritten copy. The sources on disk are never touched.
package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"ctxwrap/internal/logging"
	"ctxwrap/internal/transform"

	"golang.org/x/sync/errgroup"
)

// File is the JSON document read by go build -overlay.
type File struct {
	Replace map[string]string `json:"Replace"`
}

// Options configure a Builder.
type Options struct {
	Transform    transform.Options
	Dir          string // directory patterns are relative to; "" means the working directory
	OutputDir    string // where rewritten files go, relative to Dir when not absolute
	OverlayFile  string // overlay.json path; "" means <OutputDir>/overlay.json
	IncludeTests bool
	Exclude      []string // glob patterns matched against directory base names
	Workers      int
}

// Rewritten is one file that needed rewriting.
type Rewritten struct {
	Original  string
	Rewritten string // "" when the build did not write files
	Wrapped   []transform.Wrapped
}

// Result summarises a build.
type Result struct {
	OverlayFile string // "" when nothing was written
	Packages    int
	Scanned     int
	Files       []Rewritten // sorted by Original
}

// Wrapped returns the number of functions rewritten.
func (r *Result) Wrapped() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Wrapped)
	}
	return n
}

// Builder rewrites packages into an overlay.
type Builder struct {
	opts Options
}

// NewBuilder creates a Builder. Relative directories in opts are resolved
// against opts.Dir once, here.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("overlay: %w", err)
		}
		opts.Dir = wd
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	opts.Dir = dir

	if opts.OutputDir == "" {
		opts.OutputDir = ".ctxwrap"
	}
	opts.OutputDir = resolve(dir, opts.OutputDir)
	if opts.OverlayFile == "" {
		opts.OverlayFile = filepath.Join(opts.OutputDir, "overlay.json")
	}
	opts.OverlayFile = resolve(dir, opts.OverlayFile)
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	for _, pattern := range opts.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("overlay: exclude pattern %q: %w", pattern, err)
		}
	}
	return &Builder{opts: opts}, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// OverlayFile returns the absolute path of overlay.json.
func (b *Builder) OverlayFile() string {
	return b.opts.OverlayFile
}

// Build rewrites every package matched by patterns and writes the overlay.
// When any file has diagnostics the error is a transform.Diagnostics holding
// all of them and nothing is written.
func (b *Builder) Build(ctx context.Context, patterns []string) (*Result, error) {
	return b.run(ctx, patterns, true)
}

// Check is Build without writing anything.
func (b *Builder) Check(ctx context.Context, patterns []string) (*Result, error) {
	return b.run(ctx, patterns, false)
}

type job struct {
	fset *token.FileSet
	file *ast.File
	path string
	src  []byte
	pkg  *pkg
}

type pkg struct {
	dir      string
	reserved map[string]bool
}

func (b *Builder) run(ctx context.Context, patterns []string, write bool) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryOverlay, "overlay build")
	defer timer.Stop()

	dirs, err := b.Packages(patterns)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, dir := range dirs {
		pj, err := b.parseDir(dir)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, pj...)
	}
	logging.OverlayDebug("scanning %d file(s) in %d package(s)", len(jobs), len(dirs))

	outputs := make([]*transform.Output, len(jobs))
	var (
		mu    sync.Mutex
		diags transform.Diagnostics
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			opts := b.opts.Transform
			opts.Reserved = j.pkg.reserved
			out, err := transform.Rewrite(j.fset, j.file, j.src, opts)
			var ds transform.Diagnostics
			if errors.As(err, &ds) {
				mu.Lock()
				diags = append(diags, ds...)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("overlay: rewrite %s: %w", j.path, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := diags.Err(); err != nil {
		logging.OverlayError("%d diagnostic(s), overlay not written", len(diags))
		return nil, err
	}

	res := &Result{Packages: len(dirs), Scanned: len(jobs)}
	for i, out := range outputs {
		if out.Changed() {
			res.Files = append(res.Files, Rewritten{Original: jobs[i].path, Wrapped: out.Wrapped})
		}
	}
	if !write {
		return res, nil
	}
	if err := b.write(res, outputs); err != nil {
		return nil, err
	}
	logging.Overlay("wrapped %d function(s) in %d file(s); overlay at %s", res.Wrapped(), len(res.Files), res.OverlayFile)
	return res, nil
}

func (b *Builder) write(res *Result, outputs []*transform.Output) error {
	overlay := File{Replace: make(map[string]string)}

	changed := 0
	for _, out := range outputs {
		if !out.Changed() {
			continue
		}
		f := &res.Files[changed]
		changed++

		target := filepath.Join(b.opts.OutputDir, b.mirror(f.Original))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
		if err := os.WriteFile(target, out.Source, 0644); err != nil {
			return fmt.Errorf("overlay: write %s: %w", target, err)
		}
		f.Rewritten = target
		overlay.Replace[f.Original] = target
	}

	data, err := json.MarshalIndent(overlay, "", "  ")
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	if err := writeAtomic(b.opts.OverlayFile, append(data, '\n')); err != nil {
		return err
	}
	res.OverlayFile = b.opts.OverlayFile
	return nil
}

// mirror maps an original file to its relative location under the output dir.
func (b *Builder) mirror(original string) string {
	rel, err := filepath.Rel(b.opts.Dir, original)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		vol := filepath.VolumeName(original)
		return filepath.Join("_abs", sanitizeVolume(vol), strings.TrimPrefix(original, vol))
	}
	return rel
}

func sanitizeVolume(vol string) string {
	return strings.NewReplacer(":", "", `\`, "_", "/", "_").Replace(vol)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".overlay-*.json")
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("overlay: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("overlay: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("overlay: write %s: %w", path, err)
	}
	return nil
}

// parseDir parses the Go files of one directory into rewrite jobs sharing a
// reserved-identifier set.
func (b *Builder) parseDir(dir string) ([]job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}

	fset := token.NewFileSet()
	p := &pkg{dir: dir}
	var jobs []job
	var files []*ast.File
	for _, e := range entries {
		if e.IsDir() || !b.isSource(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("overlay: %w", err)
		}
		file, err := parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("overlay: parse %s: %w", path, err)
		}
		files = append(files, file)
		jobs = append(jobs, job{fset: fset, file: file, path: path, src: src, pkg: p})
	}
	p.reserved = transform.CollectIdents(files...)
	return jobs, nil
}

func (b *Builder) isSource(name string) bool {
	if !strings.HasSuffix(name, ".go") || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return false
	}
	return b.opts.IncludeTests || !strings.HasSuffix(name, "_test.go")
}

// Packages expands patterns into sorted, absolute package directories.
// "dir/..." matches dir and every directory below it that holds Go files;
// an empty pattern list means ".".
func (b *Builder) Packages(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, pattern := range patterns {
		root, recursive := strings.CutSuffix(filepath.ToSlash(pattern), "...")
		if recursive {
			root = strings.TrimSuffix(root, "/")
			if root == "" {
				root = "."
			}
		}
		root = resolve(b.opts.Dir, filepath.FromSlash(root))

		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("overlay: pattern %q: %w", pattern, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("overlay: pattern %q is not a directory", pattern)
		}

		if !recursive {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && b.skipDir(path, d.Name()) {
				return filepath.SkipDir
			}
			if b.hasSources(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("overlay: walk %s: %w", root, err)
		}
	}

	sort.Strings(dirs)
	return dirs, nil
}

func (b *Builder) skipDir(path, name string) bool {
	if name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	if path == b.opts.OutputDir {
		return true
	}
	for _, pattern := range b.opts.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (b *Builder) hasSources(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && b.isSource(e.Name()) {
			return true
		}
	}
	return false
}
