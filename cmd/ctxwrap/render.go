package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"ctxwrap/internal/diff"
	"ctxwrap/internal/overlay"
	"ctxwrap/internal/transform"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorColor   = lipgloss.Color("#e53935")
	successColor = lipgloss.Color("#8BC34A")
	infoColor    = lipgloss.Color("#2196F3")

	errorStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	posStyle   = lipgloss.NewStyle().Foreground(infoColor)
	nameStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Faint(true)

	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
)

// renderResult prints a one-line summary and, with list, every wrapped function.
func renderResult(w io.Writer, base string, res *overlay.Result, list bool) {
	summary := fmt.Sprintf("wrapped %d function(s) in %d file(s) across %d package(s)",
		res.Wrapped(), len(res.Files), res.Packages)
	if res.OverlayFile != "" {
		summary += mutedStyle.Render(" -> " + relPath(base, res.OverlayFile))
	}
	fmt.Fprintln(w, okStyle.Render("ok")+" "+summary)

	if !list {
		return
	}
	for _, f := range res.Files {
		for _, wr := range f.Wrapped {
			pos := fmt.Sprintf("%s:%d", relPath(base, wr.Pos.Filename), wr.Pos.Line)
			fmt.Fprintf(w, "  %s  %s  %s\n",
				posStyle.Render(pos),
				nameStyle.Render(wr.QualifiedName()),
				mutedStyle.Render(describe(wr)))
		}
	}
}

func describe(w transform.Wrapped) string {
	return fmt.Sprintf("%s %s %s", w.Kind, w.Context, w.Shape)
}

// renderError formats err for the terminal. Diagnostics get one line each
// followed by a count.
func renderError(err error) string {
	var diags transform.Diagnostics
	if !errors.As(err, &diags) {
		return errorStyle.Render("error:") + " " + err.Error()
	}

	var b strings.Builder
	for _, d := range diags {
		if d.Pos.IsValid() {
			b.WriteString(posStyle.Render(d.Pos.String()) + ": ")
		}
		b.WriteString(d.Message)
		b.WriteString(mutedStyle.Render(" [" + string(d.Kind) + "]"))
		b.WriteByte('\n')
	}
	b.WriteString(errorStyle.Render(fmt.Sprintf("%d error(s)", len(diags))))
	return b.String()
}

// renderDiff prints d in unified format with added and removed lines coloured.
func renderDiff(w io.Writer, d *diff.FileDiff) {
	if d.Empty() {
		fmt.Fprintln(w, mutedStyle.Render("no directives; file unchanged"))
		return
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("--- %s\n+++ %s", d.OldPath, d.NewPath)))
	for _, h := range d.Hunks {
		fmt.Fprintln(w, posStyle.Render(h.Header()))
		for _, l := range h.Lines {
			switch l.Type {
			case diff.LineAdded:
				fmt.Fprintln(w, addedStyle.Render("+"+l.Content))
			case diff.LineRemoved:
				fmt.Fprintln(w, removedStyle.Render("-"+l.Content))
			default:
				fmt.Fprintln(w, " "+l.Content)
			}
		}
	}
	added, removed := d.Stats()
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d line(s) changed, %d added", removed, added-removed)))
}

// exitCode mirrors the go command's exit status when it was the one that failed.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}

func relPath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
