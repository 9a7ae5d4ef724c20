package overlay

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"ctxwrap/internal/logging"
)

// overlaySubcommands are the go subcommands that understand -overlay.
var overlaySubcommands = map[string]bool{
	"build":   true,
	"install": true,
	"list":    true,
	"run":     true,
	"test":    true,
	"vet":     true,
}

// GoArgs returns args with -overlay=<overlayFile> inserted after the go
// subcommand. args[0] is the subcommand.
func GoArgs(overlayFile string, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("overlay: missing go subcommand")
	}
	if !overlaySubcommands[args[0]] {
		return nil, fmt.Errorf("overlay: go %s does not accept -overlay", args[0])
	}
	for _, arg := range args[1:] {
		if arg == "--" {
			break
		}
		if arg == "-overlay" || arg == "--overlay" || strings.HasPrefix(arg, "-overlay=") || strings.HasPrefix(arg, "--overlay=") {
			return nil, fmt.Errorf("overlay: -overlay is set by ctxwrap")
		}
	}

	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], "-overlay="+overlayFile)
	return append(out, args[1:]...), nil
}

// GoRunner runs the go command.
type GoRunner struct {
	Binary string // "" means "go" from PATH
	Dir    string
	Env    []string // nil means the current environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes go with args, pointing it at overlayFile.
func (r *GoRunner) Run(ctx context.Context, overlayFile string, args []string) error {
	full, err := GoArgs(overlayFile, args)
	if err != nil {
		return err
	}
	bin := r.Binary
	if bin == "" {
		bin = "go"
	}

	cmd := exec.CommandContext(ctx, bin, full...)
	cmd.Dir = r.Dir
	cmd.Env = r.Env
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	logging.OverlayDebug("exec %s %s", bin, strings.Join(full, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go %s: %w", args[0], err)
	}
	return nil
}

// RunGo runs `go <args>` with the overlay, wiring output to stdout and stderr.
func RunGo(ctx context.Context, overlayFile string, args []string, stdout, stderr io.Writer) error {
	r := &GoRunner{Stdout: stdout, Stderr: stderr}
	return r.Run(ctx, overlayFile, args)
}
