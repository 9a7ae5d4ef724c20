package main

import (
	"context"
	"fmt"
	"go/format"
	"os"
	"path/filepath"

	"ctxwrap/internal/build"
	"ctxwrap/internal/config"
	"ctxwrap/internal/diff"
	"ctxwrap/internal/logging"
	"ctxwrap/internal/overlay"
	"ctxwrap/internal/transform"

	"github.com/spf13/cobra"
)

func (c *cli) overlayCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "overlay [packages]",
		Short: "Rewrite annotated packages and write overlay.json",
		Long: `Rewrites every annotated file in the given packages and writes overlay.json.
Patterns are directories; dir/... includes every directory below dir.
No pattern means the workspace directory.

Example:
  ctxwrap overlay ./...
  go build -overlay .ctxwrap/overlay.json ./...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := c.builder()
			if err != nil {
				return err
			}
			res, err := b.Build(commandContext(cmd), args)
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), c.workspace, res, list)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List every wrapped function")
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [packages]",
		Short: "Report directive errors without writing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := c.builder()
			if err != nil {
				return err
			}
			res, err := b.Check(commandContext(cmd), args)
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), c.workspace, res, true)
			return nil
		},
	}
}

func (c *cli) printCmd() *cobra.Command {
	var gofmt, showDiff bool
	cmd := &cobra.Command{
		Use:   "print <file.go>",
		Short: "Print the rewritten form of one file",
		Long: `Prints the rewritten source of one file to stdout.

With --format the output is gofmt'ed for reading; formatted output no longer
keeps the original line numbers. With --diff only the changed lines are shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !filepath.IsAbs(path) {
				path = filepath.Join(c.workspace, path)
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out, err := transform.RewriteSource(path, src, c.transformOptions())
			if err != nil {
				return err
			}
			if showDiff {
				renderDiff(cmd.OutOrStdout(), diff.Compute(args[0], args[0]+" (rewritten)", string(src), string(out.Source)))
				return nil
			}
			text := out.Source
			if gofmt {
				if text, err = format.Source(text); err != nil {
					return fmt.Errorf("format %s: %w", args[0], err)
				}
			}
			_, err = cmd.OutOrStdout().Write(text)
			return err
		},
	}
	cmd.Flags().BoolVar(&gofmt, "format", false, "gofmt the rewritten source")
	cmd.Flags().BoolVar(&showDiff, "diff", false, "Show a diff against the original instead of the whole file")
	cmd.MarkFlagsMutuallyExclusive("format", "diff")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [packages]",
		Short: "Rebuild the overlay whenever a Go file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := c.builder()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(commandContext(cmd))
			defer cancel()

			out := cmd.OutOrStdout()
			w, err := overlay.NewWatcher(b, args, c.cfg.GetDebounce(), func(res *overlay.Result, err error) {
				if err != nil {
					fmt.Fprintln(out, renderError(err))
					return
				}
				renderResult(out, c.workspace, res, false)
			})
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("watching %d director(ies); interrupt to stop", len(w.GetWatchedDirs()))))

			select {
			case <-ctx.Done():
			case <-w.Done():
			}
			stats := w.GetStats()
			logging.Watch("%d rebuild(s), %d failed", stats.Rebuilds, stats.Failures)
			return nil
		},
	}
}

func (c *cli) goCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "go <build|install|list|run|test|vet> [args]",
		Short: "Build the overlay for the workspace and run a go command with it",
		Long: `Builds the overlay for the workspace and runs the go command with -overlay.
Every argument after "go" is passed to the go command unchanged, so ctxwrap's
own flags cannot be given here; use the config file or CTXWRAP_* variables.
Flags and environment from the config's go section are added.

Example:
  ctxwrap go test -race ./...`,
		DisableFlagParsing: true,
		Args:               cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			args = build.Args(c.cfg.Go, args)
			if _, err := overlay.GoArgs("", args); err != nil {
				return err
			}
			b, err := c.builder()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(commandContext(cmd))
			defer cancel()

			res, err := b.Build(ctx, []string{"./..."})
			if err != nil {
				return err
			}
			logging.CLIDebug("overlay ready: %d function(s) wrapped", res.Wrapped())

			runner := &overlay.GoRunner{
				Dir:    c.workspace,
				Env:    build.Env(c.cfg.Go),
				Stdin:  cmd.InOrStdin(),
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			}
			return runner.Run(ctx, res.OverlayFile, args)
		},
	}
}

func (c *cli) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.DefaultConfigFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				path = filepath.Join(c.workspace, config.DefaultConfigFile)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("wrote")+" "+path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

// commandContext returns cmd's context or Background.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
