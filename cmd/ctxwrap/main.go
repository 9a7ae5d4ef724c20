// Command ctxwrap rewrites functions annotated with //ctxwrap:wrap and
// //ctxwrap:async into a go build overlay.
//
//	ctxwrap go build ./...
//	ctxwrap go test ./...
//	ctxwrap overlay ./... && go build -overlay .ctxwrap/overlay.json ./...
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ctxwrap/internal/config"
	"ctxwrap/internal/logging"
	"ctxwrap/internal/overlay"
	"ctxwrap/internal/transform"
	"ctxwrap/pkg/wrap"

	"github.com/spf13/cobra"
)

// cli holds global flags and the state PersistentPreRunE prepares for
// subcommands.
type cli struct {
	configPath string
	workspace  string
	verbose    bool
	outputDir  string
	workers    int

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "ctxwrap",
		Short: "Wrap annotated Go functions with before/after hooks at build time",
		Long: `ctxwrap finds functions annotated with

  //ctxwrap:wrap Ctx      synchronous hooks
  //ctxwrap:async Ctx     asynchronous hooks; the function takes a context.Context first

and rewrites their bodies to run inside a fresh Ctx per call. Rewritten files
are written next to an overlay.json for go build -overlay; sources are never
modified and line numbers are preserved.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (default: <workspace>/"+config.DefaultConfigFile+")")
	root.PersistentFlags().StringVarP(&c.workspace, "workspace", "w", "", "Workspace directory (default: current)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&c.outputDir, "out", "", "Output directory for rewritten files (overrides config)")
	root.PersistentFlags().IntVar(&c.workers, "workers", 0, "Files rewritten concurrently (overrides config)")

	root.AddCommand(
		c.overlayCmd(),
		c.checkCmd(),
		c.printCmd(),
		c.watchCmd(),
		c.goCmd(),
		c.initCmd(),
	)
	return root
}

// setup loads configuration and installs logging.
func (c *cli) setup() error {
	if c.workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		c.workspace = wd
	}
	ws, err := filepath.Abs(c.workspace)
	if err != nil {
		return err
	}
	c.workspace = ws

	path := c.configPath
	if path == "" {
		path = filepath.Join(c.workspace, config.DefaultConfigFile)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if c.outputDir != "" {
		cfg.OutputDir = c.outputDir
	}
	if c.workers > 0 {
		cfg.Workers = c.workers
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	if err := logging.Initialize(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return err
	}
	wrap.SetLogger(logging.Base())

	logging.Boot("config %s: prefix=%s runtime=%s out=%s", path, cfg.DirectivePrefix, cfg.RuntimeImport, cfg.OutputDir)
	c.cfg = cfg
	return nil
}

func (c *cli) transformOptions() transform.Options {
	return transform.Options{
		Prefix:        c.cfg.DirectivePrefix,
		RuntimeImport: c.cfg.RuntimeImport,
		Alias:         c.cfg.ImportAlias,
	}
}

func (c *cli) builder() (*overlay.Builder, error) {
	return overlay.NewBuilder(overlay.Options{
		Transform:    c.transformOptions(),
		Dir:          c.workspace,
		OutputDir:    c.cfg.OutputDir,
		OverlayFile:  c.cfg.OverlayFile,
		IncludeTests: c.cfg.IncludeTests,
		Exclude:      c.cfg.Exclude,
		Workers:      c.cfg.EffectiveWorkers(),
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(exitCode(err))
	}
}
