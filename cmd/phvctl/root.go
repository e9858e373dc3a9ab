package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/joshuapare/phvkit/internal/logger"
	"github.com/joshuapare/phvkit/phv/analysis"
	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/phv/nopack"
	"github.com/joshuapare/phvkit/phv/printer"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	yamlOut    bool
	noColor    bool
	configPath string
	logDir     string
	targetName string
	maxRows    int

	// cfg is resolved once per invocation before any command runs.
	cfg = analysis.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "phvctl",
	Short: "Analyze PHV field allocation constraints",
	Long: `phvctl runs the PHV constraint passes over a program description and
reports header-stack geometry, mutually exclusive fields, pack conflicts and
the initial supercluster layout. It also reads and checks supercluster debug
dumps and enumerates their container alignments.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&yamlOut, "yaml", false, "Output in YAML format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Analysis config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write daily log files to this directory")
	rootCmd.PersistentFlags().StringVarP(&targetName, "target", "t", "", "Device target (tofino, tofino2, tofino3)")
	rootCmd.PersistentFlags().IntVar(&maxRows, "max-rows", 0, "Limit rows of pair listings (0 = unlimited)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// setup resolves the config and starts logging.
func setup(cmd *cobra.Command, args []string) error {
	if jsonOut && yamlOut {
		return fmt.Errorf("--json and --yaml are mutually exclusive")
	}
	c, err := resolveConfig()
	if err != nil {
		return err
	}
	cfg = c

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	return logger.Init(logger.Options{
		Enabled: verbose || logDir != "",
		LogDir:  logDir,
		Level:   level,
		JSON:    jsonOut,
		Output:  os.Stderr,
	})
}

func resolveConfig() (analysis.Config, error) {
	c := analysis.DefaultConfig()
	if configPath != "" {
		var err error
		if c, err = analysis.LoadConfigFile(configPath); err != nil {
			return analysis.Config{}, err
		}
	}
	if targetName != "" {
		t, err := nopack.ParseTarget(targetName)
		if err != nil {
			return analysis.Config{}, err
		}
		c.Target = t
	}
	return c, nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// colorEnabled reports whether headings should be styled on w.
func colorEnabled(w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// newPrinter returns a printer on stdout honouring the global flags. In
// quiet mode text output is discarded; structured output is still written.
func newPrinter() *printer.Printer {
	opts := printer.DefaultOptions()
	opts.MaxRows = maxRows
	switch {
	case jsonOut:
		opts.Format = printer.FormatJSON
	case yamlOut:
		opts.Format = printer.FormatYAML
	}
	var w io.Writer = os.Stdout
	if quiet && opts.Format == printer.FormatText {
		w = io.Discard
	}
	opts.Color = colorEnabled(w)
	return printer.New(w, opts)
}

// structured reports whether JSON or YAML output was requested.
func structured() bool { return jsonOut || yamlOut }

// analyzeFile loads a program and runs the full pipeline over it.
func analyzeFile(cmd *cobra.Command, path string) (*analysis.Context, *analysis.Result, error) {
	printVerbose("Loading program: %s\n", path)
	p, err := ir.LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load program: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ac := analysis.NewContext(p, cfg, logger.L)
	res, err := analysis.Analyze(ctx, ac)
	if err != nil {
		return ac, res, fmt.Errorf("analysis failed: %w", err)
	}
	return ac, res, nil
}
