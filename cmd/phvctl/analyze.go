package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/phvkit/internal/sctext"
)

var (
	analyzeDump   string
	analyzeStrict bool
)

func init() {
	rootCmd.AddCommand(newAnalyzeCmd())
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <program>",
		Short: "Run every constraint pass and summarize the results",
		Long: `The analyze command loads a program description, runs the header-stack,
mutex, pack-conflict and clustering passes in order and prints per-pass
statistics followed by any diagnostics.

Example:
  phvctl analyze prog.yaml
  phvctl analyze prog.yaml --target tofino2 --dump clusters.txt
  phvctl analyze prog.yaml.zst --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args)
		},
	}
	cmd.Flags().StringVar(&analyzeDump, "dump", "", "Write the supercluster debug dump to this file")
	cmd.Flags().BoolVar(&analyzeStrict, "strict", false, "Fail when the run produced warnings")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ac, res, err := analyzeFile(cmd, args[0])
	if err != nil {
		return err
	}

	if err := newPrinter().PrintSummary(ac, res); err != nil {
		return err
	}

	if analyzeDump != "" {
		f, err := os.Create(analyzeDump)
		if err != nil {
			return fmt.Errorf("failed to create dump: %w", err)
		}
		if err := sctext.Write(f, ac.Fields, ac.SuperClusters); err != nil {
			f.Close()
			return fmt.Errorf("failed to write dump: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		printVerbose("Wrote %d supercluster(s) to %s\n", len(ac.SuperClusters), analyzeDump)
	}

	if analyzeStrict && ac.Report.Summary.Warnings > 0 {
		return fmt.Errorf("%d warning(s) reported", ac.Report.Summary.Warnings)
	}
	return nil
}
