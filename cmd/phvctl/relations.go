package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newMutexCmd())
	rootCmd.AddCommand(newNoPackCmd())
	rootCmd.AddCommand(newClustersCmd())
}

func newMutexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mutex <program>",
		Short: "List mutually exclusive field pairs",
		Long: `The mutex command runs the analysis and lists every pair of fields that
are never live at the same time and may therefore overlay each other.

Example:
  phvctl mutex prog.yaml --max-rows 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, _, err := analyzeFile(cmd, args[0])
			if err != nil {
				return err
			}
			return newPrinter().PrintMutex(ac.Fields, ac.Mutex)
		},
	}
}

func newNoPackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nopack <program>",
		Short: "List pack conflicts",
		Long: `The nopack command runs the analysis and lists the field pairs, then the
slice pairs, that may not share a container.

Example:
  phvctl nopack prog.yaml --target tofino2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, _, err := analyzeFile(cmd, args[0])
			if err != nil {
				return err
			}
			return newPrinter().PrintNoPack(ac.Fields, ac.NoPack)
		},
	}
}

func newClustersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clusters <program>",
		Short: "Print the initial superclusters",
		Long: `The clusters command runs the analysis and prints the initial superclusters
in the debug dump format accepted by "phvctl align" and "phvctl roundtrip".

Example:
  phvctl clusters prog.yaml > clusters.txt
  phvctl clusters prog.yaml --yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, _, err := analyzeFile(cmd, args[0])
			if err != nil {
				return err
			}
			return newPrinter().PrintClusters(ac.Fields, ac.SuperClusters)
		},
	}
}
