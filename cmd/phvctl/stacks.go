package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/phvkit/phv/ir"
	"github.com/joshuapare/phvkit/phv/stackinfo"
)

var stacksPrune bool

func init() {
	rootCmd.AddCommand(newStacksCmd())
}

func newStacksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stacks <program>",
		Short: "Show header-stack geometry",
		Long: `The stacks command collects every header stack of a program: its size,
the push and pop amounts observed in actions, the $stkvalid layout and the
threads that use it.

Example:
  phvctl stacks prog.yaml
  phvctl stacks prog.yaml --prune`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStacks(args)
		},
	}
	cmd.Flags().BoolVar(&stacksPrune, "prune", false, "Drop stacks no longer referenced by the program")
	return cmd
}

func runStacks(args []string) error {
	printVerbose("Loading program: %s\n", args[0])
	p, err := ir.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}
	info, err := stackinfo.Collect(p)
	if err != nil {
		return fmt.Errorf("failed to collect header stacks: %w", err)
	}
	if stacksPrune {
		for _, name := range stackinfo.DeleteUnused(p) {
			printVerbose("Pruned unused stack: %s\n", name)
		}
	}
	return newPrinter().PrintStacks(info)
}
