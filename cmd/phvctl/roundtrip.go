package main

import (
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/joshuapare/phvkit/internal/input"
	"github.com/joshuapare/phvkit/internal/sctext"
)

var roundtripOutput string

func init() {
	rootCmd.AddCommand(newRoundtripCmd())
}

func newRoundtripCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roundtrip <dump>",
		Short: "Check that a debug dump re-emits byte for byte",
		Long: `The roundtrip command parses a supercluster debug dump, re-emits it and
compares the result with the input. Any difference is printed as a diff and
the command fails.

Example:
  phvctl roundtrip clusters.txt
  phvctl roundtrip clusters.txt.zst -o clusters.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundtrip(args)
		},
	}
	cmd.Flags().StringVarP(&roundtripOutput, "output", "o", "", "Also write the re-emitted dump to this file")
	return cmd
}

func runRoundtrip(args []string) error {
	printVerbose("Reading dump: %s\n", args[0])
	want, err := input.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read dump: %w", err)
	}
	doc, err := sctext.ParseString(string(want))
	if err != nil {
		return fmt.Errorf("failed to parse dump: %w", err)
	}
	got := doc.Format()

	if roundtripOutput != "" {
		if err := os.WriteFile(roundtripOutput, []byte(got), 0o644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if diff := cmp.Diff(string(want), got); diff != "" {
		printInfo("%s", diff)
		return fmt.Errorf("dump does not round-trip (-input +emitted)")
	}
	printInfo("OK: %d supercluster(s), %d field(s)\n", len(doc.SuperClusters), doc.DB.Len())
	return nil
}
