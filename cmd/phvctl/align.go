package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/phvkit/internal/sctext"
	"github.com/joshuapare/phvkit/phv/cluster"
)

var (
	alignUid        int
	alignWidth      int
	alignMax        int
	alignPlace      bool
	alignContainers int
)

func init() {
	rootCmd.AddCommand(newAlignCmd())
}

func newAlignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align <dump>",
		Short: "Enumerate container alignments of superclusters",
		Long: `The align command reads a supercluster debug dump and lists, for each
supercluster, the start-bit assignments of its aligned clusters that are
consistent with every slice list. With --place it also realises the first
feasible alignment in containers of the given width.

Example:
  phvctl align clusters.txt --width 16
  phvctl align clusters.txt --uid 3 --place --containers 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlign(args)
		},
	}
	cmd.Flags().IntVar(&alignUid, "uid", -1, "Only this supercluster (-1 = all)")
	cmd.Flags().IntVarP(&alignWidth, "width", "w", 0, "Container width in bits (0 = config container_width)")
	cmd.Flags().IntVar(&alignMax, "max", -1, "Alignments per supercluster (0 = unlimited, -1 = config max_alignments)")
	cmd.Flags().BoolVar(&alignPlace, "place", false, "Place the supercluster after enumerating alignments")
	cmd.Flags().IntVar(&alignContainers, "containers", 0, "Containers available for placement (0 = unlimited)")
	return cmd
}

func runAlign(args []string) error {
	printVerbose("Reading dump: %s\n", args[0])
	doc, err := sctext.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse dump: %w", err)
	}

	width := cfg.ContainerWidth
	if alignWidth != 0 {
		width = alignWidth
	}
	if width <= 0 {
		return fmt.Errorf("container width must be positive, got %d", width)
	}
	limit := cfg.MaxAlignments
	if alignMax >= 0 {
		limit = alignMax
	}

	p := newPrinter()
	matched := false
	for _, sc := range doc.SuperClusters {
		if alignUid >= 0 && sc.Uid != alignUid {
			continue
		}
		matched = true

		aligns, err := sc.Alignments(doc.DB, width, limit)
		if err != nil {
			return fmt.Errorf("supercluster %d: %w", sc.Uid, err)
		}
		var res *cluster.AllocResult
		if alignPlace {
			r, err := cluster.Place(doc.DB, sc, cluster.PlaceOptions{
				Width:      width,
				Containers: alignContainers,
				Limit:      limit,
			})
			if err != nil {
				return fmt.Errorf("supercluster %d: %w", sc.Uid, err)
			}
			res = &r
		}
		if err := p.PrintAlignments(doc.DB, sc, width, aligns, res); err != nil {
			return err
		}
		if !structured() {
			printInfo("\n")
		}
	}
	if alignUid >= 0 && !matched {
		return fmt.Errorf("no supercluster with uid %d", alignUid)
	}
	return nil
}
