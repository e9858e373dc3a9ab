package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build metadata. Release builds set these with
//
//	go build -ldflags "-X main.version=v1.2.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%FT%TZ)"
//
// Otherwise they are filled from the module build info where available.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// buildVersion describes the running binary.
type buildVersion struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
	Go      string `json:"go,omitempty" yaml:"go,omitempty"`
}

// resolveVersion merges the ldflags values with bi. Values set at link
// time win; bi fills in the ones left at their defaults.
func resolveVersion(bi *debug.BuildInfo) buildVersion {
	v := buildVersion{Version: version, Commit: commit, Date: date}
	if bi == nil {
		return v
	}
	v.Go = bi.GoVersion
	if v.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		v.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && v.Commit == "none":
			v.Commit = s.Value
		case s.Key == "vcs.time" && v.Date == "unknown":
			v.Date = s.Value
		}
	}
	return v
}

func currentVersion() buildVersion {
	bi, _ := debug.ReadBuildInfo()
	return resolveVersion(bi)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := currentVersion()
		if structured() {
			return newPrinter().Encode(v)
		}
		fmt.Printf("phvctl %s\n", v.Version)
		fmt.Printf("  commit: %s\n", v.Commit)
		fmt.Printf("  built:  %s\n", v.Date)
		if v.Go != "" {
			fmt.Printf("  go:     %s\n", v.Go)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = currentVersion().Version
}
