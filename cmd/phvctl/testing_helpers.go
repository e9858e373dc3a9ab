package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/phvkit/phv/analysis"
)

// programPath returns the analysis fixture shared with phv/analysis.
func programPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join("..", "..", "phv", "analysis", "testdata", "program.yaml")
	_, err := os.Stat(path)
	require.NoError(t, err, "test file not found: %s", path)
	return path
}

// testdataPath returns a file from this package's testdata directory.
func testdataPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	_, err := os.Stat(path)
	require.NoError(t, err, "test file not found: %s", path)
	return path
}

// resetFlags restores every global and command flag to its default.
func resetFlags() {
	verbose = false
	quiet = false
	jsonOut = false
	yamlOut = false
	noColor = true
	configPath = ""
	logDir = ""
	targetName = ""
	maxRows = 0
	cfg = analysis.DefaultConfig()

	analyzeDump = ""
	analyzeStrict = false
	stacksPrune = false
	alignUid = -1
	alignWidth = 0
	alignMax = -1
	alignPlace = false
	alignContainers = 0
	roundtripOutput = ""
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	// Drain concurrently so large listings cannot fill the pipe.
	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	out := <-done
	r.Close()

	return string(out), fnErr
}

// run executes phvctl with args after resetting all flags.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	rootCmd.SetArgs(args)
	return captureOutput(t, rootCmd.Execute)
}
