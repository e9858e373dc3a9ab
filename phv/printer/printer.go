// Package printer renders analysis results as aligned text tables, JSON
// or YAML.
package printer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

const DefaultMaxRows = 0

// Format specifies the output format for printing.
type Format string

const (
	// FormatText outputs human-readable tables.
	FormatText Format = "text"

	// FormatJSON outputs indented JSON.
	FormatJSON Format = "json"

	// FormatYAML outputs YAML.
	FormatYAML Format = "yaml"
)

// Options controls printing behavior.
type Options struct {
	// Format specifies output format (text, json, yaml).
	// Default: FormatText
	Format Format

	// Color styles headings in text output.
	// Default: false
	Color bool

	// MaxRows limits rows of pair listings in text output (0 = unlimited).
	// Default: 0
	MaxRows int
}

// DefaultOptions returns sensible defaults for printing.
func DefaultOptions() Options {
	return Options{
		Format:  FormatText,
		Color:   false,
		MaxRows: DefaultMaxRows,
	}
}

// Printer writes formatted results to an io.Writer.
type Printer struct {
	opts    Options
	writer  io.Writer
	heading lipgloss.Style
}

// New creates a Printer writing to w.
func New(w io.Writer, opts Options) *Printer {
	p := &Printer{opts: opts, writer: w, heading: lipgloss.NewStyle()}
	if opts.Color {
		p.heading = p.heading.Bold(true).Foreground(lipgloss.Color("12"))
	}
	return p
}

// structured reports whether output is encoded rather than drawn.
func (p *Printer) structured() bool {
	return p.opts.Format == FormatJSON || p.opts.Format == FormatYAML
}

func (p *Printer) encode(v any) error {
	switch p.opts.Format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.writer, "%s\n", data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(p.writer)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("printer: format %q is not structured", p.opts.Format)
	}
}

// Encode writes v in the configured structured format. It fails for text
// output.
func (p *Printer) Encode(v any) error { return p.encode(v) }

func (p *Printer) title(s string) error {
	_, err := fmt.Fprintln(p.writer, p.heading.Render(s))
	return err
}
