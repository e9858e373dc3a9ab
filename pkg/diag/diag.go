// Package diag carries compiler diagnostics for the PHV analysis passes.
//
// Two tiers exist. Fatal conditions (malformed input, violated internal
// invariants) are returned as *FatalError values and stop the pipeline.
// Everything else is a Diagnostic collected into a Report: warnings are
// printed but never block compilation.
package diag

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrFatal marks malformed user input that aborts compilation.
	ErrFatal = errors.New("diag: fatal input error")

	// ErrInternal marks a condition that cannot happen on well-typed input.
	ErrInternal = errors.New("diag: internal compiler bug")

	// ErrUnknownSeverity indicates a severity name that cannot be decoded.
	ErrUnknownSeverity = errors.New("diag: unknown severity")
)

// Severity classifies how serious a diagnostic is.
type Severity int

const (
	SevInfo    Severity = iota // Informational
	SevWarning                 // Reported, does not block compilation
	SevError                   // Compilation fails after the current pass
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the severity by name in JSON and YAML output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "INFO":
		*s = SevInfo
	case "WARNING":
		*s = SevWarning
	case "ERROR":
		*s = SevError
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSeverity, b)
	}
	return nil
}

// Pos is a source position. The zero value means "unknown".
type Pos struct {
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty"`
}

// IsValid reports whether the position carries a line number.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return "<unknown>"
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// FatalError aborts compilation. Err is ErrFatal or ErrInternal.
type FatalError struct {
	Pass string
	Pos  Pos
	Msg  string
	Err  error
}

func (e *FatalError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		b.WriteString(e.Pos.String())
		b.WriteString(": ")
	}
	if e.Err == ErrInternal {
		b.WriteString("internal error: ")
	}
	if e.Pass != "" {
		b.WriteString(e.Pass)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	return b.String()
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatalf builds a FatalError for malformed input.
func Fatalf(pos Pos, format string, args ...any) *FatalError {
	return &FatalError{Pos: pos, Msg: fmt.Sprintf(format, args...), Err: ErrFatal}
}

// Bugf builds a FatalError for a broken internal invariant.
func Bugf(format string, args ...any) *FatalError {
	return &FatalError{Msg: fmt.Sprintf(format, args...), Err: ErrInternal}
}

// WithPass stamps the pass name on err when it is a *FatalError without one.
func WithPass(err error, pass string) error {
	var fe *FatalError
	if errors.As(err, &fe) && fe.Pass == "" {
		fe.Pass = pass
	}
	return err
}

// Diagnostic is a single non-fatal finding.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Pass     string   `json:"pass" yaml:"pass"`
	Pos      Pos      `json:"pos,omitzero" yaml:"pos,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%s: %s [%s] %s", d.Pos, d.Severity, d.Pass, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Pass, d.Message)
}

// Summary counts diagnostics by severity.
type Summary struct {
	Errors   int `json:"errors" yaml:"errors"`
	Warnings int `json:"warnings" yaml:"warnings"`
	Info     int `json:"info" yaml:"info"`
}

// Report collects diagnostics for one analysis run.
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Summary     Summary      `json:"summary" yaml:"summary"`
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{}
}

// Add appends d and updates the summary.
func (r *Report) Add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
	switch d.Severity {
	case SevError:
		r.Summary.Errors++
	case SevWarning:
		r.Summary.Warnings++
	case SevInfo:
		r.Summary.Info++
	}
}

// Warnf records a warning.
func (r *Report) Warnf(pass string, pos Pos, format string, args ...any) {
	r.Add(Diagnostic{Severity: SevWarning, Pass: pass, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Errorf records an error.
func (r *Report) Errorf(pass string, pos Pos, format string, args ...any) {
	r.Add(Diagnostic{Severity: SevError, Pass: pass, Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// HasErrors returns true if any error was recorded.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Warnings returns the recorded warnings in insertion order.
func (r *Report) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SevWarning {
			out = append(out, d)
		}
	}
	return out
}

// Sorted returns the diagnostics ordered by position, keeping insertion
// order among equal positions.
func (r *Report) Sorted() []Diagnostic {
	out := append([]Diagnostic(nil), r.Diagnostics...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pos.Line != out[j].Pos.Line {
			return out[i].Pos.Line < out[j].Pos.Line
		}
		return out[i].Pos.Column < out[j].Pos.Column
	})
	return out
}

// FormatJSON returns the report as indented JSON.
func (r *Report) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatTextCompact returns one line per diagnostic.
func (r *Report) FormatTextCompact() string {
	var b strings.Builder
	for _, d := range r.Sorted() {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	if len(r.Diagnostics) == 0 {
		b.WriteString("No issues found.\n")
	}
	return b.String()
}
