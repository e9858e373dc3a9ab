package nopack

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTarget indicates an unrecognised target name.
var ErrUnknownTarget = errors.New("nopack: unknown target")

// Target is the device generation the constraints are computed for.
type Target int

const (
	Tofino Target = iota + 1
	Tofino2
	Tofino3
)

// Gen returns the hardware generation number.
func (t Target) Gen() int { return int(t) }

func (t Target) String() string {
	switch t {
	case Tofino:
		return "tofino"
	case Tofino2:
		return "tofino2"
	case Tofino3:
		return "tofino3"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// ParseTarget accepts the lower-case device names.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(s) {
	case "", "tofino", "tofino1":
		return Tofino, nil
	case "tofino2":
		return Tofino2, nil
	case "tofino3":
		return Tofino3, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(b []byte) error {
	v, err := ParseTarget(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
