package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/phvkit/internal/input"
	"github.com/joshuapare/phvkit/phv/nopack"
)

const (
	DefaultMaxAlignments  = 64
	DefaultContainerWidth = 32
)

// ErrInvalidConfig indicates a configuration value out of range.
var ErrInvalidConfig = errors.New("analysis: invalid config")

// Config controls one analysis run.
type Config struct {
	// Target selects the device generation.
	// Default: tofino
	Target nopack.Target `yaml:"target"`

	// MaxAlignments bounds the alignment candidates enumerated per
	// supercluster (0 = unlimited).
	// Default: 64
	MaxAlignments int `yaml:"max_alignments"`

	// ContainerWidth is the container size used when placing clusters.
	// Default: 32
	ContainerWidth int `yaml:"container_width"`

	// BridgedRule enables the estimated-stage no-pack rule for bridged
	// and digest fields.
	// Default: true
	BridgedRule bool `yaml:"bridged_rule"`

	// LogLevel is a slog level name (debug, info, warn, error).
	// Default: info
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Target:         nopack.Tofino,
		MaxAlignments:  DefaultMaxAlignments,
		ContainerWidth: DefaultContainerWidth,
		BridgedRule:    true,
		LogLevel:       "info",
	}
}

// LoadConfig decodes YAML over the defaults. Unknown keys are rejected and
// an empty document yields the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("analysis: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads a config file from disk. Like programs and dumps it
// may be compressed or carry a byte order mark.
func LoadConfigFile(path string) (Config, error) {
	data, err := input.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("analysis: read config: %w", err)
	}
	return LoadConfig(bytes.NewReader(data))
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Target < nopack.Tofino || c.Target > nopack.Tofino3 {
		return fmt.Errorf("%w: target %v", ErrInvalidConfig, c.Target)
	}
	if c.MaxAlignments < 0 {
		return fmt.Errorf("%w: max_alignments must not be negative", ErrInvalidConfig)
	}
	if c.ContainerWidth <= 0 {
		return fmt.Errorf("%w: container_width must be positive", ErrInvalidConfig)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return lvl, nil
}
