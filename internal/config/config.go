// Package config holds the audit configuration: which acquisition
// parameters each audit checks, how sequences are stratified and which
// sequence pairs the vertical audit visits. Configuration is read from a
// TOML file and falls back to built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

var (
	// ErrNoParameters indicates an audit section with an empty parameter
	// list.
	ErrNoParameters = errors.New("audit requires at least one parameter")

	// ErrBadPair indicates a vertical sequence pair that does not name
	// exactly two sequences.
	ErrBadPair = errors.New("sequence pair must name exactly two sequences")
)

// defaultParameters are the acquisition parameters checked when the
// configuration does not name its own.
var defaultParameters = []string{
	"Manufacturer",
	"BodyPartExamined",
	"RepetitionTime",
	"MagneticFieldStrength",
	"FlipAngle",
	"EchoTrainLength",
	"PixelBandwidth",
	"NumberOfPhaseEncodingSteps",
}

// Horizontal configures the across-subjects audit.
type Horizontal struct {
	// Parameters to compare against the reference protocol.
	Parameters []string `toml:"include_parameters"`
	// StratifyBy splits a sequence by the named attribute before
	// inference, so e.g. magnitude and phase echoes of a field map get
	// separate references.
	StratifyBy string `toml:"stratify_by"`
	// ReferenceProtocol is an optional path to a YAML or JSON protocol
	// file. Empty means the reference is inferred by majority vote.
	ReferenceProtocol string `toml:"reference_protocol"`
	// Tolerance is the relative tolerance for numeric comparisons.
	Tolerance float64 `toml:"tolerance"`
}

// Vertical configures the within-session audit.
type Vertical struct {
	// Parameters to compare between paired sequences.
	Parameters []string `toml:"include_parameters"`
	// Pairs names the sequence pairs to compare. Empty means every
	// combination of two sequences seen together in a session.
	Pairs [][]string `toml:"sequences"`
}

// Report configures report generation.
type Report struct {
	// SkipHorizontal and SkipVertical drop the matching section from the
	// report.
	SkipHorizontal bool `toml:"skip_horizontal"`
	SkipVertical   bool `toml:"skip_vertical"`
	// Snapshot renders a PNG of the HTML report for alert attachments,
	// same as the monitor --snapshot flag.
	Snapshot bool `toml:"snapshot"`
}

// Config is the full audit configuration.
type Config struct {
	Horizontal Horizontal `toml:"horizontal"`
	Vertical   Vertical   `toml:"vertical"`
	Report     Report     `toml:"report"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Horizontal: Horizontal{
			Parameters: append([]string(nil), defaultParameters...),
		},
		Vertical: Vertical{
			Parameters: append([]string(nil), defaultParameters...),
		},
	}
}

// Load reads a TOML configuration file. Sections left out keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses TOML configuration content.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults restores parameter lists that decoding emptied out.
func (c *Config) fillDefaults() {
	if len(c.Horizontal.Parameters) == 0 {
		c.Horizontal.Parameters = append([]string(nil), defaultParameters...)
	}
	if len(c.Vertical.Parameters) == 0 {
		c.Vertical.Parameters = append([]string(nil), defaultParameters...)
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if len(c.Horizontal.Parameters) == 0 {
		return fmt.Errorf("%w: [horizontal]", ErrNoParameters)
	}
	if len(c.Vertical.Parameters) == 0 {
		return fmt.Errorf("%w: [vertical]", ErrNoParameters)
	}
	if c.Horizontal.Tolerance < 0 {
		return fmt.Errorf("[horizontal] tolerance must not be negative, got %g", c.Horizontal.Tolerance)
	}
	for i, pair := range c.Vertical.Pairs {
		if len(pair) != 2 {
			return fmt.Errorf("%w: [vertical] sequences entry %d has %d names", ErrBadPair, i+1, len(pair))
		}
		if pair[0] == pair[1] {
			return fmt.Errorf("%w: [vertical] sequences entry %d pairs %q with itself", ErrBadPair, i+1, pair[0])
		}
	}
	if c.Horizontal.ReferenceProtocol != "" {
		if _, err := os.Stat(c.Horizontal.ReferenceProtocol); err != nil {
			return fmt.Errorf("reference protocol: %w", err)
		}
	}
	return nil
}
