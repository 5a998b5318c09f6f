// Package project loads dpc.toml project files: the pack name plus
// the pass configuration knobs the golden corpus keys on.
package project

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Settings configure a compilation.
type Settings struct {
	// Name namespaces generated functions and stripped identifiers.
	Name string `toml:"name"`
	// MIRPasses and LIRPasses toggle the optimizer tiers.
	MIRPasses bool `toml:"mir_passes"`
	LIRPasses bool `toml:"lir_passes"`
	// StripMode is "none" or "unstable".
	StripMode string `toml:"strip_mode"`
	// Out is the output directory for emitted files.
	Out string `toml:"out"`
}

// Default returns the settings used when no project file exists.
func Default() Settings {
	return Settings{
		Name:      "dpc",
		MIRPasses: true,
		LIRPasses: true,
		StripMode: "none",
		Out:       "out",
	}
}

// Load reads a project file, layering it over the defaults.
func Load(path string) (Settings, error) {
	out := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := toml.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// Validate rejects unusable settings.
func (s Settings) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	switch s.StripMode {
	case "none", "unstable":
	default:
		return fmt.Errorf("unknown strip mode %q", s.StripMode)
	}
	return nil
}
