// Package config loads the engine settings from YAML, filling anything the
// file leaves out with receiver-calibrated defaults.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/streetvision/vmeta/pkg/telemetry"
)

// Filter bounds what the GPS noise filter accepts.
type Filter struct {
	// GPSPrecision is the receiver's nominal precision in meters.
	GPSPrecision float64 `yaml:"gpsprecision"`
	// MaxDOP is the DOP*100 ceiling above which a fix is dropped.
	MaxDOP float64 `yaml:"maxdop"`
	// GPSFixes are the fix values accepted as a lock.
	GPSFixes []int `yaml:"gpsfixes"`
}

// CAMM tunes the CAMM track builder.
type CAMM struct {
	// MinMediaTimescale floors the media timescale so sample timedeltas
	// keep at least this resolution per second.
	MinMediaTimescale uint32 `yaml:"minmediatimescale"`
}

type Config struct {
	Filter Filter `yaml:"filter"`
	CAMM   CAMM   `yaml:"camm"`
}

// Default mirrors the GoPro receiver constants: 15 m precision, DOP
// ceiling 10.00, 2D/3D locks, millisecond timescale floor.
func Default() Config {
	return Config{
		Filter: Filter{
			GPSPrecision: 15,
			MaxDOP:       1000,
			GPSFixes:     []int{int(telemetry.GPSFix2D), int(telemetry.GPSFix3D)},
		},
		CAMM: CAMM{
			MinMediaTimescale: 1000,
		},
	}
}

// Parse reads YAML over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	conf := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil && err != io.EOF {
		return conf, fmt.Errorf("config: %w", err)
	}
	return conf, nil
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults untouched.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Fixes converts the configured fix values to their telemetry type.
func (f Filter) Fixes() []telemetry.GPSFix {
	fixes := make([]telemetry.GPSFix, 0, len(f.GPSFixes))
	for _, v := range f.GPSFixes {
		fixes = append(fixes, telemetry.GPSFix(v))
	}
	return fixes
}
