package display

import (
	"math"

	"github.com/homedash/presenced/config"
)

// Map converts an ambient light level to a brightness value by linear
// interpolation between the two thresholds. At or below low the result is
// min, at or above high it is max. Pure and monotonically non-decreasing
// in lux.
func Map(lux float64, max, min int, low, high float64) int {
	if lux <= low {
		return min
	}
	if lux >= high {
		return max
	}
	frac := (lux - low) / (high - low)
	return min + int(math.Round(frac*float64(max-min)))
}

// Mapper applies the configured thresholds, bounds and floor offset to raw
// lux values.
type Mapper struct {
	cfg config.DisplayConfig
}

func NewMapper(cfg config.DisplayConfig) *Mapper {
	return &Mapper{cfg: cfg}
}

// Target returns the adaptive brightness for the given lux level. The
// floor offset lifts the dark-room result above the configured minimum so
// the display stays readable instead of fading to "on but black".
func (m *Mapper) Target(lux float64) int {
	floor := m.cfg.MinBrightness + m.cfg.LightFloorOffset
	if floor > m.cfg.MaxBrightness {
		floor = m.cfg.MaxBrightness
	}
	v := Map(lux, m.cfg.MaxBrightness, m.cfg.MinBrightness,
		m.cfg.LightThresholdLow, m.cfg.LightThresholdHigh)
	if v < floor {
		v = floor
	}
	return v
}
