// Package platform abstracts the physical sensor and display hardware
// away from the application core. The Raspberry Pi implementation talks
// to real devices; the TUI implementation simulates them on a terminal
// so the whole pipeline can be exercised without hardware.
package platform

import (
	"os"

	"github.com/homedash/presenced/config"
	"github.com/homedash/presenced/display"
	"github.com/homedash/presenced/sensor"
)

// Platform provides the sensor sources and the brightness channel. The
// source accessors may return nil after Start when a sensor is disabled
// in the configuration or failed to initialize; the application then runs
// in the corresponding degraded mode.
type Platform interface {
	// Start initializes the platform (opens GPIO and sysfs devices, or
	// starts the TUI).
	Start() error

	// Stop cleans up all platform resources.
	Stop()

	// Proximity returns the time-of-flight distance source.
	Proximity() sensor.ProximitySource

	// Light returns the ambient light source.
	Light() sensor.LightSource

	// Environment returns the environmental (temperature, humidity,
	// pressure) source.
	Environment() sensor.EnvironmentSource

	// Brightness returns the display brightness channel, or nil when no
	// display control is available.
	Brightness() display.Channel

	// Ready is closed once the platform can accept work.
	Ready() <-chan bool
}

// NewPlatform selects the implementation matching the configuration.
func NewPlatform(conf *config.Config, ossignal chan os.Signal) Platform {
	if conf.RealHW {
		return NewRaspberryPiPlatform(conf)
	}
	return NewTUIPlatform(conf, ossignal)
}
