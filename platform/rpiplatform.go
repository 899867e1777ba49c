package platform

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/homedash/presenced/config"
	"github.com/homedash/presenced/display"
	"github.com/homedash/presenced/sensor"
)

// RaspberryPiPlatform binds the real hardware: the time-of-flight sensor
// behind its GPIO interrupt and reset lines, the IIO light and
// environment devices, and the sysfs backlight.
type RaspberryPiPlatform struct {
	config *config.Config

	proximity   sensor.ProximitySource
	light       sensor.LightSource
	environment sensor.EnvironmentSource
	backlight   display.Channel

	interruptPin rpio.Pin
	resetPin     rpio.Pin
	gpioOpen     bool

	readyChan chan bool
}

func NewRaspberryPiPlatform(conf *config.Config) *RaspberryPiPlatform {
	return &RaspberryPiPlatform{
		config:    conf,
		readyChan: make(chan bool),
	}
}

func (s *RaspberryPiPlatform) Ready() <-chan bool {
	return s.readyChan
}

// Start opens GPIO, resets the ranging sensor and probes all configured
// devices. A sensor that fails to initialize is logged and left nil so
// the application degrades instead of aborting; only a GPIO failure with
// the proximity sensor enabled is fatal.
func (s *RaspberryPiPlatform) Start() error {
	slog.Info("Initialising GPIO and sysfs devices...")

	prox := s.config.Sensors.Proximity
	if prox.Enabled {
		if err := rpio.Open(); err != nil {
			return fmt.Errorf("failed to open rpio: %w", err)
		}
		s.gpioOpen = true

		s.resetPin = rpio.Pin(prox.ResetPin)
		s.resetPin.Output()
		s.resetSensor()

		s.interruptPin = rpio.Pin(prox.InterruptPin)
		s.interruptPin.Input()
		s.interruptPin.PullUp()
		s.interruptPin.Detect(rpio.FallEdge)

		src := newTofSource(prox.DevicePath, s.interruptPin.EdgeDetected)
		if err := src.Init(); err != nil {
			slog.Warn("Proximity sensor unavailable, presence detection disabled",
				"device", prox.DevicePath, "error", err)
		} else {
			s.proximity = src
		}
	}

	if light := s.config.Sensors.Light; light.Enabled {
		src := newIIOLight(light.DevicePath)
		if err := src.Init(); err != nil {
			slog.Warn("Light sensor unavailable, adaptive brightness disabled",
				"device", light.DevicePath, "error", err)
		} else {
			s.light = src
		}
	}

	if env := s.config.Sensors.Environment; env.Enabled {
		src := newIIOEnvironment(env.DevicePath)
		if err := src.Init(); err != nil {
			slog.Warn("Environment sensor unavailable",
				"device", env.DevicePath, "error", err)
		} else {
			s.environment = src
		}
	}

	backlight, err := display.NewSysfsBacklight(s.config.Display.BrightnessPath)
	if err != nil {
		slog.Warn("Backlight unavailable, presence detection will have no visible effect",
			"pattern", s.config.Display.BrightnessPath, "error", err)
	} else {
		s.backlight = backlight
	}

	close(s.readyChan)
	return nil
}

// resetSensor pulses the ranging sensor's hardware reset line and gives
// the firmware time to come back up.
func (s *RaspberryPiPlatform) resetSensor() {
	s.resetPin.Low()
	time.Sleep(10 * time.Millisecond)
	s.resetPin.High()
	time.Sleep(100 * time.Millisecond)
}

func (s *RaspberryPiPlatform) Stop() {
	if s.proximity != nil {
		s.proximity.Close()
	}
	if s.light != nil {
		s.light.Close()
	}
	if s.environment != nil {
		s.environment.Close()
	}
	if s.gpioOpen {
		s.interruptPin.Detect(rpio.NoEdge)
		if err := rpio.Close(); err != nil {
			slog.Error("Error closing rpio", "error", err)
		}
		s.gpioOpen = false
	}
}

func (s *RaspberryPiPlatform) Proximity() sensor.ProximitySource     { return s.proximity }
func (s *RaspberryPiPlatform) Light() sensor.LightSource             { return s.light }
func (s *RaspberryPiPlatform) Environment() sensor.EnvironmentSource { return s.environment }
func (s *RaspberryPiPlatform) Brightness() display.Channel           { return s.backlight }
