package main

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/homedash/presenced/config"
	"github.com/homedash/presenced/detect"
	"github.com/homedash/presenced/display"
	"github.com/homedash/presenced/platform"
	"github.com/homedash/presenced/sensor"
	"github.com/homedash/presenced/telemetry"
)

// App wires the pollers, the presence detector and the fade engine
// together. Each sensor runs its own polling goroutine at its configured
// cadence; all their effects are serialized through the stateManager
// goroutine, which is the only place that mutates detection state or
// issues fade requests.
type App struct {
	config   *config.Config
	platform platform.Platform
	ossignal chan os.Signal

	detector  *detect.Detector
	mapper    *display.Mapper
	fader     *display.FadeEngine
	bus       *telemetry.Bus
	publisher *telemetry.Publisher

	proxChan  chan sensor.Result[sensor.ProximityReading]
	lightChan chan float64
	envChan   chan sensor.EnvironmentalReading

	telemetryEvery time.Duration
	now            func() time.Time

	stopsignal chan struct{}
	shutdownWg sync.WaitGroup
}

// NewApp creates a new App instance.
func NewApp(conf *config.Config, ossignal chan os.Signal) *App {
	return &App{
		config:         conf,
		ossignal:       ossignal,
		proxChan:       make(chan sensor.Result[sensor.ProximityReading], 4),
		lightChan:      make(chan float64, 4),
		envChan:        make(chan sensor.EnvironmentalReading, 4),
		telemetryEvery: 5 * time.Second,
		now:            time.Now,
		stopsignal:     make(chan struct{}),
	}
}

// initialise brings up the platform, builds the processing pipeline and
// starts all goroutines. Missing sensors or a missing backlight degrade
// the relevant feature instead of failing startup.
func (a *App) initialise() error {
	a.platform = platform.NewPlatform(a.config, a.ossignal)
	if err := a.platform.Start(); err != nil {
		return err
	}
	<-a.platform.Ready()

	a.detector = detect.NewDetector(a.config.Detection)
	a.mapper = display.NewMapper(a.config.Display)
	a.bus = telemetry.NewBus(64)

	if ch := a.platform.Brightness(); ch != nil {
		a.fader = display.NewFadeEngine(ch,
			a.config.Display.MinBrightness,
			a.config.Display.MaxBrightness,
			a.config.Display.FadeSteps)
		// Known starting point: display dark until someone shows up.
		a.requestFade(a.config.Display.MinBrightness, a.config.Display.RetargetDuration)
	} else {
		slog.Warn("No display control available, presence detection runs without visible effect")
	}

	if a.config.MQTT.Enabled {
		a.publisher = telemetry.NewPublisher(a.config.MQTT)
		if err := a.publisher.Start(a.bus); err != nil {
			slog.Warn("MQTT telemetry disabled for this run", "error", err)
			a.publisher = nil
		}
	}

	a.startPollers()

	a.shutdownWg.Add(1)
	go a.stateManager()
	return nil
}

// shutdown stops all goroutines and releases the platform.
func (a *App) shutdown() {
	slog.Info("Shutting down...")
	close(a.stopsignal)
	a.shutdownWg.Wait()
	if a.fader != nil {
		a.fader.Stop()
	}
	if a.publisher != nil {
		a.publisher.Stop()
	}
	a.platform.Stop()
}

func (a *App) startPollers() {
	if src := a.platform.Proximity(); src != nil {
		a.shutdownWg.Add(1)
		go a.proximityPoller(src, a.config.Sensors.Proximity.PollInterval)
	} else if a.config.Sensors.Proximity.Enabled {
		slog.Warn("Running without proximity sensor, presence detection disabled")
	}

	if src := a.platform.Light(); src != nil {
		a.shutdownWg.Add(1)
		go a.lightPoller(src, a.config.Sensors.Light.PollInterval)
	} else if a.config.Sensors.Light.Enabled {
		slog.Warn("Running without light sensor, using fixed maximum wake brightness")
	}

	if src := a.platform.Environment(); src != nil {
		a.shutdownWg.Add(1)
		go a.environmentPoller(src, a.config.Sensors.Environment.PollInterval)
	}
}

// proximityPoller forwards every fresh or faulted poll to the state
// manager. NoNewData ticks carry no information and are skipped so the
// detector's counters only advance on real frames.
func (a *App) proximityPoller(src sensor.ProximitySource, interval time.Duration) {
	defer a.shutdownWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending proximity poller go-routine...")
			return
		case <-ticker.C:
			res := src.Read()
			if res.Status == sensor.NoNewData {
				continue
			}
			select {
			case a.proxChan <- res:
			case <-a.stopsignal:
				return
			}
		}
	}
}

// lightPoller smooths raw lux samples before they reach the state
// manager, so a flickering lamp does not cause retarget churn.
func (a *App) lightPoller(src sensor.LightSource, interval time.Duration) {
	defer a.shutdownWg.Done()
	window := sensor.NewWindow(a.config.Sensors.Light.SmoothingSize)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending light poller go-routine...")
			return
		case <-ticker.C:
			res := src.Read()
			if res.Status != sensor.Fresh || !res.Reading.Valid {
				if res.Status == sensor.Fault {
					slog.Debug("Light sensor read failed", "error", res.Err)
				}
				continue
			}
			smoothed := window.Add(res.Reading.Lux)
			select {
			case a.lightChan <- smoothed:
			case <-a.stopsignal:
				return
			}
		}
	}
}

func (a *App) environmentPoller(src sensor.EnvironmentSource, interval time.Duration) {
	defer a.shutdownWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending environment poller go-routine...")
			return
		case <-ticker.C:
			res := src.Read()
			if res.Status != sensor.Fresh || !res.Reading.Valid {
				if res.Status == sensor.Fault {
					slog.Debug("Environment sensor read failed", "error", res.Err)
				}
				continue
			}
			select {
			case a.envChan <- res.Reading:
			case <-a.stopsignal:
				return
			}
		}
	}
}

// stateManager is the single owner of detection and display state. All
// fade requests originate here, which together with the fade engine's
// cancel-and-join supersession guarantees at most one active fade.
func (a *App) stateManager() {
	defer a.shutdownWg.Done()
	slog.Info("Starting state manager")

	lastTarget := -1
	var lux float64
	haveLux := false
	lastPercent := -1

	ticker := time.NewTicker(a.telemetryEvery)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending state manager go-routine...")
			return

		case res := <-a.proxChan:
			wasPresent := a.detector.Present()
			var present bool
			if res.Status == sensor.Fault {
				present = a.detector.Process(nil)
			} else {
				reading := res.Reading
				present = a.detector.Process(&reading)
			}
			if present == wasPresent {
				continue
			}
			if present {
				target := a.wakeTarget(lux, haveLux)
				a.requestFade(target, a.config.Display.FadeInDuration)
				lastTarget = target
			} else {
				a.requestFade(a.config.Display.MinBrightness, a.config.Display.FadeOutDuration)
				lastTarget = a.config.Display.MinBrightness
			}
			a.bus.Publish(telemetry.PresenceEvent{
				Present:    present,
				DistanceMM: res.Reading.DistanceMM,
				Confidence: a.detector.Confidence(),
				Timestamp:  a.now(),
			})

		case smoothed := <-a.lightChan:
			lux, haveLux = smoothed, true
			a.bus.Publish(telemetry.LightEvent{Lux: smoothed, Timestamp: a.now()})
			if !a.detector.Present() || !a.config.Display.AdaptiveEnabled || lastTarget < 0 {
				continue
			}
			target := a.wakeTarget(lux, haveLux)
			diff := target - lastTarget
			if diff < 0 {
				diff = -diff
			}
			if diff > a.config.Display.RetargetMargin {
				slog.Info("Ambient light changed, retargeting brightness",
					"lux", smoothed, "target", target)
				a.requestFade(target, a.config.Display.RetargetDuration)
				lastTarget = target
			}

		case env := <-a.envChan:
			a.bus.Publish(telemetry.EnvironmentEvent{
				TemperatureC:    env.TemperatureC,
				HumidityPercent: env.HumidityPercent,
				PressureHPa:     env.PressureHPa,
				Timestamp:       a.now(),
			})

		case <-ticker.C:
			if a.fader == nil {
				continue
			}
			current := a.fader.State().CurrentBrightness
			percent := current * 100 / a.config.Display.MaxBrightness
			if percent != lastPercent {
				a.bus.Publish(telemetry.BrightnessEvent{
					Brightness: current,
					Percent:    percent,
					Timestamp:  a.now(),
				})
				lastPercent = percent
			}
		}
	}
}

// wakeTarget computes the brightness to fade to when someone is present:
// adaptive from ambient light when available, capped at night.
func (a *App) wakeTarget(lux float64, haveLux bool) int {
	target := a.config.Display.MaxBrightness
	if a.config.Display.AdaptiveEnabled && haveLux {
		target = a.mapper.Target(lux)
	}
	nc := a.config.NightCap
	if nc.Enabled && isNight(nc.Latitude, nc.Longitude, a.now()) && target > nc.MaxBrightness {
		target = nc.MaxBrightness
	}
	return target
}

func (a *App) requestFade(target int, duration time.Duration) {
	if a.fader == nil {
		slog.Debug("No display control, skipping fade", "target", target)
		return
	}
	a.fader.Request(display.FadeRequest{
		Target:   target,
		Duration: duration,
		Easing:   display.EasingForName(a.config.Display.FadeEasing),
	})
}

// isNight reports whether the given instant lies between local sunset and
// sunrise. At polar latitudes with no sun event the cap is skipped.
func isNight(lat, lon float64, now time.Time) bool {
	rise, set := sunrise.SunriseSunset(lat, lon, now.Year(), now.Month(), now.Day())
	if rise.IsZero() && set.IsZero() {
		return false
	}
	return now.Before(rise) || now.After(set)
}
