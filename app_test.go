package main

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homedash/presenced/config"
	"github.com/homedash/presenced/detect"
	"github.com/homedash/presenced/display"
	"github.com/homedash/presenced/sensor"
	"github.com/homedash/presenced/telemetry"
)

type mockChannel struct {
	mu      sync.Mutex
	max     int
	current int
	writes  int
}

func (m *mockChannel) ReadCurrent() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *mockChannel) Write(value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = value
	m.writes++
	return nil
}

func (m *mockChannel) Max() int { return m.max }

// newTestApp builds an App with fast fades and a mock brightness channel,
// wired directly to its channels so tests can inject sensor data without
// a platform.
func newTestApp(t *testing.T) (*App, *mockChannel) {
	t.Helper()
	conf := config.DefaultConfig()
	conf.Display.FadeSteps = 10
	conf.Display.FadeInDuration = 30 * time.Millisecond
	conf.Display.FadeOutDuration = 30 * time.Millisecond
	conf.Display.RetargetDuration = 20 * time.Millisecond

	app := NewApp(conf, make(chan os.Signal, 1))
	app.detector = detect.NewDetector(conf.Detection)
	app.mapper = display.NewMapper(conf.Display)
	app.bus = telemetry.NewBus(32)

	ch := &mockChannel{max: 255}
	app.fader = display.NewFadeEngine(ch, conf.Display.MinBrightness, conf.Display.MaxBrightness, conf.Display.FadeSteps)

	app.shutdownWg.Add(1)
	go app.stateManager()
	t.Cleanup(func() {
		close(app.stopsignal)
		app.shutdownWg.Wait()
		app.fader.Stop()
	})
	return app, ch
}

func proximity(mm, zones int) sensor.Result[sensor.ProximityReading] {
	return sensor.Ok(sensor.ProximityReading{
		DistanceMM:   mm,
		ZonesInRange: zones,
		Valid:        true,
		Timestamp:    time.Now(),
	})
}

// approach walks the subject in close enough to trigger presence.
func approach(app *App) {
	for _, r := range []sensor.Result[sensor.ProximityReading]{
		proximity(2000, 0), proximity(1500, 1), proximity(800, 3),
		proximity(400, 6), proximity(350, 7), proximity(300, 8),
	} {
		app.proxChan <- r
	}
}

func awaitEvent[T any](t *testing.T, bus *telemetry.Bus) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-bus.Events():
			if ev, ok := e.(T); ok {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T event", *new(T))
		}
	}
}

func TestArrivalFadesToWakeTarget(t *testing.T) {
	app, ch := newTestApp(t)

	approach(app)

	// Without a light reading the wake target is the configured maximum.
	require.Eventually(t, func() bool {
		st := app.fader.State()
		return !st.IsFading && st.CurrentBrightness == 255
	}, 2*time.Second, 2*time.Millisecond)

	ev := awaitEvent[telemetry.PresenceEvent](t, app.bus)
	assert.True(t, ev.Present)
	assert.Equal(t, 300, ev.DistanceMM)

	current, err := ch.ReadCurrent()
	require.NoError(t, err)
	assert.Equal(t, 255, current)
}

func TestLightRetargetWhilePresent(t *testing.T) {
	app, _ := newTestApp(t)

	approach(app)
	require.Eventually(t, func() bool {
		return app.fader.State().TargetBrightness == 255
	}, 2*time.Second, 2*time.Millisecond)

	// An ambient light drop beyond the hysteresis margin retargets.
	app.lightChan <- 250
	require.Eventually(t, func() bool {
		return app.fader.State().TargetBrightness == 125
	}, 2*time.Second, 2*time.Millisecond)

	ev := awaitEvent[telemetry.LightEvent](t, app.bus)
	assert.InDelta(t, 250.0, ev.Lux, 1e-9)

	// A change within the margin does not.
	app.lightChan <- 252
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 125, app.fader.State().TargetBrightness)
}

func TestSensorFaultsEventuallyClearPresence(t *testing.T) {
	app, _ := newTestApp(t)

	for i := 0; i < 3; i++ {
		app.proxChan <- proximity(300, 8)
	}
	require.Eventually(t, func() bool {
		return app.fader.State().TargetBrightness == 255
	}, 2*time.Second, 2*time.Millisecond)

	// Sustained read faults count as weak misses and fade the display
	// back down without waiting for the dwell.
	for i := 0; i < 20; i++ {
		app.proxChan <- sensor.Failed[sensor.ProximityReading](os.ErrDeadlineExceeded)
	}
	require.Eventually(t, func() bool {
		st := app.fader.State()
		return !st.IsFading && st.CurrentBrightness == 0
	}, 2*time.Second, 2*time.Millisecond)
}

func TestEnvironmentTelemetry(t *testing.T) {
	app, _ := newTestApp(t)

	app.envChan <- sensor.EnvironmentalReading{
		TemperatureC:    21.5,
		HumidityPercent: 44.0,
		PressureHPa:     1012.3,
		Valid:           true,
		Timestamp:       time.Now(),
	}

	ev := awaitEvent[telemetry.EnvironmentEvent](t, app.bus)
	assert.InDelta(t, 21.5, ev.TemperatureC, 1e-9)
	assert.InDelta(t, 44.0, ev.HumidityPercent, 1e-9)
	assert.InDelta(t, 1012.3, ev.PressureHPa, 1e-9)
}

func TestBrightnessTelemetryOnChange(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Display.FadeSteps = 10
	app := NewApp(conf, make(chan os.Signal, 1))
	app.detector = detect.NewDetector(conf.Detection)
	app.mapper = display.NewMapper(conf.Display)
	app.bus = telemetry.NewBus(32)
	app.telemetryEvery = 10 * time.Millisecond

	ch := &mockChannel{max: 255, current: 128}
	app.fader = display.NewFadeEngine(ch, 0, 255, conf.Display.FadeSteps)

	app.shutdownWg.Add(1)
	go app.stateManager()
	t.Cleanup(func() {
		close(app.stopsignal)
		app.shutdownWg.Wait()
	})

	ev := awaitEvent[telemetry.BrightnessEvent](t, app.bus)
	assert.Equal(t, 128, ev.Brightness)
	assert.Equal(t, 50, ev.Percent)
}

func TestProximityPollerSkipsEmptyPolls(t *testing.T) {
	app := NewApp(config.DefaultConfig(), make(chan os.Signal, 1))

	src := sensor.NewScripted(
		proximity(300, 8),
		sensor.Failed[sensor.ProximityReading](os.ErrDeadlineExceeded),
	)
	app.shutdownWg.Add(1)
	go app.proximityPoller(src, 2*time.Millisecond)
	t.Cleanup(func() {
		close(app.stopsignal)
		app.shutdownWg.Wait()
	})

	first := <-app.proxChan
	assert.Equal(t, sensor.Fresh, first.Status)
	assert.Equal(t, 300, first.Reading.DistanceMM)

	second := <-app.proxChan
	assert.Equal(t, sensor.Fault, second.Status)

	// The exhausted script reports no new data; those ticks are dropped.
	select {
	case res := <-app.proxChan:
		t.Fatalf("unexpected result forwarded: %v", res.Status)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestLightPollerSmoothsSamples(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Sensors.Light.SmoothingSize = 2
	app := NewApp(conf, make(chan os.Signal, 1))

	src := sensor.NewScripted(
		sensor.Ok(sensor.LightReading{Lux: 100, Valid: true}),
		sensor.Ok(sensor.LightReading{Lux: 200, Valid: true}),
		sensor.Failed[sensor.LightReading](os.ErrDeadlineExceeded),
	)
	app.shutdownWg.Add(1)
	go app.lightPoller(src, 2*time.Millisecond)
	t.Cleanup(func() {
		close(app.stopsignal)
		app.shutdownWg.Wait()
	})

	assert.InDelta(t, 100.0, <-app.lightChan, 1e-9)
	assert.InDelta(t, 150.0, <-app.lightChan, 1e-9)

	// Faulted and empty polls never produce a sample.
	select {
	case lux := <-app.lightChan:
		t.Fatalf("unexpected sample forwarded: %v", lux)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestIsNight(t *testing.T) {
	// Berlin around the summer solstice.
	noon := time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)
	assert.False(t, isNight(52.52, 13.405, noon))

	lateNight := time.Date(2026, 6, 21, 23, 30, 0, 0, time.UTC)
	assert.True(t, isNight(52.52, 13.405, lateNight))
}
