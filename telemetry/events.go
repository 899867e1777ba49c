// Package telemetry carries discrete, timestamped state-change events out
// of the core and forwards them to Home Assistant over MQTT. The core
// never blocks on telemetry: events flow through a bounded bus that drops
// its oldest entry under pressure.
package telemetry

import (
	"fmt"
	"log/slog"
	"time"
)

// PresenceEvent records a presence transition or a periodic presence
// sample together with the distance that produced it.
type PresenceEvent struct {
	Present    bool
	DistanceMM int
	Confidence float64
	Timestamp  time.Time
}

// BrightnessEvent records a completed brightness change.
type BrightnessEvent struct {
	Brightness int
	Percent    int
	Timestamp  time.Time
}

// LightEvent records a smoothed ambient light sample.
type LightEvent struct {
	Lux       float64
	Timestamp time.Time
}

// EnvironmentEvent records an environmental sensor sample.
type EnvironmentEvent struct {
	TemperatureC    float64
	HumidityPercent float64
	PressureHPa     float64
	Timestamp       time.Time
}

// Event is one of the event types above.
type Event any

// Bus is a bounded event queue between the orchestrator and the
// publisher. Publish never blocks; when the bus is full the oldest event
// is dropped to make room, so a dead broker costs memory-bounded staleness
// rather than stalling a sensor poller.
type Bus struct {
	ch chan Event
}

// NewBus creates a bus holding up to capacity undelivered events.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Publish enqueues an event, evicting the oldest entry if necessary.
func (b *Bus) Publish(e Event) {
	for {
		select {
		case b.ch <- e:
			return
		default:
		}
		select {
		case dropped := <-b.ch:
			slog.Warn("Telemetry bus full, dropping oldest event",
				"dropped", fmt.Sprintf("%T", dropped))
		default:
		}
	}
}

// Events returns the receive side of the bus.
func (b *Bus) Events() <-chan Event {
	return b.ch
}
