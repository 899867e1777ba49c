package sensor

import (
	"math/rand"
	"sync"
	"time"
)

// maxApproachStepMM limits how fast the simulated subject moves between
// two reads, so the simulation produces the same plausible motion profile
// the detector's movement check expects from real hardware.
const maxApproachStepMM = 120

// SimulatedProximity is a proximity source driven from the simulation TUI.
// The subject walks toward (or away from) the sensor one step per read.
type SimulatedProximity struct {
	mu       sync.Mutex
	current  int
	target   int
	faulting bool
}

// NewSimulatedProximity creates a simulated proximity source with the
// subject far away.
func NewSimulatedProximity() *SimulatedProximity {
	return &SimulatedProximity{current: 3000, target: 3000}
}

func (s *SimulatedProximity) Init() error { return nil }

func (s *SimulatedProximity) Close() {}

// SetTargetDistance moves the simulated subject toward the given distance
// over the next reads.
func (s *SimulatedProximity) SetTargetDistance(mm int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mm < 50 {
		mm = 50
	}
	s.target = mm
}

// SetFaulting toggles simulated read faults, for exercising the
// sensor-unavailability fallback.
func (s *SimulatedProximity) SetFaulting(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faulting = on
}

func (s *SimulatedProximity) Read() Result[ProximityReading] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faulting {
		return Result[ProximityReading]{
			Status:  Fresh,
			Reading: ProximityReading{Valid: false, Timestamp: time.Now()},
		}
	}

	diff := s.target - s.current
	if diff > maxApproachStepMM {
		diff = maxApproachStepMM
	} else if diff < -maxApproachStepMM {
		diff = -maxApproachStepMM
	}
	s.current += diff

	return Ok(ProximityReading{
		DistanceMM:   s.current,
		ZonesInRange: zonesForDistance(s.current),
		Valid:        true,
		Timestamp:    time.Now(),
	})
}

// zonesForDistance models how many zones of the 8x8 grid a person fills at
// a given distance: nothing beyond 2 m, all eight center zones at the 50mm
// contact floor.
func zonesForDistance(mm int) int {
	if mm >= 2000 {
		return 0
	}
	if mm < 50 {
		mm = 50
	}
	return (2000 - mm) * 8 / 1950
}

// SimulatedLight is a light source whose lux level is set from the TUI.
type SimulatedLight struct {
	mu  sync.Mutex
	lux float64
}

// NewSimulatedLight creates a simulated light source at indoor daylight.
func NewSimulatedLight() *SimulatedLight {
	return &SimulatedLight{lux: 250}
}

func (s *SimulatedLight) Init() error { return nil }

func (s *SimulatedLight) Close() {}

// AdjustLux changes the simulated ambient level by delta, clamped at zero.
func (s *SimulatedLight) AdjustLux(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lux += delta
	if s.lux < 0 {
		s.lux = 0
	}
	return s.lux
}

func (s *SimulatedLight) Read() Result[LightReading] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Ok(LightReading{Lux: s.lux, Valid: true, Timestamp: time.Now()})
}

// SimulatedEnvironment produces plausible indoor conditions with a little
// drift per read.
type SimulatedEnvironment struct {
	mu   sync.Mutex
	temp float64
	hum  float64
	pres float64
}

func NewSimulatedEnvironment() *SimulatedEnvironment {
	return &SimulatedEnvironment{temp: 21.5, hum: 45, pres: 1013}
}

func (s *SimulatedEnvironment) Init() error { return nil }

func (s *SimulatedEnvironment) Close() {}

func (s *SimulatedEnvironment) Read() Result[EnvironmentalReading] {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.temp = drift(s.temp, 0.1, 18, 26)
	s.hum = drift(s.hum, 0.5, 30, 70)
	s.pres = drift(s.pres, 0.2, 1000, 1025)

	return Ok(EnvironmentalReading{
		TemperatureC:      s.temp,
		HumidityPercent:   s.hum,
		PressureHPa:       s.pres,
		GasResistanceOhms: 50000 + rand.Float64()*100000,
		Valid:             true,
		Timestamp:         time.Now(),
	})
}

func drift(v, step, lo, hi float64) float64 {
	v += (rand.Float64()*2 - 1) * step
	if v < lo {
		v = lo
	} else if v > hi {
		v = hi
	}
	return v
}

// Scripted replays a fixed sequence of results and reports NoNewData once
// the script is exhausted. Test helper for orchestrator-level tests.
type Scripted[T any] struct {
	mu      sync.Mutex
	results []Result[T]
}

func NewScripted[T any](results ...Result[T]) *Scripted[T] {
	return &Scripted[T]{results: results}
}

func (s *Scripted[T]) Init() error { return nil }

func (s *Scripted[T]) Close() {}

func (s *Scripted[T]) Read() Result[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return Stale[T]()
	}
	head := s.results[0]
	s.results = s.results[1:]
	return head
}
