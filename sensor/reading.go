package sensor

import "time"

// ProximityReading is one processed frame from the time-of-flight sensor:
// the closest valid distance and how many zones of the multi-zone grid see
// an object in range. Immutable once created, consumed once by the
// presence detector.
type ProximityReading struct {
	DistanceMM   int
	ZonesInRange int
	Valid        bool
	Timestamp    time.Time
}

// LightReading is one ambient light sample.
type LightReading struct {
	Lux       float64
	Valid     bool
	Timestamp time.Time
}

// EnvironmentalReading is one sample from the environmental sensor. Gas
// resistance is only meaningful while the heater is stable; zero means
// "not available".
type EnvironmentalReading struct {
	TemperatureC       float64
	HumidityPercent    float64
	PressureHPa        float64
	GasResistanceOhms  float64
	Valid              bool
	Timestamp          time.Time
}

// Status classifies the outcome of a single poll. "No new data" is an
// expected condition at every cadence mismatch between poller and sensor
// and is not an error; Fault carries one.
type Status int

const (
	// Fresh means the result holds a new reading.
	Fresh Status = iota
	// NoNewData means the sensor had nothing new to report.
	NoNewData
	// Fault means the read failed; Result.Err holds the reason.
	Fault
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case NoNewData:
		return "no-new-data"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

// Result is the typed outcome of one poll of a reading source. It replaces
// status-code sniffing with an explicit three-way answer.
type Result[T any] struct {
	Status  Status
	Reading T
	Err     error
}

// Ok wraps a fresh reading.
func Ok[T any](reading T) Result[T] {
	return Result[T]{Status: Fresh, Reading: reading}
}

// Stale reports that no new data was available.
func Stale[T any]() Result[T] {
	return Result[T]{Status: NoNewData}
}

// Failed wraps a read fault.
func Failed[T any](err error) Result[T] {
	return Result[T]{Status: Fault, Err: err}
}
