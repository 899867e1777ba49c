package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/homedash/presenced/config"
	"github.com/homedash/presenced/sensor"
)

func testConfig() config.DetectionConfig {
	return config.DetectionConfig{
		ThresholdMM:         400,
		DetectionZones:      6,
		ConsecutiveRequired: 3,
		NoPresenceRequired:  10,
	}
}

func reading(mm, zones int) *sensor.ProximityReading {
	return &sensor.ProximityReading{
		DistanceMM:   mm,
		ZonesInRange: zones,
		Valid:        true,
		Timestamp:    time.Now(),
	}
}

// newTestDetector returns a detector with a controllable clock. Advancing
// *clock moves the detector's notion of time.
func newTestDetector(cfg config.DetectionConfig) (*Detector, *time.Time) {
	d := NewDetector(cfg)
	clock := time.Now()
	d.now = func() time.Time { return clock }
	return d, &clock
}

func TestApproachTriggersAtSixthReading(t *testing.T) {
	d, _ := newTestDetector(testConfig())

	seq := []*sensor.ProximityReading{
		reading(2000, 0),
		reading(1500, 1),
		reading(800, 3),
		reading(400, 6),
		reading(350, 7),
		reading(300, 8),
	}

	for i, r := range seq[:5] {
		assert.False(t, d.Process(r), "presence must still be false after reading %d", i+1)
	}
	assert.True(t, d.Process(seq[5]), "presence must become true exactly at the 6th reading")
}

func TestDeparture_TenMissesAfterDwell(t *testing.T) {
	d, clock := newTestDetector(testConfig())

	for i := 0; i < 3; i++ {
		d.Process(reading(300, 8))
	}
	assert.True(t, d.Present())

	// Detection has lasted longer than the minimum dwell.
	*clock = clock.Add(3 * time.Second)

	for i := 0; i < 9; i++ {
		assert.True(t, d.Process(reading(2000, 0)), "presence must survive miss %d", i+1)
	}
	assert.False(t, d.Process(reading(2000, 0)), "presence must clear at the 10th miss")
}

func TestDwellGuardBlocksEarlyClear(t *testing.T) {
	d, clock := newTestDetector(testConfig())

	for i := 0; i < 3; i++ {
		d.Process(reading(300, 8))
	}
	assert.True(t, d.Present())

	// Ten misses arrive before the detection is 2s old: guard holds.
	for i := 0; i < 10; i++ {
		assert.True(t, d.Process(reading(2000, 0)))
	}

	// Once the dwell has elapsed, the very next miss clears.
	*clock = clock.Add(2 * time.Second)
	assert.False(t, d.Process(reading(2000, 0)))
}

func TestAbortedRunDoesNotShortenDwell(t *testing.T) {
	d, clock := newTestDetector(testConfig())

	// A short run of qualifying frames that never reaches the window,
	// aborted by a miss.
	d.Process(reading(390, 6))
	d.Process(reading(380, 6))
	d.Process(reading(2000, 0))
	assert.False(t, d.Present())

	// Much later a real detection starts from scratch.
	*clock = clock.Add(time.Hour)
	for i := 0; i < 3; i++ {
		d.Process(reading(300, 8))
	}
	assert.True(t, d.Present())

	// Ten immediate misses: the dwell guard counts from the fresh
	// detection, not from the aborted run an hour earlier.
	for i := 0; i < 10; i++ {
		assert.True(t, d.Process(reading(2000, 0)),
			"presence must survive immediate miss %d", i+1)
	}

	*clock = clock.Add(2 * time.Second)
	assert.False(t, d.Process(reading(2000, 0)))
}

func TestJumpNeverTriggersByItself(t *testing.T) {
	d, _ := newTestDetector(testConfig())

	// Two qualifying frames, one short of the required window.
	assert.False(t, d.Process(reading(390, 6)))
	assert.False(t, d.Process(reading(380, 6)))

	// A 320mm jump would complete the window but is implausible while
	// the subject is being tracked.
	assert.False(t, d.Process(reading(60, 8)),
		"a >300mm jump must not complete the detection window")
}

func TestCountersNeverBothNonzero(t *testing.T) {
	d, clock := newTestDetector(testConfig())

	seq := []*sensor.ProximityReading{
		reading(2000, 0),
		reading(1900, 0),
		reading(390, 6),
		reading(380, 7),
		reading(370, 8),
		nil,
		reading(2000, 0),
		{Valid: false, Timestamp: time.Now()},
		reading(350, 7),
	}
	for i, r := range seq {
		d.Process(r)
		st := d.State()
		bothNonzero := st.ConsecutiveDetections > 0 && st.ConsecutiveNonDetections > 0
		assert.False(t, bothNonzero, "both counters nonzero after reading %d", i+1)
		if i == 4 {
			*clock = clock.Add(3 * time.Second)
		}
	}
}

func TestInvalidReadingFallback(t *testing.T) {
	cfg := testConfig()
	d, clock := newTestDetector(cfg)

	for i := 0; i < 3; i++ {
		d.Process(reading(300, 8))
	}
	assert.True(t, d.Present())
	*clock = clock.Add(time.Hour)

	// Invalid readings clear presence only after twice the usual count,
	// regardless of dwell.
	for i := 0; i < 2*cfg.NoPresenceRequired-1; i++ {
		assert.True(t, d.Process(nil), "presence must survive invalid reading %d", i+1)
	}
	assert.False(t, d.Process(nil), "presence must clear after sustained sensor unavailability")
}

func TestZoneCorroboration(t *testing.T) {
	d, _ := newTestDetector(testConfig())

	// Close frames without enough zone support never count as detections.
	for i := 0; i < 10; i++ {
		assert.False(t, d.Process(reading(200, 2)))
	}
	st := d.State()
	assert.Zero(t, st.ConsecutiveDetections)
}

func TestConfidenceWindow(t *testing.T) {
	d, _ := newTestDetector(testConfig())

	assert.Zero(t, d.Confidence())

	// Five qualifying, five not: confidence is the positive fraction of
	// the last ten verdicts.
	for i := 0; i < 5; i++ {
		d.Process(reading(300, 8))
	}
	for i := 0; i < 5; i++ {
		d.Process(reading(2000, 0))
	}
	assert.InDelta(t, 0.5, d.Confidence(), 1e-9)

	// Invalid readings carry no verdict and leave confidence untouched.
	d.Process(nil)
	assert.InDelta(t, 0.5, d.Confidence(), 1e-9)
}

func TestReset(t *testing.T) {
	d, _ := newTestDetector(testConfig())

	for i := 0; i < 3; i++ {
		d.Process(reading(300, 8))
	}
	assert.True(t, d.Present())

	d.Reset()
	assert.False(t, d.Present())
	assert.Zero(t, d.Confidence())
	st := d.State()
	assert.Zero(t, st.ConsecutiveDetections)
	assert.Zero(t, st.ConsecutiveNonDetections)
}
