package sensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_MovingAverage(t *testing.T) {
	w := NewWindow(3)

	assert.InDelta(t, 10.0, w.Add(10), 1e-9)
	assert.InDelta(t, 15.0, w.Add(20), 1e-9)
	assert.InDelta(t, 20.0, w.Add(30), 1e-9)
	// Window is full; the 10 falls out.
	assert.InDelta(t, 30.0, w.Add(40), 1e-9)
	assert.Equal(t, 3, w.Len())

	w.Reset()
	assert.Equal(t, 0, w.Len())
	assert.InDelta(t, 5.0, w.Add(5), 1e-9)
}

func TestWindow_CapacityFloor(t *testing.T) {
	w := NewWindow(0)
	assert.InDelta(t, 7.0, w.Add(7), 1e-9)
	assert.InDelta(t, 9.0, w.Add(9), 1e-9)
	assert.Equal(t, 1, w.Len())
}

func TestSimulatedProximity_WalksTowardTarget(t *testing.T) {
	s := NewSimulatedProximity()
	s.SetTargetDistance(300)

	var last Result[ProximityReading]
	prev := 3000
	for i := 0; i < 40; i++ {
		last = s.Read()
		assert.Equal(t, Fresh, last.Status)
		assert.True(t, last.Reading.Valid)
		// Motion stays within the plausible per-read step.
		jump := prev - last.Reading.DistanceMM
		if jump < 0 {
			jump = -jump
		}
		assert.LessOrEqual(t, jump, maxApproachStepMM)
		prev = last.Reading.DistanceMM
	}
	assert.Equal(t, 300, last.Reading.DistanceMM)
	assert.Greater(t, last.Reading.ZonesInRange, 5)
}

func TestSimulatedProximity_Faulting(t *testing.T) {
	s := NewSimulatedProximity()
	s.SetFaulting(true)

	res := s.Read()
	assert.Equal(t, Fresh, res.Status)
	assert.False(t, res.Reading.Valid)

	s.SetFaulting(false)
	assert.True(t, s.Read().Reading.Valid)
}

func TestZonesForDistance(t *testing.T) {
	assert.Equal(t, 0, zonesForDistance(2500))
	assert.Equal(t, 0, zonesForDistance(2000))
	assert.Equal(t, 6, zonesForDistance(400))
	assert.Equal(t, 8, zonesForDistance(50))
}

func TestScripted_ReplaysThenGoesStale(t *testing.T) {
	s := NewScripted(
		Ok(LightReading{Lux: 100, Valid: true}),
		Failed[LightReading](errors.New("i2c timeout")),
	)

	first := s.Read()
	assert.Equal(t, Fresh, first.Status)
	assert.InDelta(t, 100.0, first.Reading.Lux, 1e-9)

	second := s.Read()
	assert.Equal(t, Fault, second.Status)
	assert.Error(t, second.Err)

	assert.Equal(t, NoNewData, s.Read().Status)
	assert.Equal(t, NoNewData, s.Read().Status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "no-new-data", NoNewData.String())
	assert.Equal(t, "fault", Fault.String())
}
