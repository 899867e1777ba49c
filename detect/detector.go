// Package detect turns the noisy per-frame proximity readings into a
// stable presence verdict. The detector is deliberately conservative:
// a person is only "present" after several consecutive qualifying frames,
// and only "absent" again after a longer run of non-qualifying frames plus
// a minimum dwell, so a hand waved past the sensor or a single glitched
// frame never toggles the display.
package detect

import (
	"log/slog"
	"time"

	"github.com/gammazero/deque"

	"github.com/homedash/presenced/config"
	"github.com/homedash/presenced/sensor"
)

const (
	// maxDistanceJumpMM is the largest distance change between two valid
	// frames that still counts as natural movement at the sensor's
	// sampling rate (30 cm per frame at 10-20 Hz is already a sprint).
	maxDistanceJumpMM = 300

	// minDwell is how long a detection must have lasted before the
	// detector is willing to clear it again.
	minDwell = 2 * time.Second

	// confidenceWindow is how many recent per-frame verdicts feed the
	// diagnostic confidence value.
	confidenceWindow = 10

	// historyCap bounds the verdict history ring.
	historyCap = 20
)

// State is the detector's mutable state. It is owned exclusively by the
// Detector; callers get copies via Detector.State.
type State struct {
	HumanPresent             bool
	ConsecutiveDetections    int
	ConsecutiveNonDetections int
	LastTransitionTime       time.Time
	DetectionStart           time.Time // start of the latest detection run; zero before any
}

// Detector is the presence state machine. Not safe for concurrent use;
// the orchestrator owns it behind its single-writer boundary.
type Detector struct {
	cfg   config.DetectionConfig
	state State

	lastValidDistance int
	haveLastDistance  bool
	lastFrameDetected bool

	history deque.Deque[bool]

	now func() time.Time
}

// NewDetector creates a detector with the given tuning.
func NewDetector(cfg config.DetectionConfig) *Detector {
	return &Detector{
		cfg: cfg,
		now: time.Now,
	}
}

// Process incorporates one reading (or its absence) and returns the
// current presence verdict. A nil reading means the poll produced no new
// data; an invalid reading means the sensor failed to range.
func (d *Detector) Process(reading *sensor.ProximityReading) bool {
	if reading == nil || !reading.Valid {
		return d.handleInvalidReading()
	}

	detected := d.meetsDetectionCriteria(reading)
	d.recordVerdict(detected)

	if detected {
		d.state.ConsecutiveDetections++
		d.state.ConsecutiveNonDetections = 0
		// Refreshed on every qualifying frame until presence latches, so
		// an aborted run never leaves a stale start time behind for the
		// dwell guard of a later detection.
		if !d.state.HumanPresent {
			d.state.DetectionStart = d.now()
		}
	} else {
		d.state.ConsecutiveDetections = 0
		d.state.ConsecutiveNonDetections++
	}

	if !d.state.HumanPresent && d.state.ConsecutiveDetections >= d.cfg.ConsecutiveRequired {
		d.state.HumanPresent = true
		d.state.LastTransitionTime = d.now()
		slog.Info("Human detected",
			"distance_mm", reading.DistanceMM,
			"zones", reading.ZonesInRange,
			"consecutive", d.state.ConsecutiveDetections)
	} else if d.state.HumanPresent && d.shouldClearPresence() {
		d.state.HumanPresent = false
		d.state.LastTransitionTime = d.now()
		d.state.DetectionStart = time.Time{}
		slog.Info("Human left detection area",
			"consecutive_non_detections", d.state.ConsecutiveNonDetections)
	}

	d.lastValidDistance = reading.DistanceMM
	d.haveLastDistance = true
	d.lastFrameDetected = detected

	return d.state.HumanPresent
}

// meetsDetectionCriteria computes the per-frame verdict: close enough,
// enough zones, and plausible movement.
func (d *Detector) meetsDetectionCriteria(reading *sensor.ProximityReading) bool {
	distanceOK := reading.DistanceMM <= d.cfg.ThresholdMM
	zonesOK := reading.ZonesInRange >= d.cfg.DetectionZones
	return distanceOK && zonesOK && d.plausibleMovement(reading)
}

// plausibleMovement rejects frames that cannot belong to a person moving
// at natural speed: teleport-sized distance jumps, and close hits without
// spatial corroboration from neighboring zones. The jump test only
// applies while the previous frame was tracking the subject; before
// that, the closest-zone distance legitimately leaps around as body
// parts enter the grid.
func (d *Detector) plausibleMovement(reading *sensor.ProximityReading) bool {
	if d.haveLastDistance && d.lastFrameDetected {
		jump := reading.DistanceMM - d.lastValidDistance
		if jump < 0 {
			jump = -jump
		}
		if jump > maxDistanceJumpMM {
			slog.Debug("Rejecting frame: implausible distance jump",
				"previous_mm", d.lastValidDistance, "current_mm", reading.DistanceMM)
			return false
		}
	}

	minZones := d.cfg.DetectionZones - 1
	if minZones < 1 {
		minZones = 1
	}
	if reading.DistanceMM <= d.cfg.ThresholdMM && reading.ZonesInRange < minZones {
		slog.Debug("Rejecting frame: insufficient zone corroboration",
			"zones", reading.ZonesInRange, "needed", minZones, "distance_mm", reading.DistanceMM)
		return false
	}

	return true
}

// shouldClearPresence applies the non-detection count plus the minimum
// dwell guard. A detection that never recorded a start time (cleared via
// the unavailability fallback and re-entered oddly) skips the guard.
func (d *Detector) shouldClearPresence() bool {
	if d.state.ConsecutiveNonDetections < d.cfg.NoPresenceRequired {
		return false
	}
	if d.state.DetectionStart.IsZero() {
		return true
	}
	return d.now().Sub(d.state.DetectionStart) >= minDwell
}

// handleInvalidReading treats missing or invalid frames as non-detections
// with reduced weight: presence is only cleared after twice the usual
// number of consecutive misses, and the dwell guard does not apply
// (a sensor that went away should not keep the display awake forever).
func (d *Detector) handleInvalidReading() bool {
	d.state.ConsecutiveDetections = 0
	d.state.ConsecutiveNonDetections++

	if d.state.HumanPresent &&
		d.state.ConsecutiveNonDetections >= 2*d.cfg.NoPresenceRequired {
		d.state.HumanPresent = false
		d.state.LastTransitionTime = d.now()
		d.state.DetectionStart = time.Time{}
		slog.Warn("Presence cleared due to sensor unavailability",
			"consecutive_misses", d.state.ConsecutiveNonDetections)
	}

	return d.state.HumanPresent
}

func (d *Detector) recordVerdict(detected bool) {
	d.history.PushBack(detected)
	if d.history.Len() > historyCap {
		d.history.PopFront()
	}
}

// State returns a copy of the detector state for diagnostics.
func (d *Detector) State() State {
	return d.state
}

// Present returns the current presence verdict without processing a
// reading.
func (d *Detector) Present() bool {
	return d.state.HumanPresent
}

// Confidence is the fraction of positive per-frame verdicts among the
// last ten recorded. Diagnostic only; it never feeds the transitions.
func (d *Detector) Confidence() float64 {
	n := d.history.Len()
	if n == 0 {
		return 0
	}
	window := confidenceWindow
	if n < window {
		window = n
	}
	positives := 0
	for i := n - window; i < n; i++ {
		if d.history.At(i) {
			positives++
		}
	}
	return float64(positives) / float64(window)
}

// Reset drops all state, for recalibration.
func (d *Detector) Reset() {
	slog.Info("Resetting presence detection state")
	d.state = State{}
	d.haveLastDistance = false
	d.lastValidDistance = 0
	d.lastFrameDetected = false
	d.history.Clear()
}
