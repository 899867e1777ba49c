package display

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// DisplayState mirrors what the fade engine believes about the hardware.
// CurrentBrightness is the last value confirmed written; a failed write
// never advances it.
type DisplayState struct {
	CurrentBrightness int
	TargetBrightness  int
	IsFading          bool
}

// FadeRequest describes one ramp. Easing may be nil for linear.
type FadeRequest struct {
	Target   int
	Duration time.Duration
	Easing   Easing
}

// FadeEngine executes cancellable eased brightness ramps against a
// Channel. It is the channel's only writer: a new request supersedes the
// in-flight ramp and joins its shutdown before starting, so at most one
// goroutine ever writes brightness.
type FadeEngine struct {
	ch    Channel
	min   int
	max   int
	steps int

	mu     sync.Mutex
	state  DisplayState
	cancel chan struct{}
	done   chan struct{}
}

// NewFadeEngine creates an engine over the given channel. The usable range
// is the configured [min,max] intersected with the channel's own range.
// The starting brightness is read from the channel; if that fails the
// engine assumes min and corrects itself on the first successful write.
func NewFadeEngine(ch Channel, min, max, steps int) *FadeEngine {
	if max > ch.Max() {
		max = ch.Max()
	}
	if min < 0 {
		min = 0
	}
	if steps < 1 {
		steps = 1
	}

	current, err := ch.ReadCurrent()
	if err != nil {
		slog.Warn("Can't read current brightness, assuming minimum", "error", err)
		current = min
	}

	return &FadeEngine{
		ch:    ch,
		min:   min,
		max:   max,
		steps: steps,
		state: DisplayState{
			CurrentBrightness: current,
			TargetBrightness:  current,
		},
	}
}

// State returns a snapshot of the display state.
func (e *FadeEngine) State() DisplayState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Request starts a fade toward the clamped target. Any in-flight fade is
// cancelled and joined first, so no write from the superseded ramp can
// land after this call returns. The new ramp itself runs asynchronously.
// Requesting the current brightness is a no-op.
func (e *FadeEngine) Request(req FadeRequest) {
	target := e.clamp(req.Target)
	easing := req.Easing
	if easing == nil {
		easing = Linear
	}

	e.mu.Lock()
	if e.cancel != nil {
		close(e.cancel)
		done := e.done
		e.cancel, e.done = nil, nil
		e.mu.Unlock()
		<-done
		e.mu.Lock()
	}

	if target == e.state.CurrentBrightness {
		e.state.TargetBrightness = target
		e.state.IsFading = false
		e.mu.Unlock()
		return
	}

	cancel := make(chan struct{})
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	e.state.TargetBrightness = target
	e.state.IsFading = true
	start := e.state.CurrentBrightness
	e.mu.Unlock()

	slog.Debug("Starting fade", "from", start, "to", target, "duration", req.Duration)
	go e.run(start, target, req.Duration, easing, cancel, done)
}

// Stop cancels any in-flight fade and waits for it to wind down.
func (e *FadeEngine) Stop() {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return
	}
	close(e.cancel)
	done := e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	<-done
}

func (e *FadeEngine) run(start, target int, duration time.Duration, easing Easing, cancel, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		if e.cancel == cancel {
			e.cancel, e.done = nil, nil
		}
		e.state.IsFading = false
		e.mu.Unlock()
		close(done)
	}()

	stepDelay := duration / time.Duration(e.steps)
	timer := time.NewTimer(stepDelay)
	defer timer.Stop()

	for step := 1; step <= e.steps; step++ {
		select {
		case <-cancel:
			slog.Debug("Fade cancelled", "target", target)
			return
		case <-timer.C:
		}

		var value int
		if step == e.steps {
			// The last step lands exactly on target regardless of
			// rounding drift in the eased intermediate values.
			value = target
		} else {
			progress := easing(float64(step) / float64(e.steps))
			value = start + int(math.Round(progress*float64(target-start)))
		}
		e.writeIfChanged(value)

		if step < e.steps {
			timer.Reset(stepDelay)
		}
	}
	slog.Debug("Fade complete", "brightness", target)
}

// writeIfChanged skips values identical to the last confirmed write and
// keeps the tracked brightness honest on failure.
func (e *FadeEngine) writeIfChanged(value int) {
	value = e.clamp(value)

	e.mu.Lock()
	unchanged := value == e.state.CurrentBrightness
	e.mu.Unlock()
	if unchanged {
		return
	}

	if err := e.ch.Write(value); err != nil {
		slog.Warn("Brightness write failed", "value", value, "error", err)
		return
	}

	e.mu.Lock()
	e.state.CurrentBrightness = value
	e.mu.Unlock()
}

func (e *FadeEngine) clamp(v int) int {
	if v < e.min {
		return e.min
	}
	if v > e.max {
		return e.max
	}
	return v
}
