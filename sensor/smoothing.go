package sensor

import (
	"github.com/gammazero/deque"
)

// Window is a fixed-size moving average over the most recent samples.
// Used to take the jitter out of raw lux values before they reach the
// brightness mapper, so a flickering lamp does not cause retarget churn.
type Window struct {
	values   deque.Deque[float64]
	capacity int
	sum      float64
}

// NewWindow creates a smoothing window over the given number of samples.
// A capacity below 1 is treated as 1 (no smoothing).
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{capacity: capacity}
}

// Add pushes a sample and returns the mean over the window.
func (w *Window) Add(value float64) float64 {
	w.values.PushBack(value)
	w.sum += value
	if w.values.Len() > w.capacity {
		w.sum -= w.values.PopFront()
	}
	return w.sum / float64(w.values.Len())
}

// Len returns the number of samples currently in the window.
func (w *Window) Len() int {
	return w.values.Len()
}

// Reset drops all samples.
func (w *Window) Reset() {
	w.values.Clear()
	w.sum = 0
}
