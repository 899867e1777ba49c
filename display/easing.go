package display

// Easing maps normalized elapsed time [0,1] to normalized progress [0,1].
// All easings must be monotonically non-decreasing with f(0)=0 and f(1)=1,
// otherwise a ramp could overshoot its clamped range or finish off-target.
type Easing func(t float64) float64

// Linear progresses at constant speed.
func Linear(t float64) float64 { return t }

// EaseInOut is a piecewise cubic: slow start, fast middle, slow end.
func EaseInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

// Quintic is the fifth-order variant of EaseInOut. The steeper shoulders
// make the first and last moments of a fade nearly invisible, which is why
// it is the default for display transitions.
func Quintic(t float64) float64 {
	if t < 0.5 {
		return 16 * t * t * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u*u*u/2
}

// EasingForName resolves a configured easing name. Unknown names fall back
// to Quintic; config validation rejects them before they get here.
func EasingForName(name string) Easing {
	switch name {
	case "linear":
		return Linear
	case "ease_in_out":
		return EaseInOut
	default:
		return Quintic
	}
}
