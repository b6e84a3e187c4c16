// Package emphasis implements a complementary first-order pre-emphasis /
// de-emphasis filter pair for mono float32 PCM audio.
//
// Pre-emphasis (H(z) = 1 - a*z^-1) tilts the spectrum upward before the
// adaptive stages so high-frequency content is not drowned out during
// adaptation; de-emphasis (the matching 1/(1 - a*z^-1) integrator) restores
// the original tilt afterwards. With no intervening modification the pair is
// an exact round-trip:
//
//	De(Pre(x)) == x
//
// given the same coefficient and the shared y[0] = x[0] initial condition.
package emphasis

// DefaultCoefficient is the emphasis coefficient shared by both filters.
// 0.95 is the moderate value commonly used for mixed speech/audio content.
const DefaultCoefficient = 0.95

// Pre applies the first-order differencer y[n] = x[n] - a*x[n-1], with
// y[0] = x[0]. Returns a new slice of the same length.
func Pre(signal []float32, alpha float64) []float32 {
	out := make([]float32, len(signal))
	if len(signal) == 0 {
		return out
	}
	a := float32(alpha)
	out[0] = signal[0]
	for n := 1; n < len(signal); n++ {
		out[n] = signal[n] - a*signal[n-1]
	}
	return out
}

// De applies the first-order integrator y[n] = x[n] + a*y[n-1], recursive on
// its own output, with y[0] = x[0]. Returns a new slice of the same length.
func De(signal []float32, alpha float64) []float32 {
	out := make([]float32, len(signal))
	if len(signal) == 0 {
		return out
	}
	a := float32(alpha)
	out[0] = signal[0]
	for n := 1; n < len(signal); n++ {
		out[n] = signal[n] + a*out[n-1]
	}
	return out
}
