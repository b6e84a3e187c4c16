// Package echosim synthesizes an acoustic echo by mixing a scaled, delayed
// copy of a mono float32 PCM signal onto itself. It exists so the rest of the
// pipeline has a deterministic echo fixture to cancel: feed clean audio in,
// get echoed audio out, run the canceller, measure how much came back off.
package echosim

import "math"

const (
	// DefaultIntensity is the linear gain applied to the delayed copy.
	// 0.5 models a fairly loud reflection (-6 dB relative to the direct path).
	DefaultIntensity = 0.5

	// DefaultSampleRate is the assumed rate when the caller does not supply
	// one. 44100 Hz gives the 44.1 samples-per-millisecond conversion used
	// throughout the pipeline.
	DefaultSampleRate = 44100

	// MinDelayMs and MaxDelayMs bound the configurable echo delay.
	MinDelayMs = 10.0
	MaxDelayMs = 500.0
)

// DelaySamples converts an echo delay in milliseconds to a whole sample
// count at the given rate, truncating toward zero.
func DelaySamples(delayMs float64, sampleRate int) int {
	return int(math.Floor(delayMs * float64(sampleRate) / 1000.0))
}

// ClampDelayMs clamps a requested delay to the supported [MinDelayMs,
// MaxDelayMs] range.
func ClampDelayMs(delayMs float64) float64 {
	if delayMs < MinDelayMs {
		return MinDelayMs
	}
	if delayMs > MaxDelayMs {
		return MaxDelayMs
	}
	return delayMs
}

// AddEcho returns a new signal with a delayed, attenuated copy of signal
// mixed in:
//
//	out[i] = in[i]                                  for i <  delaySamples
//	out[i] = in[i] + in[i-delaySamples]*intensity   for i >= delaySamples
//
// No normalization or clipping is applied; samples may leave [-1, 1] and are
// only clipped when encoded to integer PCM. An empty signal yields an empty
// output.
func AddEcho(signal []float32, delayMs, intensity float64, sampleRate int) []float32 {
	out := make([]float32, len(signal))
	if len(signal) == 0 {
		return out
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	delay := DelaySamples(delayMs, sampleRate)
	if delay < 0 {
		delay = 0
	}
	gain := float32(intensity)

	copy(out, signal)
	for i := delay; i < len(signal); i++ {
		out[i] += signal[i-delay] * gain
	}
	return out
}
