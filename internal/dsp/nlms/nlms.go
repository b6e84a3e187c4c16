// Package nlms implements a blind Normalized Least Mean Squares adaptive
// echo canceller for mono float32 PCM audio.
//
// Unlike a reference-based AEC, the canceller never sees the far-end signal
// or the true echo path. It learns a linear predictor of each sample from the
// preceding filter-length samples of its own input and emits the prediction
// error as the cleaned output: the predictable (echoed, correlated) part of
// the signal is absorbed by the filter, the unpredictable part passes
// through.
//
// State is owned by exactly one processing call. Create a fresh Canceller
// per signal; weights never persist across calls.
package nlms

import (
	"math"
	"time"
)

const (
	// DefaultFilterLength is the adaptive FIR length in taps. 1024 taps at
	// 44100 Hz covers roughly 23 ms of echo tail.
	DefaultFilterLength = 1024

	// DefaultStepSize is the NLMS step size mu (0 < mu < 2). The step applied
	// per sample is normalized by the tap-buffer energy, so this value bounds
	// adaptation speed independent of signal level.
	DefaultStepSize = 0.8

	// DefaultOverlapFactor divides the chunk size to produce the nominal
	// overlap carried by the outer processing loop.
	DefaultOverlapFactor = 4

	// ConvergenceThreshold is the error magnitude below which the filter is
	// first considered converged.
	ConvergenceThreshold = 5e-4

	// chunkSize is the outer-loop buffering granularity in samples.
	chunkSize = 128

	// stabilityFactor guards the step-size division when the tap buffer
	// carries no energy (leading silence).
	stabilityFactor = 1e-8
)

// Canceller is a single-use blind NLMS echo canceller. The zero value is not
// usable; use New.
type Canceller struct {
	weights []float64 // adaptive FIR coefficients
	buffer  []float64 // tapped delay line, most-recent-first
	step    float64   // NLMS step size mu
	overlap int       // nominal overlap samples per chunk

	started     time.Time
	converged   bool
	convergence time.Duration
}

// New creates a Canceller with the given filter length, step size and
// overlap factor. Non-positive arguments fall back to the defaults.
func New(filterLength int, stepSize float64, overlapFactor int) *Canceller {
	if filterLength <= 0 {
		filterLength = DefaultFilterLength
	}
	if stepSize <= 0 {
		stepSize = DefaultStepSize
	}
	if overlapFactor <= 0 {
		overlapFactor = DefaultOverlapFactor
	}
	return &Canceller{
		weights: make([]float64, filterLength),
		buffer:  make([]float64, filterLength),
		step:    stepSize,
		overlap: chunkSize / overlapFactor,
	}
}

// processSample runs one step of the adaptive recursion: shift the delay
// line, predict, emit the prediction error, and update the weights with the
// energy-normalized step.
func (c *Canceller) processSample(x float64) float64 {
	// Shift the delay line right and insert the new sample at tap 0.
	copy(c.buffer[1:], c.buffer[:len(c.buffer)-1])
	c.buffer[0] = x

	var y, power float64
	for k, b := range c.buffer {
		y += c.weights[k] * b
		power += b * b
	}

	e := x - y

	step := c.step / (power + stabilityFactor)
	scale := step * e
	for k, b := range c.buffer {
		c.weights[k] += scale * b
	}

	if !c.converged && math.Abs(e) < ConvergenceThreshold {
		c.converged = true
		c.convergence = time.Since(c.started)
	}

	return e
}

// Process runs the canceller over the whole signal and returns the cleaned
// output. The outer loop advances in chunks of chunkSize − overlap samples;
// each sample is still processed exactly once, in order, so chunk boundaries
// never touch the adaptive recursion. Convergence time is recorded from call
// entry; if the error never drops below ConvergenceThreshold it is the total
// elapsed time of the call.
func (c *Canceller) Process(signal []float32) []float32 {
	c.started = time.Now()
	out := make([]float32, len(signal))
	if len(signal) == 0 {
		c.convergence = time.Since(c.started)
		return out
	}

	advance := chunkSize - c.overlap
	if advance <= 0 {
		advance = chunkSize
	}

	next := 0 // first unprocessed sample
	for start := 0; start < len(signal); start += advance {
		end := start + chunkSize
		if end > len(signal) {
			end = len(signal)
		}
		for i := next; i < end; i++ {
			out[i] = float32(c.processSample(float64(signal[i])))
		}
		if end > next {
			next = end
		}
		if next >= len(signal) {
			break
		}
	}

	if !c.converged {
		c.convergence = time.Since(c.started)
	}
	return out
}

// Converged reports whether the error dropped below ConvergenceThreshold at
// any point during Process.
func (c *Canceller) Converged() bool {
	return c.converged
}

// Convergence returns the recorded convergence time. Valid after Process.
func (c *Canceller) Convergence() time.Duration {
	return c.convergence
}

// FilterLength returns the number of adaptive taps.
func (c *Canceller) FilterLength() int {
	return len(c.weights)
}

// WeightsFinite reports whether every filter coefficient is a finite number.
// Used to verify numerical stability after processing.
func (c *Canceller) WeightsFinite() bool {
	for _, w := range c.weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return false
		}
	}
	return true
}
