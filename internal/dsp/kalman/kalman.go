// Package kalman implements a scalar Kalman filter used as a sample-by-sample
// denoiser for mono float32 PCM audio. It models the clean signal as a random
// walk observed through additive measurement noise and smooths each sample
// toward the running estimate.
//
// The filter is purely recursive and O(1) per sample. The error covariance
// stays non-negative by construction, so there is no numerical guard beyond
// the update equations themselves.
package kalman

const (
	// DefaultProcessNoise is the random-walk variance Q. Small values trust
	// the model more and smooth harder.
	DefaultProcessNoise = 1e-5

	// DefaultMeasurementNoise is the observation variance R. This doubles as
	// the pipeline's "kalman gain" tuning parameter.
	DefaultMeasurementNoise = 0.05

	// initialCovariance is the starting estimation-error covariance P.
	initialCovariance = 0.1
)

// Denoiser is a single-channel scalar Kalman filter. The zero value is not
// usable; use New.
type Denoiser struct {
	q float64 // process noise covariance Q
	r float64 // measurement noise covariance R
	x float64 // current estimate
	p float64 // estimation error covariance P
}

// New returns a Denoiser with the given measurement noise R and the default
// process noise Q. A non-positive r falls back to DefaultMeasurementNoise.
func New(r float64) *Denoiser {
	if r <= 0 {
		r = DefaultMeasurementNoise
	}
	return &Denoiser{
		q: DefaultProcessNoise,
		r: r,
		p: initialCovariance,
	}
}

// Update advances the filter by one measurement and returns the new estimate.
func (d *Denoiser) Update(sample float64) float64 {
	// Prediction: the state model is a random walk, so the prediction is the
	// previous estimate with grown uncertainty.
	d.p += d.q

	// Correction.
	k := d.p / (d.p + d.r)
	d.x += k * (sample - d.x)
	d.p = (1 - k) * d.p

	return d.x
}

// Process runs the filter over a whole signal and returns a new slice of
// smoothed samples. State carries across samples within one call; create a
// fresh Denoiser per signal.
func (d *Denoiser) Process(signal []float32) []float32 {
	out := make([]float32, len(signal))
	for i, s := range signal {
		out[i] = float32(d.Update(float64(s)))
	}
	return out
}

// State returns the current estimate and error covariance (informational).
func (d *Denoiser) State() (estimate, covariance float64) {
	return d.x, d.p
}
