// Package analysis computes quantitative quality metrics for the adaptive
// pipeline: ERLE and REA from a before/after signal pair, and a
// threshold-based SNR estimate from a single signal. All results are in dB
// and unbounded; negative values mean the "enhancement" added energy.
package analysis

import "math"

const (
	// erleChunk is the accumulation granularity for ERLE/REA in samples.
	erleChunk = 256

	// snrFrame is the frame size for signal/noise classification in samples.
	snrFrame = 128

	// snrEnergyThreshold separates signal frames from noise frames: a frame
	// whose summed squared energy exceeds this is counted as signal.
	snrEnergyThreshold = 0.005

	// epsEnergy stabilizes the ERLE/REA ratio against all-zero signals.
	epsEnergy = 1e-12

	// epsSNR stabilizes the SNR ratio against missing signal or noise frames.
	epsSNR = 1e-10
)

// energyPair accumulates the chunked squared-sample energies of the two
// signals over their common length.
func energyPair(original, processed []float32) (orig, proc float64) {
	n := len(original)
	if len(processed) < n {
		n = len(processed)
	}
	for start := 0; start < n; start += erleChunk {
		end := start + erleChunk
		if end > n {
			end = n
		}
		var o, p float64
		for i := start; i < end; i++ {
			o += float64(original[i]) * float64(original[i])
			p += float64(processed[i]) * float64(processed[i])
		}
		orig += o
		proc += p
	}
	return orig, proc
}

// ERLE returns the Echo Return Loss Enhancement in dB: the power-ratio
// measure 10·log10((Σ original² + ε)/(Σ processed² + ε)). Positive values
// mean the processed signal carries less energy than the original. Two
// all-zero signals yield exactly 0.
func ERLE(original, processed []float32) float64 {
	orig, proc := energyPair(original, processed)
	return 10 * math.Log10((orig+epsEnergy)/(proc+epsEnergy))
}

// REA returns the Residual Echo Attenuation in dB. It accumulates the same
// energies as ERLE but reports them on the 20·log10 amplitude-ratio scale;
// the two are consumed as independent diagnostics.
func REA(original, processed []float32) float64 {
	orig, proc := energyPair(original, processed)
	return 20 * math.Log10((orig+epsEnergy)/(proc+epsEnergy))
}

// SNR estimates a signal-to-noise ratio in dB from a single signal. Frames
// of 128 samples are classified as signal when their summed squared energy
// exceeds the threshold, otherwise as noise; the result is the dB ratio of
// the accumulated signal energy to the accumulated noise energy. This is an
// energy-threshold heuristic, not a reference-based SNR.
func SNR(signal []float32) float64 {
	var signalPower, noisePower float64
	for start := 0; start < len(signal); start += snrFrame {
		end := start + snrFrame
		if end > len(signal) {
			end = len(signal)
		}
		var energy float64
		for i := start; i < end; i++ {
			energy += float64(signal[i]) * float64(signal[i])
		}
		if energy > snrEnergyThreshold {
			signalPower += energy
		} else {
			noisePower += energy
		}
	}
	return 10 * math.Log10((signalPower+epsSNR)/(noisePower+epsSNR))
}
