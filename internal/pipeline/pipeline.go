// Package pipeline wires the DSP stages into the three top-level operations
// of the echo-cancellation engine and tracks their quality metrics.
//
// Every operation allocates fresh filter state and fresh output buffers, so
// concurrent calls share nothing. Each call returns a complete Report
// containing exactly the metrics that operation computes; the Processor also
// maintains an accumulated Metrics view that merges reports field-by-field,
// matching the behaviour of callers that poll a single metrics record after
// each call.
package pipeline

import (
	"sync"
	"time"

	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/dsp/analysis"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/dsp/echosim"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/dsp/emphasis"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/dsp/kalman"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/dsp/nlms"
)

// Op identifies a top-level processing operation.
type Op string

// Supported operations.
const (
	OpAddEcho      Op = "add_echo"
	OpRemoveEcho   Op = "remove_echo"
	OpNoiseAndEcho Op = "noise_and_echo"
)

// Valid reports whether op names a supported operation.
func (op Op) Valid() bool {
	switch op {
	case OpAddEcho, OpRemoveEcho, OpNoiseAndEcho:
		return true
	}
	return false
}

// Params are the engine tuning parameters. Only EchoDelayMs and SampleRate
// are meant to vary between calls; the rest are fixed constants of the
// processing engine exposed for tests.
type Params struct {
	EchoDelayMs   float64 // echo delay, clamped to [10, 500] ms
	EchoIntensity float64 // gain of the synthesized echo copy
	KalmanGain    float64 // measurement noise R of the denoiser
	NLMSStepSize  float64 // NLMS step size mu
	FilterLength  int     // adaptive FIR taps
	OverlapFactor int     // outer-loop overlap divisor
	SampleRate    int     // samples per second
}

// DefaultParams returns the engine defaults: 100 ms echo delay at 44100 Hz.
func DefaultParams() Params {
	return Params{
		EchoDelayMs:   100,
		EchoIntensity: echosim.DefaultIntensity,
		KalmanGain:    kalman.DefaultMeasurementNoise,
		NLMSStepSize:  nlms.DefaultStepSize,
		FilterLength:  nlms.DefaultFilterLength,
		OverlapFactor: nlms.DefaultOverlapFactor,
		SampleRate:    echosim.DefaultSampleRate,
	}
}

// Normalized returns a copy with the delay clamped and any zero-valued
// fields replaced by their defaults, so a partially filled Params (e.g. from
// a JSON request) is always safe to run.
func (p Params) Normalized() Params {
	def := DefaultParams()
	if p.EchoDelayMs == 0 {
		p.EchoDelayMs = def.EchoDelayMs
	}
	p.EchoDelayMs = echosim.ClampDelayMs(p.EchoDelayMs)
	if p.EchoIntensity == 0 {
		p.EchoIntensity = def.EchoIntensity
	}
	if p.KalmanGain == 0 {
		p.KalmanGain = def.KalmanGain
	}
	if p.NLMSStepSize == 0 {
		p.NLMSStepSize = def.NLMSStepSize
	}
	if p.FilterLength <= 0 {
		p.FilterLength = def.FilterLength
	}
	if p.OverlapFactor <= 0 {
		p.OverlapFactor = def.OverlapFactor
	}
	if p.SampleRate <= 0 {
		p.SampleRate = def.SampleRate
	}
	return p
}

// Report is the fresh per-call metrics record. The Has* flags state which
// fields the operation actually computed; everything else is left zero.
type Report struct {
	ERLE        float64       // echo return loss enhancement, dB
	REA         float64       // residual echo attenuation, dB
	SNR         float64       // signal-to-noise estimate, dB
	Latency     time.Duration // wall-clock duration of the call
	Convergence time.Duration // NLMS convergence time

	HasERLE        bool
	HasREA         bool
	HasSNR         bool
	HasConvergence bool
}

// Metrics is the accumulated view merged from successive reports. Fields an
// operation did not compute keep their previous value, so consumers reading
// this record after an AddEcho call still see the SNR from an earlier run.
type Metrics struct {
	ERLE          float64 `json:"erle"`
	SNR           float64 `json:"snr"`
	REA           float64 `json:"rea"`
	LatencyMs     float64 `json:"latency_ms"`
	ConvergenceMs float64 `json:"convergence_ms"`
}

// merge overwrites exactly the fields the report computed.
func (m *Metrics) merge(r Report) {
	m.LatencyMs = float64(r.Latency) / float64(time.Millisecond)
	if r.HasERLE {
		m.ERLE = r.ERLE
	}
	if r.HasREA {
		m.REA = r.REA
	}
	if r.HasSNR {
		m.SNR = r.SNR
	}
	if r.HasConvergence {
		m.ConvergenceMs = float64(r.Convergence) / float64(time.Millisecond)
	}
}

// Processor runs the three operations with a configurable echo delay and
// maintains the accumulated metrics record. All per-call filter state is
// local to each call, so concurrent operations are safe; the mutex guards
// only the parameters and the accumulated record.
type Processor struct {
	mu      sync.Mutex
	params  Params
	metrics Metrics
}

// New returns a Processor with the given parameters (normalized).
func New(params Params) *Processor {
	return &Processor{params: params.Normalized()}
}

// SetParameters updates the echo delay used by subsequent AddEcho calls.
// The value is clamped to the supported range.
func (p *Processor) SetParameters(echoDelayMs float64) {
	p.mu.Lock()
	p.params.EchoDelayMs = echosim.ClampDelayMs(echoDelayMs)
	p.mu.Unlock()
}

// Params returns a copy of the current parameters.
func (p *Processor) Params() Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

// Metrics returns the accumulated metrics record.
func (p *Processor) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// Run dispatches one operation by name using the processor's current
// parameters.
func (p *Processor) Run(op Op, signal []float32) ([]float32, Report, error) {
	switch op {
	case OpAddEcho:
		out, rep := p.AddEcho(signal)
		return out, rep, nil
	case OpRemoveEcho:
		out, rep := p.RemoveEcho(signal)
		return out, rep, nil
	case OpNoiseAndEcho:
		out, rep := p.ProcessNoiseAndEcho(signal)
		return out, rep, nil
	default:
		return nil, Report{}, ErrUnknownOp
	}
}

// AddEcho synthesizes an echo onto the signal. Only latency is computed.
func (p *Processor) AddEcho(signal []float32) ([]float32, Report) {
	params := p.Params()
	started := time.Now()

	out := echosim.AddEcho(signal, params.EchoDelayMs, params.EchoIntensity, params.SampleRate)

	rep := Report{Latency: time.Since(started)}
	p.record(rep)
	return out, rep
}

// RemoveEcho runs pre-emphasis → NLMS cancellation → de-emphasis and
// computes ERLE, REA, latency and convergence against the input signal.
func (p *Processor) RemoveEcho(signal []float32) ([]float32, Report) {
	params := p.Params()
	started := time.Now()

	pre := emphasis.Pre(signal, emphasis.DefaultCoefficient)
	canceller := nlms.New(params.FilterLength, params.NLMSStepSize, params.OverlapFactor)
	cancelled := canceller.Process(pre)
	out := emphasis.De(cancelled, emphasis.DefaultCoefficient)

	rep := Report{
		ERLE:           analysis.ERLE(signal, out),
		REA:            analysis.REA(signal, out),
		Latency:        time.Since(started),
		Convergence:    canceller.Convergence(),
		HasERLE:        true,
		HasREA:         true,
		HasConvergence: true,
	}
	p.record(rep)
	return out, rep
}

// ProcessNoiseAndEcho runs pre-emphasis → Kalman denoising → NLMS
// cancellation → de-emphasis and additionally computes the SNR estimate of
// the original signal.
func (p *Processor) ProcessNoiseAndEcho(signal []float32) ([]float32, Report) {
	params := p.Params()
	started := time.Now()

	pre := emphasis.Pre(signal, emphasis.DefaultCoefficient)
	denoised := kalman.New(params.KalmanGain).Process(pre)
	canceller := nlms.New(params.FilterLength, params.NLMSStepSize, params.OverlapFactor)
	cancelled := canceller.Process(denoised)
	out := emphasis.De(cancelled, emphasis.DefaultCoefficient)

	rep := Report{
		ERLE:           analysis.ERLE(signal, out),
		REA:            analysis.REA(signal, out),
		SNR:            analysis.SNR(signal),
		Latency:        time.Since(started),
		Convergence:    canceller.Convergence(),
		HasERLE:        true,
		HasREA:         true,
		HasSNR:         true,
		HasConvergence: true,
	}
	p.record(rep)
	return out, rep
}

func (p *Processor) record(rep Report) {
	p.mu.Lock()
	p.metrics.merge(rep)
	p.mu.Unlock()
}
