package pipeline

import (
	"math"
	"testing"
)

// sine generates n samples of a sine at freq Hz, 44100 Hz rate.
func sine(freq float64, amp float32, n int) []float32 {
	out := make([]float32, n)
	for i := range n {
		t := float64(i) / 44100.0
		out[i] = amp * float32(math.Sin(2*math.Pi*freq*t))
	}
	return out
}

// TestDefaultParams verifies the fixed engine constants.
func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if p.EchoIntensity != 0.5 {
		t.Errorf("EchoIntensity: want 0.5, got %v", p.EchoIntensity)
	}
	if p.KalmanGain != 0.05 {
		t.Errorf("KalmanGain: want 0.05, got %v", p.KalmanGain)
	}
	if p.NLMSStepSize != 0.8 {
		t.Errorf("NLMSStepSize: want 0.8, got %v", p.NLMSStepSize)
	}
	if p.FilterLength != 1024 {
		t.Errorf("FilterLength: want 1024, got %v", p.FilterLength)
	}
	if p.OverlapFactor != 4 {
		t.Errorf("OverlapFactor: want 4, got %v", p.OverlapFactor)
	}
	if p.SampleRate != 44100 {
		t.Errorf("SampleRate: want 44100, got %v", p.SampleRate)
	}
}

// TestNormalizedClampsDelay verifies the delay range and zero-field
// defaulting of Normalized.
func TestNormalizedClampsDelay(t *testing.T) {
	p := Params{EchoDelayMs: 5}.Normalized()
	if p.EchoDelayMs != 10 {
		t.Errorf("delay below range: want 10, got %v", p.EchoDelayMs)
	}
	p = Params{EchoDelayMs: 900}.Normalized()
	if p.EchoDelayMs != 500 {
		t.Errorf("delay above range: want 500, got %v", p.EchoDelayMs)
	}
	p = Params{}.Normalized()
	if p != DefaultParams() {
		t.Errorf("zero params should normalize to defaults, got %+v", p)
	}
}

// TestSetParameters verifies delay updates apply to subsequent AddEcho calls.
func TestSetParameters(t *testing.T) {
	proc := New(DefaultParams())
	proc.SetParameters(250)
	if got := proc.Params().EchoDelayMs; got != 250 {
		t.Errorf("EchoDelayMs: want 250, got %v", got)
	}
	proc.SetParameters(1000)
	if got := proc.Params().EchoDelayMs; got != 500 {
		t.Errorf("EchoDelayMs after clamp: want 500, got %v", got)
	}
}

// TestAddEchoReport verifies AddEcho computes only latency: no dB metric
// flags are set on the report.
func TestAddEchoReport(t *testing.T) {
	proc := New(DefaultParams())
	out, rep := proc.AddEcho(sine(440, 0.5, 10000))

	if len(out) != 10000 {
		t.Fatalf("output length: want 10000, got %d", len(out))
	}
	if rep.HasERLE || rep.HasREA || rep.HasSNR || rep.HasConvergence {
		t.Errorf("AddEcho should compute only latency, got %+v", rep)
	}
	if rep.Latency <= 0 {
		t.Errorf("latency not recorded: %v", rep.Latency)
	}
}

// TestSilenceInvariance runs all three operations on all-zero input: the
// output must stay all-zero and ERLE == REA == 0 where computed.
func TestSilenceInvariance(t *testing.T) {
	silence := make([]float32, 20000)
	proc := New(DefaultParams())

	assertZero := func(name string, out []float32) {
		t.Helper()
		for i, v := range out {
			if v != 0 {
				t.Fatalf("%s: sample %d nonzero: %v", name, i, v)
			}
		}
	}

	out, _ := proc.AddEcho(silence)
	assertZero("AddEcho", out)

	out, rep := proc.RemoveEcho(silence)
	assertZero("RemoveEcho", out)
	if rep.ERLE != 0 || rep.REA != 0 {
		t.Errorf("RemoveEcho on silence: want ERLE=REA=0, got %v/%v", rep.ERLE, rep.REA)
	}

	out, rep = proc.ProcessNoiseAndEcho(silence)
	assertZero("ProcessNoiseAndEcho", out)
	if rep.ERLE != 0 || rep.REA != 0 {
		t.Errorf("ProcessNoiseAndEcho on silence: want ERLE=REA=0, got %v/%v", rep.ERLE, rep.REA)
	}
}

// TestRemoveEchoImprovesERLE is the end-to-end cancellation scenario: a sine
// with synthetic echo run through RemoveEcho must report positive ERLE (the
// cancelled output carries less energy than the echoed input).
func TestRemoveEchoImprovesERLE(t *testing.T) {
	proc := New(DefaultParams())
	proc.SetParameters(100)

	echoed, _ := proc.AddEcho(sine(440, 0.5, 44100))
	out, rep := proc.RemoveEcho(echoed)

	if len(out) != len(echoed) {
		t.Fatalf("output length: want %d, got %d", len(echoed), len(out))
	}
	if !rep.HasERLE || !rep.HasREA || !rep.HasConvergence {
		t.Fatalf("RemoveEcho report missing fields: %+v", rep)
	}
	if rep.ERLE <= 0 {
		t.Errorf("ERLE after cancellation: want > 0 dB, got %v", rep.ERLE)
	}
	if rep.HasSNR {
		t.Error("RemoveEcho must not compute SNR")
	}
}

// TestProcessNoiseAndEchoReport verifies the combined path computes the full
// metric set including SNR.
func TestProcessNoiseAndEchoReport(t *testing.T) {
	proc := New(DefaultParams())
	in := sine(440, 0.5, 22050)
	out, rep := proc.ProcessNoiseAndEcho(in)

	if len(out) != len(in) {
		t.Fatalf("output length: want %d, got %d", len(in), len(out))
	}
	if !rep.HasERLE || !rep.HasREA || !rep.HasSNR || !rep.HasConvergence {
		t.Errorf("combined path report missing fields: %+v", rep)
	}
}

// TestMetricsCarryOver verifies the accumulated record's staleness contract:
// AddEcho never touches SNR, so the value from an earlier combined run
// survives.
func TestMetricsCarryOver(t *testing.T) {
	proc := New(DefaultParams())
	in := sine(440, 0.5, 22050)

	proc.ProcessNoiseAndEcho(in)
	snrBefore := proc.Metrics().SNR

	proc.AddEcho(in)
	m := proc.Metrics()
	if m.SNR != snrBefore {
		t.Errorf("AddEcho changed SNR: %v → %v", snrBefore, m.SNR)
	}
	if m.LatencyMs < 0 {
		t.Errorf("latency not refreshed: %v", m.LatencyMs)
	}
}

// TestEmptySignal verifies every operation treats an empty signal as a
// valid degenerate input.
func TestEmptySignal(t *testing.T) {
	proc := New(DefaultParams())

	if out, _ := proc.AddEcho(nil); len(out) != 0 {
		t.Errorf("AddEcho(nil): want empty, got %d samples", len(out))
	}
	if out, rep := proc.RemoveEcho(nil); len(out) != 0 || rep.ERLE != 0 {
		t.Errorf("RemoveEcho(nil): want empty/neutral, got %d samples ERLE=%v", len(out), rep.ERLE)
	}
	if out, rep := proc.ProcessNoiseAndEcho(nil); len(out) != 0 || rep.SNR != 0 {
		t.Errorf("ProcessNoiseAndEcho(nil): want empty/neutral, got %d samples SNR=%v", len(out), rep.SNR)
	}
}

// TestRunDispatch verifies Run routes by op name and rejects unknown ops.
func TestRunDispatch(t *testing.T) {
	proc := New(DefaultParams())
	in := sine(440, 0.3, 5000)

	for _, op := range []Op{OpAddEcho, OpRemoveEcho, OpNoiseAndEcho} {
		out, _, err := proc.Run(op, in)
		if err != nil {
			t.Errorf("Run(%s): unexpected error %v", op, err)
		}
		if len(out) != len(in) {
			t.Errorf("Run(%s): output length %d, want %d", op, len(out), len(in))
		}
	}

	if _, _, err := proc.Run("reverse", in); err != ErrUnknownOp {
		t.Errorf("Run(unknown): want ErrUnknownOp, got %v", err)
	}
}
