package kalman

import (
	"math"
	"math/rand"
	"testing"
)

// TestUpdateEquations verifies one filter step against the hand-computed
// recursion: P += Q; K = P/(P+R); x += K(z−x); P = (1−K)P.
func TestUpdateEquations(t *testing.T) {
	d := New(DefaultMeasurementNoise)

	p := initialCovariance + DefaultProcessNoise
	k := p / (p + DefaultMeasurementNoise)
	wantX := k * 0.8 // first estimate from x=0, z=0.8
	wantP := (1 - k) * p

	got := d.Update(0.8)
	if math.Abs(got-wantX) > 1e-12 {
		t.Errorf("estimate after one step: want %v, got %v", wantX, got)
	}
	x, pGot := d.State()
	if x != got {
		t.Errorf("State estimate %v does not match Update return %v", x, got)
	}
	if math.Abs(pGot-wantP) > 1e-12 {
		t.Errorf("covariance after one step: want %v, got %v", wantP, pGot)
	}
}

// TestCovarianceStaysPositive verifies P never goes negative over a long run,
// which is the filter's only numerical-stability claim.
func TestCovarianceStaysPositive(t *testing.T) {
	d := New(DefaultMeasurementNoise)
	rng := rand.New(rand.NewSource(7))
	for range 100000 {
		d.Update(rng.Float64()*2 - 1)
		if _, p := d.State(); p < 0 {
			t.Fatalf("covariance went negative: %v", p)
		}
	}
}

// TestConvergesToConstant verifies the estimate approaches a constant input.
func TestConvergesToConstant(t *testing.T) {
	d := New(DefaultMeasurementNoise)
	var got float64
	for range 2000 {
		got = d.Update(0.5)
	}
	if math.Abs(got-0.5) > 0.01 {
		t.Errorf("estimate after 2000 constant samples: want ≈0.5, got %v", got)
	}
}

// TestReducesNoiseVariance verifies smoothing: the variance of the filtered
// output around a constant level should be well below the input noise
// variance.
func TestReducesNoiseVariance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n = 20000
	in := make([]float32, n)
	for i := range in {
		in[i] = 0.3 + float32(rng.NormFloat64())*0.1
	}

	out := New(DefaultMeasurementNoise).Process(in)

	variance := func(s []float32) float64 {
		var mean float64
		for _, v := range s {
			mean += float64(v)
		}
		mean /= float64(len(s))
		var sum float64
		for _, v := range s {
			d := float64(v) - mean
			sum += d * d
		}
		return sum / float64(len(s))
	}

	// Skip the initial transient while the filter settles.
	vIn := variance(in[1000:])
	vOut := variance(out[1000:])
	if vOut > vIn/2 {
		t.Errorf("output variance %v not well below input variance %v", vOut, vIn)
	}
}

// TestProcessSilence verifies zero input produces zero output.
func TestProcessSilence(t *testing.T) {
	out := New(DefaultMeasurementNoise).Process(make([]float32, 4096))
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d nonzero: %v", i, v)
		}
	}
}

// TestProcessEmpty verifies empty input yields empty output.
func TestProcessEmpty(t *testing.T) {
	if out := New(DefaultMeasurementNoise).Process(nil); len(out) != 0 {
		t.Errorf("want empty output, got %d samples", len(out))
	}
}

// TestNewFallback verifies a non-positive measurement noise falls back to
// the default rather than producing a divide-by-zero-prone filter.
func TestNewFallback(t *testing.T) {
	d := New(0)
	if d.r != DefaultMeasurementNoise {
		t.Errorf("r: want %v, got %v", DefaultMeasurementNoise, d.r)
	}
}

// BenchmarkProcess measures denoising one second of audio.
func BenchmarkProcess(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	in := make([]float32, 44100)
	for i := range in {
		in[i] = rng.Float32()*2 - 1
	}
	b.ResetTimer()
	for b.Loop() {
		New(DefaultMeasurementNoise).Process(in)
	}
}
