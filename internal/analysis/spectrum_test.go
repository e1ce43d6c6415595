package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/glide/internal/metrics"
)

func sine(n int, dt, freq, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = offset + math.Sin(2*math.Pi*freq*float64(i)*dt)
	}
	return out
}

func TestDominantFrequency(t *testing.T) {
	tests := []struct {
		name string
		n    int
		dt   float64
		freq float64
	}{
		{"power of two", 1024, 0.01, 2.5},
		{"odd length", 1000, 0.005, 4},
		{"slow", 600, 0.1, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DominantFrequency(sine(tt.n, tt.dt, tt.freq, 100), tt.dt)
			if err != nil {
				t.Fatal(err)
			}
			resolution := 1 / (float64(tt.n) * tt.dt)
			if math.Abs(got-tt.freq) > resolution {
				t.Errorf("got %.4f Hz, want %.4f ± %.4f", got, tt.freq, resolution)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	s, err := Analyze(sine(500, 0.01, 5, 0), 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Freqs) != 251 || len(s.Power) != 251 {
		t.Errorf("expected 251 bins, got %d", len(s.Freqs))
	}
	if s.Freqs[250] != 50 {
		t.Errorf("last bin should be Nyquist, got %g", s.Freqs[250])
	}
	if math.Abs(s.Period-0.2) > 1e-9 {
		t.Errorf("period = %g", s.Period)
	}
	if s.Power[0] > 1e-9 {
		t.Error("mean should be removed")
	}
}

func TestAnalyze_Flat(t *testing.T) {
	s, err := Analyze([]float64{3, 3, 3, 3, 3, 3}, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if s.Peak != 0 || s.Period != 0 {
		t.Errorf("flat series should have no peak, got %g", s.Peak)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	if _, err := Analyze([]float64{1, 2}, 0.1); !errors.Is(err, ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
	if _, err := Analyze([]float64{1, 2, 3, 4}, 0); err == nil {
		t.Error("expected an error for zero dt")
	}
}

func TestSampleInterval(t *testing.T) {
	uniform := []metrics.Record{{Time: 0}, {Time: 0.5}, {Time: 1}, {Time: 1.5}}
	dt, err := SampleInterval(uniform)
	if err != nil || dt != 0.5 {
		t.Errorf("SampleInterval = %g, %v", dt, err)
	}

	ragged := []metrics.Record{{Time: 0}, {Time: 0.5}, {Time: 0.7}}
	if _, err := SampleInterval(ragged); err == nil {
		t.Error("expected an error for uneven spacing")
	}
}
