package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/glide/internal/metrics"
)

var ErrTooShort = errors.New("analysis: need at least 4 samples")

// Spectrum is the one-sided amplitude spectrum of a uniformly sampled
// series.
type Spectrum struct {
	Freqs  []float64
	Power  []float64
	Peak   float64 // dominant frequency, Hz
	Period float64 // 1/Peak, or 0 when the series is flat
}

// PowerSpectrum returns |X_k| for k = 0..n/2 of data with its mean removed.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	var mean float64
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	centred := make([]float64, len(data))
	for i, v := range data {
		centred[i] = v - mean
	}

	spec := fft.FFTReal(centred)
	ps := make([]float64, len(data)/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}
	return ps
}

// Analyze computes the spectrum of data sampled every dt seconds and picks
// the strongest non-zero frequency.
func Analyze(data []float64, dt float64) (Spectrum, error) {
	if len(data) < 4 {
		return Spectrum{}, ErrTooShort
	}
	if !(dt > 0) {
		return Spectrum{}, fmt.Errorf("analysis: sample interval must be positive, got %g", dt)
	}

	ps := PowerSpectrum(data)
	n := float64(len(data))
	s := Spectrum{
		Freqs: make([]float64, len(ps)),
		Power: ps,
	}
	for k := range ps {
		s.Freqs[k] = float64(k) / (n * dt)
	}

	best := 0
	for k := 1; k < len(ps); k++ {
		if ps[k] > ps[best] || best == 0 {
			best = k
		}
	}
	if ps[best] > 1e-12*math.Max(1, maxAbs(data)) {
		s.Peak = s.Freqs[best]
		s.Period = 1 / s.Peak
	}
	return s, nil
}

// DominantFrequency is Analyze reduced to the peak frequency.
func DominantFrequency(data []float64, dt float64) (float64, error) {
	s, err := Analyze(data, dt)
	return s.Peak, err
}

// SampleInterval returns the spacing of records, which must be uniform to
// within a tenth of a percent.
func SampleInterval(records []metrics.Record) (float64, error) {
	if len(records) < 2 {
		return 0, ErrTooShort
	}
	dt := records[1].Time - records[0].Time
	for i := 2; i < len(records); i++ {
		if d := records[i].Time - records[i-1].Time; math.Abs(d-dt) > 1e-3*dt {
			return 0, fmt.Errorf("analysis: records are not uniformly spaced (%g s then %g s at t=%g)", dt, d, records[i].Time)
		}
	}
	return dt, nil
}

func maxAbs(data []float64) float64 {
	var m float64
	for _, v := range data {
		m = math.Max(m, math.Abs(v))
	}
	return m
}
