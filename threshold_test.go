package main

import (
	"math"
	"testing"
)

// narrowing is a width that collapses from wide to narrow around x0.
func narrowing(f, x0, width, drop float64) float64 {
	return drop / (1 + math.Exp((f-x0)/width))
}

func TestThresholdEstimator_Step(t *testing.T) {
	te := ThresholdEstimator{Grid: 500, Exclude: 0.05}

	for _, x0 := range []float64{25, 40, 70} {
		fluences := linspace(0, 100, 101)
		fwhms := make([]float64, len(fluences))
		for i, f := range fluences {
			fwhms[i] = 2 + narrowing(f, x0, 2, 8)
		}

		got, ok := te.Estimate(fluences, fwhms)
		if !ok {
			t.Fatalf("x0 %v: threshold undefined", x0)
		}
		// grid step is 100/499
		if math.Abs(got-x0) > 0.4 {
			t.Errorf("x0 %v: threshold = %v", x0, got)
		}
	}
}

func TestThresholdEstimator_IgnoresLowEnd(t *testing.T) {
	te := ThresholdEstimator{Grid: 1000, Exclude: 0.05}

	fluences := linspace(0, 100, 101)
	fwhms := make([]float64, len(fluences))
	for i, f := range fluences {
		fwhms[i] = 2 + narrowing(f, 2, 0.5, 8) + narrowing(f, 60, 3, 6)
	}

	got, ok := te.Estimate(fluences, fwhms)
	if !ok {
		t.Fatal("threshold undefined")
	}
	if math.Abs(got-60) > 0.5 {
		t.Errorf("threshold = %v, want about 60 (the drop at 2 is excluded)", got)
	}
}

func TestThresholdEstimator_Unsorted(t *testing.T) {
	te := ThresholdEstimator{Grid: 500, Exclude: 0.05}

	fluences := []float64{}
	fwhms := []float64{}
	for i := 100; i >= 0; i-- {
		f := float64(i)
		fluences = append(fluences, f)
		fwhms = append(fwhms, 2+narrowing(f, 50, 2, 8))
	}

	got, ok := te.Estimate(fluences, fwhms)
	if !ok || math.Abs(got-50) > 0.4 {
		t.Errorf("threshold = %v (%t), want about 50", got, ok)
	}
}

func TestThresholdEstimator_Undefined(t *testing.T) {
	te := ThresholdEstimator{Grid: 500, Exclude: 0.05}

	tests := []struct {
		name             string
		fluences, fwhms []float64
	}{
		{"three points", []float64{1, 2, 3}, []float64{5, 4, 3}},
		{"repeated fluence", []float64{10, 10, 20, 30}, []float64{5, 5, 4, 3}},
		{"nan width", []float64{1, 2, 3, 4}, []float64{5, math.NaN(), 4, 3}},
		{"length mismatch", []float64{1, 2, 3, 4}, []float64{5, 4, 3}},
		{"empty", nil, nil},
	}

	for _, tc := range tests {
		if got, ok := te.Estimate(tc.fluences, tc.fwhms); ok {
			t.Errorf("%s: threshold = %v, want undefined", tc.name, got)
		}
	}
}

func TestThresholdEstimator_AveragesRepeats(t *testing.T) {
	te := ThresholdEstimator{Grid: 500, Exclude: 0}

	// the repeated point averages to 6, making the drop 2..3 the steepest
	fluences := []float64{0, 1, 2, 2, 3, 4}
	fwhms := []float64{8, 7, 5, 7, 1, 0.5}

	got, ok := te.Estimate(fluences, fwhms)
	if !ok {
		t.Fatal("threshold undefined")
	}
	if got < 1.8 || got > 3.2 {
		t.Errorf("threshold = %v, want between 2 and 3", got)
	}
}

func TestGradient(t *testing.T) {
	x := []float64{0, 1, 2, 4}
	y := []float64{0, 1, 4, 16}

	got := gradient(x, y)
	want := []float64{1, 2, 5, 6}
	for i := range want {
		if !near(got[i], want[i], 1e-12) {
			t.Fatalf("gradient = %v, want %v", got, want)
		}
	}
}
