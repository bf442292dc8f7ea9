package main

import (
	"math"
	"testing"
)

func TestFWHM_Gaussian(t *testing.T) {
	for _, sigma := range []float64{0.8, 2, 5, 12} {
		x := linspace(450, 650, 2001)
		y := gaussian(x, 1, 550, sigma, 0)

		got, ok := FWHM(x, y)
		if !ok {
			t.Fatalf("sigma %v: FWHM undefined", sigma)
		}
		want := sigmaToFWHM * sigma
		if math.Abs(got-want)/want > 0.02 {
			t.Errorf("sigma %v: FWHM = %v, want %v", sigma, got, want)
		}
	}
}

func TestFWHM_DescendingAxis(t *testing.T) {
	x := linspace(650, 450, 2001)
	y := gaussian(x, 300, 520, 3, 0)

	got, ok := FWHM(x, y)
	if !ok || math.Abs(got-sigmaToFWHM*3)/(sigmaToFWHM*3) > 0.02 {
		t.Errorf("FWHM = %v (%t), want %v", got, ok, sigmaToFWHM*3)
	}
}

func TestFWHM_Undefined(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
	}{
		{"single point", []float64{1}, []float64{1}},
		{"flat zero", []float64{1, 2, 3, 4}, []float64{0, 0, 0, 0}},
		{"flat", []float64{1, 2, 3, 4}, []float64{5, 5, 5, 5}},
		{"rising edge", []float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}},
		{"half peak cut off", []float64{1, 2, 3, 4, 5}, []float64{0.9, 1, 0.4, 0.1, 0}},
		{"length mismatch", []float64{1, 2, 3}, []float64{0, 1}},
	}

	for _, tc := range tests {
		if w, ok := FWHM(tc.x, tc.y); ok {
			t.Errorf("%s: FWHM = %v, want undefined", tc.name, w)
		}
	}
}

func TestFWHM_Interpolates(t *testing.T) {
	// half maximum falls between samples at x = 1.5 and x = 4.5
	x := []float64{0, 1, 2, 3, 4, 5, 6}
	y := []float64{0, 1, 3, 4, 3, 1, 0}

	got, ok := FWHM(x, y)
	if !ok || !near(got, 3, 1e-12) {
		t.Errorf("FWHM = %v (%t), want 3", got, ok)
	}
}

func TestBaselineCorrect(t *testing.T) {
	y := []float64{10, 12, 8, 10, 60, 110, 60, 9}

	got := baselineCorrect(y, 4)
	want := []float64{0, 2, 0, 0, 50, 100, 50, 0}
	for i := range want {
		if !near(got[i], want[i], 1e-12) {
			t.Fatalf("corrected = %v, want %v", got, want)
		}
	}

	if y[0] != 10 {
		t.Error("baselineCorrect modified its input")
	}

	// more baseline points than samples uses them all
	if got := baselineCorrect([]float64{1, 3}, 10); got[0] != 0 || got[1] != 1 {
		t.Errorf("short input corrected to %v", got)
	}
}

func TestIntegratedIntensity(t *testing.T) {
	x := linspace(0, 10, 11)
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 2
	}

	if got := integratedIntensity(x, y, nil, nil, nil); !near(got, 20, 1e-12) {
		t.Errorf("full range = %v, want 20", got)
	}
	if got := integratedIntensity(x, y, nil, nil, opt(4)); !near(got, 5, 1e-12) {
		t.Errorf("per second = %v, want 5", got)
	}

	lo, hi := 2., 5.
	if got := integratedIntensity(x, y, &lo, &hi, nil); !near(got, 6, 1e-12) {
		t.Errorf("ROI [2, 5] = %v, want 6", got)
	}

	one := 3.
	if got := integratedIntensity(x, y, &one, &one, nil); got != 0 {
		t.Errorf("single sample ROI = %v, want 0", got)
	}
}

func TestIntegratedIntensity_Descending(t *testing.T) {
	x := linspace(10, 0, 11)
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 1
	}
	if got := integratedIntensity(x, y, nil, nil, nil); !near(got, 10, 1e-12) {
		t.Errorf("descending axis = %v, want 10", got)
	}
}

func TestFitFWHM(t *testing.T) {
	x := linspace(500, 600, 401)
	y := gaussian(x, 100, 548, 1.5, 5)

	got, ok := fitFWHM(x, y, 3.5)
	if !ok {
		t.Fatal("fit did not converge")
	}
	want := sigmaToFWHM * 1.5
	if math.Abs(got-want)/want > 0.02 {
		t.Errorf("fitted FWHM = %v, want %v", got, want)
	}

	if _, ok := fitFWHM(x[:3], y[:3], 1); ok {
		t.Error("fit on three samples reported success")
	}
}
