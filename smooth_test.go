package main

import (
	"errors"
	"math"
	"testing"
)

func TestSmooth_Constant(t *testing.T) {
	x := linspace(400, 700, 301)
	y := make([]float64, len(x))
	for i := range y {
		y[i] = 42
	}

	out, err := Smooth(Spectrum{X: x, Y: y}, 51)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Y {
		if !near(v, 42, 1e-9) {
			t.Fatalf("y[%d] = %v, want 42", i, v)
		}
	}
	if &out.Y[0] == &y[0] {
		t.Error("Smooth wrote into its input")
	}
}

// A cubic is its own least-squares cubic fit, edges included.
func TestSmooth_PreservesCubic(t *testing.T) {
	n := 100
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		v := float64(i)
		x[i] = v
		y[i] = 0.001*v*v*v - 0.2*v*v + v + 3
	}

	out, err := Smooth(Spectrum{X: x, Y: y}, 11)
	if err != nil {
		t.Fatal(err)
	}
	for i := range y {
		if !near(out.Y[i], y[i], 1e-6*math.Max(1, math.Abs(y[i]))) {
			t.Fatalf("y[%d] = %v, want %v", i, out.Y[i], y[i])
		}
	}
}

func TestSmooth_ReducesNoise(t *testing.T) {
	x := linspace(500, 600, 401)
	clean := gaussian(x, 1000, 550, 8, 0)
	noisy := make([]float64, len(x))
	for i := range noisy {
		// deterministic +/-20 count ripple
		noisy[i] = clean[i] + 20*math.Sin(float64(i)*2.7)
	}

	out, err := Smooth(Spectrum{X: x, Y: noisy}, 21)
	if err != nil {
		t.Fatal(err)
	}

	var before, after float64
	for i := range x {
		before += math.Pow(noisy[i]-clean[i], 2)
		after += math.Pow(out.Y[i]-clean[i], 2)
	}
	if after >= before/4 {
		t.Errorf("residual power %v after smoothing, %v before", after, before)
	}
}

func TestSmooth_InvalidWindow(t *testing.T) {
	s := Spectrum{X: linspace(0, 1, 20), Y: make([]float64, 20)}

	for _, w := range []int{-3, 0, 1, 2, 4, 50} {
		_, err := Smooth(s, w)
		var invalid *InvalidWindowError
		if !errors.As(err, &invalid) || invalid.Window != w {
			t.Errorf("window %d: err = %v, want InvalidWindowError", w, err)
		}
	}
}

func TestSmooth_ShortSpectra(t *testing.T) {
	two := Spectrum{X: []float64{1, 2}, Y: []float64{5, 9}}
	out, err := Smooth(two, 51)
	if err != nil {
		t.Fatal(err)
	}
	if out.Y[0] != 5 || out.Y[1] != 9 {
		t.Errorf("two samples changed: %v", out.Y)
	}

	// six samples: the window drops to 5 and a quadratic survives
	x := []float64{0, 1, 2, 3, 4, 5}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = v*v - 2*v + 1
	}
	out, err = Smooth(Spectrum{X: x, Y: y}, 51)
	if err != nil {
		t.Fatal(err)
	}
	for i := range y {
		if !near(out.Y[i], y[i], 1e-9) {
			t.Errorf("y[%d] = %v, want %v", i, out.Y[i], y[i])
		}
	}
}

func TestEffectiveWindow(t *testing.T) {
	tests := []struct {
		window, n, want int
	}{
		{51, 1000, 51},
		{51, 51, 51},
		{51, 50, 49},
		{51, 6, 5},
		{51, 3, 3},
		{51, 2, 0},
		{5, 0, 0},
	}
	for _, tc := range tests {
		if got := effectiveWindow(tc.window, tc.n); got != tc.want {
			t.Errorf("effectiveWindow(%d, %d) = %d, want %d", tc.window, tc.n, got, tc.want)
		}
	}
}
