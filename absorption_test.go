package main

import (
	"math"
	"path/filepath"
	"testing"
)

func TestRateAt_Nearest(t *testing.T) {
	s := Spectrum{
		X: []float64{400, 300, 340, 336},
		Y: []float64{0.1, 0.9, 0.7, 0.5},
	}

	rate, wl, od := RateAt(s, 337)
	if wl != 336 || od != 0.5 {
		t.Fatalf("picked %v nm (OD %v), want 336 nm (OD 0.5)", wl, od)
	}
	if want := 1 - math.Pow(10, -0.5); !near(rate, want, 1e-12) {
		t.Errorf("rate = %v, want %v", rate, want)
	}
}

func TestAbsorptionFromOD_Monotonic(t *testing.T) {
	if got := absorptionFromOD(0); got != 0 {
		t.Errorf("rate(0) = %v, want 0", got)
	}

	prev := absorptionFromOD(0)
	for od := 0.05; od <= 5; od += 0.05 {
		r := absorptionFromOD(od)
		if r <= prev || r >= 1 {
			t.Fatalf("rate(%v) = %v after %v", od, r, prev)
		}
		prev = r
	}
}

func TestAbsorptionRate_Defaults(t *testing.T) {
	dir := t.TempDir()
	l := testLog(t)

	if got := absorptionRate("", 337, l); got != 0 {
		t.Errorf("no file: rate = %v, want 0", got)
	}
	if got := absorptionRate(filepath.Join(dir, "missing.txt"), 337, l); got != 0 {
		t.Errorf("missing file: rate = %v, want 0", got)
	}

	junk := filepath.Join(dir, "absorption.txt")
	writeFile(t, junk, "this is not\na spectrum\n")
	if got := absorptionRate(junk, 337, l); got != 0 {
		t.Errorf("malformed file: rate = %v, want 0", got)
	}

	if l.warns != 3 {
		t.Errorf("logged %d warnings, want 3", l.warns)
	}
}

func TestAbsorptionRate_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absorption.txt")
	writeFile(t, path, "# sample absorbance\nWavelength\tAbs\n330\t0.8\n337\t1\n345\t1.2\n")

	got := absorptionRate(path, 337, testLog(t))
	if !near(got, 0.9, 1e-12) {
		t.Errorf("rate = %v, want 0.9", got)
	}
}

func TestAbsorptionRate_NegativeOD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absorption.txt")
	writeFile(t, path, "330 0.01\n337 -0.05\n345 0.02\n")

	l := testLog(t)
	if got := absorptionRate(path, 337, l); got != 0 {
		t.Errorf("rate = %v, want 0 for a negative baseline", got)
	}
	if l.warns != 1 {
		t.Errorf("logged %d warnings, want 1", l.warns)
	}
}
