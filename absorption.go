package main

import (
	"errors"
	"math"
	"os"
	"path/filepath"
)

// ErrMissingAbsorptionData marks a run analysed without a sample absorbance;
// it is only ever logged.
var ErrMissingAbsorptionData = errors.New("missing absorption data")

// RateAt returns the fraction of pump light absorbed by the sample at target,
// 1 - 10^-OD, using the spectrum entry closest in wavelength. The spectrum does
// not need to be sorted.
func RateAt(spectrum Spectrum, target float64) (rate, wavelength, od float64) {

	best := -1
	bestDist := math.Inf(1)
	for i, x := range spectrum.X {
		if d := math.Abs(x - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0, 0, 0
	}

	od = spectrum.Y[best]
	return absorptionFromOD(od), spectrum.X[best], od
}

func absorptionFromOD(od float64) float64 {
	return 1 - math.Pow(10, -od)
}

// absorptionRate loads the absorbance spectrum at path and reads off the rate
// at the pump wavelength. A missing or unreadable file yields 0 and a warning;
// it never stops the run.
func absorptionRate(
	path string,
	target float64,
	l *runLog,
) (
	float64,
) {

	if path == "" {
		l.Warnf("%v: no absorption file found, assuming 0%% absorption", ErrMissingAbsorptionData)
		return 0
	}

	f, err := os.Open(path)
	if err != nil {
		l.Warnf("%v: %s: %v, assuming 0%% absorption", ErrMissingAbsorptionData, filepath.Base(path), err)
		return 0
	}
	defer f.Close()

	spectrum, err := parseXY(f)
	if err != nil {
		l.Warnf("%v: %s: %v, assuming 0%% absorption", ErrMissingAbsorptionData, filepath.Base(path), err)
		return 0
	}

	rate, wl, od := RateAt(spectrum, target)
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		l.Warnf("%v: %s: absorbance %v at %.1f nm is not usable, assuming 0%% absorption",
			ErrMissingAbsorptionData, filepath.Base(path), od, wl)
		return 0
	}
	if rate < 0 {
		l.Warnf("%s: negative absorbance %.3f at %.1f nm, assuming 0%% absorption", filepath.Base(path), od, wl)
		return 0
	}

	l.Printf("Reading absorption from: %s\n", filepath.Base(path))
	l.Printf("   -> Value at %.1f nm: OD = %.3f\n", wl, od)
	l.Printf("   -> Absorption Rate: %.1f%%\n", rate*100)

	return rate
}
