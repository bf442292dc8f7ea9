package main

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// baselineCorrect subtracts the mean of the first n samples (the noise floor
// at the band edge) and clamps what goes negative to zero.
func baselineCorrect(y []float64, n int) []float64 {

	out := make([]float64, len(y))
	if len(y) == 0 {
		return out
	}
	if n > len(y) {
		n = len(y)
	}
	if n < 1 {
		n = 1
	}

	baseline := floats.Sum(y[:n]) / float64(n)
	for i, v := range y {
		out[i] = math.Max(v-baseline, 0)
	}
	return out
}

// roi returns the samples with lo <= x <= hi, ascending in x. A nil bound is
// open.
func roi(
	x, y []float64,
	lo, hi *float64,
) (
	[]float64, []float64,
) {

	type xy struct{ x, y float64 }
	var pts []xy
	for i := range x {
		if lo != nil && x[i] < *lo {
			continue
		}
		if hi != nil && x[i] > *hi {
			continue
		}
		pts = append(pts, xy{x[i], y[i]})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].x < pts[j].x })

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.x, p.y
	}
	return xs, ys
}

// integratedIntensity is the trapezoidal area of the corrected spectrum over
// the region of interest, divided by the exposure time when one is given so
// points taken with different integration times compare (counts*nm/s).
func integratedIntensity(
	x, corrected []float64,
	lo, hi *float64,
	integrationTime *float64,
) (
	float64,
) {

	xs, ys := roi(x, corrected, lo, hi)
	if len(xs) < 2 {
		return 0
	}

	area := integrate.Trapezoidal(xs, ys)
	if integrationTime != nil && *integrationTime > 0 {
		area /= *integrationTime
	}
	return area
}

// FWHM walks out from the maximum of y until the normalized signal drops to
// one half and interpolates the crossing on each side. ok is false for fewer
// than two samples, a spectrum with no positive maximum, or a peak whose
// half-maximum crossing lies beyond either end of the data.
func FWHM(x, y []float64) (width float64, ok bool) {

	if len(y) < 2 || len(x) != len(y) {
		return 0, false
	}

	peak := floats.MaxIdx(y)
	top := y[peak]
	if top <= 0 || math.IsNaN(top) || math.IsInf(top, 0) {
		return 0, false
	}

	const half = 0.5
	norm := func(i int) float64 { return y[i] / top }

	crossing := func(i, j int) float64 {
		// i is at or below half maximum, j above it
		yi, yj := norm(i), norm(j)
		return x[i] + (half-yi)*(x[j]-x[i])/(yj-yi)
	}

	i := peak
	for i > 0 && norm(i) > half {
		i--
	}
	if norm(i) > half {
		return 0, false
	}
	left := crossing(i, i+1)

	i = peak
	for i < len(y)-1 && norm(i) > half {
		i++
	}
	if norm(i) > half {
		return 0, false
	}
	right := crossing(i, i-1)

	return math.Abs(right - left), true
}
