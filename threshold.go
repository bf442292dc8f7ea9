package main

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// ThresholdEstimator locates the ASE threshold as the fluence where the
// spectral width collapses fastest. It is a heuristic: the answer is only as
// fine as the resample grid and assumes a single narrowing step.
type ThresholdEstimator struct {
	Grid    int     // resample points across the fluence range
	Exclude float64 // fraction of the range at the low end left out of the search
}

func newThresholdEstimator(cfg PipelineConfig) ThresholdEstimator {
	return ThresholdEstimator{Grid: cfg.ThresholdGrid, Exclude: cfg.ThresholdExclude}
}

// gradient is the centred finite difference of y over x, one-sided at the ends.
func gradient(x, y []float64) []float64 {
	n := len(y)
	dy := make([]float64, n)
	if n < 2 {
		return dy
	}
	dy[0] = (y[1] - y[0]) / (x[1] - x[0])
	dy[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		dy[i] = (y[i+1] - y[i-1]) / (x[i+1] - x[i-1])
	}
	return dy
}

// Estimate fits FWHM(fluence) with a cubic spline, resamples it on Grid
// points and returns the fluence of the most negative slope outside the
// excluded low end. ok is false with fewer than four distinct fluences.
// Points whose FWHM is undefined must be left out by the caller; repeated
// fluences are averaged.
func (te ThresholdEstimator) Estimate(fluences, fwhms []float64) (threshold float64, ok bool) {

	if len(fluences) != len(fwhms) {
		return 0, false
	}

	idx := make([]int, len(fluences))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return fluences[idx[a]] < fluences[idx[b]] })

	var xs, ys []float64
	count := 0
	for _, i := range idx {
		f, w := fluences[i], fwhms[i]
		if math.IsNaN(f) || math.IsNaN(w) || math.IsInf(f, 0) || math.IsInf(w, 0) {
			continue
		}
		if n := len(xs); n > 0 && xs[n-1] == f {
			count++
			ys[n-1] += (w - ys[n-1]) / float64(count)
			continue
		}
		xs = append(xs, f)
		ys = append(ys, w)
		count = 1
	}

	if len(xs) < 4 {
		return 0, false
	}

	var spline interp.NotAKnotCubic
	if err := spline.Fit(xs, ys); err != nil {
		return 0, false
	}

	grid := te.Grid
	if grid < 2 {
		grid = 500
	}
	lo, hi := xs[0], xs[len(xs)-1]
	xNew := floats.Span(make([]float64, grid), lo, hi)
	yNew := make([]float64, grid)
	for i, x := range xNew {
		yNew[i] = spline.Predict(x)
	}
	dy := gradient(xNew, yNew)

	cut := lo + te.Exclude*(hi-lo)
	best := -1
	for i, x := range xNew {
		if x <= cut {
			continue
		}
		if best < 0 || dy[i] < dy[best] {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}

	return xNew[best], true
}
