package main

import (
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/floats"
)

// sigmaToFWHM = 2*sqrt(2*ln 2)
var sigmaToFWHM = 2 * math.Sqrt(2*math.Ln2)

// Gaussian with a constant offset.
func Gaussian(x, amp, cen, sigma, c float64) float64 {
	return amp*math.Exp(-math.Pow(x-cen, 2)/(2*sigma*sigma)) + c
}

// FitGaussian fits amp, cen, sigma and offset to the samples around the peak
// and returns the fitted parameters. The fit window spans fitSpan walk-FWHMs
// either side of the maximum.
func FitGaussian(
	x, y []float64,
	guessWidth float64,
) (
	[]float64, bool,
) {

	if len(x) < 5 || len(x) != len(y) || guessWidth <= 0 {
		return nil, false
	}

	const fitSpan = 2.

	peak := floats.MaxIdx(y)
	amp, cen := y[peak], x[peak]
	lo, hi := cen-fitSpan*guessWidth, cen+fitSpan*guessWidth

	var xs, ys []float64
	for i := range x {
		if x[i] >= lo && x[i] <= hi {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) < 5 {
		return nil, false
	}

	f := func(dst, guess []float64) {
		amp, cen, sigma, c := guess[0], guess[1], guess[2], guess[3]
		for i := range xs {
			dst[i] = Gaussian(xs[i], amp, cen, sigma, c) - ys[i]
		}
	}

	jacobian := lm.NumJac{Func: f}

	toBeSolved := lm.LMProblem{
		Dim:        4,
		Size:       len(xs),
		Func:       f,
		Jac:        jacobian.Jac,
		InitParams: []float64{amp, cen, guessWidth / sigmaToFWHM, 0},
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	results, err := lm.LM(toBeSolved, &lm.Settings{Iterations: 1000, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, false
	}

	params := append([]float64(nil), results.X...)
	params[2] = math.Abs(params[2])
	for _, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, false
		}
	}
	if params[0] <= 0 || params[2] == 0 {
		return nil, false
	}

	return params, true
}

// fitFWHM is the width of the Gaussian fitted around the peak.
func fitFWHM(x, y []float64, guessWidth float64) (float64, bool) {
	params, ok := FitGaussian(x, y, guessWidth)
	if !ok {
		return 0, false
	}
	return sigmaToFWHM * params[2], true
}
