package main

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const savgolOrder = 3

type InvalidWindowError struct {
	Window int
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("smoothing window %d must be odd and >= 3", e.Window)
}

func checkWindow(window int) error {
	if window < 3 || window%2 == 0 {
		return &InvalidWindowError{Window: window}
	}
	return nil
}

// effectiveWindow shrinks window to the largest odd value that fits n
// samples. It returns 0 when n is too short to smooth at all.
func effectiveWindow(window, n int) int {
	if n < 3 {
		return 0
	}
	if window > n {
		window = n
		if window%2 == 0 {
			window--
		}
	}
	return window
}

// savgolProjection returns the (order+1) x window matrix that maps a window
// of samples onto the least-squares polynomial coefficients in the scaled
// coordinate z = (i-half)/half.
func savgolProjection(
	window, order int,
) (
	*mat.Dense, error,
) {

	half := window / 2

	vander := mat.NewDense(window, order+1, nil)
	for i := 0; i < window; i++ {
		z := float64(i-half) / float64(half)
		v := 1.
		for j := 0; j <= order; j++ {
			vander.Set(i, j, v)
			v *= z
		}
	}

	ones := make([]float64, window)
	for i := range ones {
		ones[i] = 1
	}

	var proj mat.Dense
	if err := proj.Solve(vander, mat.NewDiagDense(window, ones)); err != nil {
		return nil, fmt.Errorf("savitzky-golay window %d: %w", window, err)
	}
	return &proj, nil
}

func polyval(coeffs []float64, z float64) float64 {
	y := 0.
	for j := len(coeffs) - 1; j >= 0; j-- {
		y = y*z + coeffs[j]
	}
	return y
}

// Smooth applies a Savitzky-Golay filter: each sample is replaced by the
// value at the window centre of a least-squares cubic fitted over window
// neighbours. The first and last half-window samples are read off the
// polynomial fitted to the first and last full window.
//
// Spectra shorter than window use the largest odd window that fits; spectra
// of fewer than 3 samples come back unchanged.
func Smooth(s Spectrum, window int) (Spectrum, error) {

	if err := checkWindow(window); err != nil {
		return Spectrum{}, err
	}

	out := s.clone()
	n := len(s.Y)

	window = effectiveWindow(window, n)
	if window == 0 {
		return out, nil
	}

	order := savgolOrder
	if order > window-1 {
		order = window - 1
	}

	proj, err := savgolProjection(window, order)
	if err != nil {
		return Spectrum{}, err
	}
	half := window / 2

	centre := proj.RawRowView(0)
	for i := half; i < n-half; i++ {
		out.Y[i] = floats.Dot(centre, s.Y[i-half:i+half+1])
	}

	edge := func(start int) []float64 {
		var c mat.VecDense
		c.MulVec(proj, mat.NewVecDense(window, append([]float64(nil), s.Y[start:start+window]...)))
		return c.RawVector().Data
	}

	head := edge(0)
	for i := 0; i < half; i++ {
		out.Y[i] = polyval(head, float64(i-half)/float64(half))
	}

	tail := edge(n - window)
	for i := n - half; i < n; i++ {
		out.Y[i] = polyval(tail, float64(i-(n-window)-half)/float64(half))
	}

	return out, nil
}
