package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLog(t *testing.T) *runLog {
	t.Helper()
	return &runLog{path: t.TempDir()}
}

func gaussian(x []float64, amp, cen, sigma, offset float64) []float64 {
	y := make([]float64, len(x))
	for i := range x {
		y[i] = Gaussian(x[i], amp, cen, sigma, offset)
	}
	return y
}

func linspace(lo, hi float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return x
}

func near(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// spectrumText renders a raw spectrometer file with the acquisition header.
func spectrumText(angle, integration float64, x, y []float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Angle (deg): %g\n", angle)
	if integration > 0 {
		fmt.Fprintf(&b, "# Integration Time (s): %g\n", integration)
	}
	b.WriteString("Wavelength (nm), Intensity (counts)\n")
	for i := range x {
		fmt.Fprintf(&b, "%g, %g\n", x[i], y[i])
	}
	return b.String()
}
