//go:build gnuplot

package main

import (
	"path/filepath"

	"github.com/Arafatk/glot"
)

// quickLook hands the FWHM and intensity curves to gnuplot and writes
// <dir>/quicklook-fwhm.png and quicklook-intensity.png. Only built with
// -tags gnuplot: glot looks the binary up when the package loads and panics
// if it is not on PATH.
func quickLook(
	res *ASEResult,
	dir string,
) (
	error,
) {

	_, fluence, widths := res.widths()

	var xs, ys []float64
	for _, p := range res.Manifest.Points {
		if p.Intensity != nil {
			xs = append(xs, p.Fluence)
			ys = append(ys, *p.Intensity)
		}
	}

	if err := gnuplotXY(
		"FWHM vs Fluence", "Fluence (uJ/cm2)", "FWHM (nm)",
		"FWHM", fluence, widths,
		filepath.Join(dir, "quicklook-fwhm.png"),
	); err != nil {
		return err
	}

	return gnuplotXY(
		"Intensity vs Fluence", "Fluence (uJ/cm2)", "Integrated Intensity",
		"intensity", xs, ys,
		filepath.Join(dir, "quicklook-intensity.png"),
	)
}

func gnuplotXY(
	title, xlabel, ylabel, name string,
	xs, ys []float64,
	path string,
) (
	error,
) {

	if len(xs) == 0 {
		return nil
	}

	dimensions := 2
	persist := false
	debug := false
	plot, err := glot.NewPlot(dimensions, persist, debug)
	if err != nil {
		return err
	}
	defer plot.Close()

	if err := plot.AddPointGroup(name, "points", [][]float64{xs, ys}); err != nil {
		return err
	}
	plot.SetTitle(title)
	plot.SetXLabel(xlabel)
	plot.SetYLabel(ylabel)

	return plot.SavePlot(path)
}
