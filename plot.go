package main

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const figureSize = 15 * vg.Inch

// axisRange pads the extent of vals by 5%, or by a factor of 1.25 on a log
// axis. Non-positive values are ignored on a log axis.
func axisRange(vals []float64, log bool) []float64 {

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || (log && v <= 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	switch {
	case math.IsInf(lo, 1):
		if log {
			return []float64{0.1, 10}
		}
		return []float64{0, 1}
	case log:
		if lo == hi {
			return []float64{lo / 2, hi * 2}
		}
		return []float64{lo / 1.25, hi * 1.25}
	case lo == hi:
		return []float64{lo - 1, hi + 1}
	}

	pad := 0.05 * (hi - lo)
	return []float64{lo - pad, hi + pad}
}

func prepPlot(
	title, xlabel, ylabel string,
	xrange, yrange []float64,
	logX, logY, slide bool,
) (
	*plot.Plot,
	*plotter.Line, *plotter.Line,
	error,
) {

	p := plot.New()
	p.BackgroundColor = color.RGBA{A: 0}
	p.Title.Text = title
	p.Title.TextStyle.Font.Variant = "Sans"

	p.X.Label.Text = xlabel
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.LineStyle.Width = vg.Points(1.5)
	p.X.Min = xrange[0]
	p.X.Max = xrange[1]
	p.X.Tick.LineStyle.Width = vg.Points(1.5)
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Padding = vg.Points(-8)

	p.Y.Label.Text = ylabel
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.LineStyle.Width = vg.Points(1.5)
	p.Y.Min = yrange[0]
	p.Y.Max = yrange[1]
	p.Y.Tick.LineStyle.Width = vg.Points(1.5)
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Padding = vg.Points(-6)

	if logX {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if logY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	p.Legend.TextStyle.Font.Variant = "Sans"
	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(-25)
	p.Legend.YOffs = vg.Points(25)
	p.Legend.Padding = vg.Points(10)
	p.Legend.ThumbnailWidth = vg.Points(50)

	if slide {
		p.Title.TextStyle.Font.Size = 80
		p.Title.Padding = font.Length(80)

		p.X.Label.TextStyle.Font.Size = 56
		p.X.Label.Padding = font.Length(40)
		p.X.Tick.Label.Font.Size = 56

		p.Y.Label.TextStyle.Font.Size = 56
		p.Y.Label.Padding = font.Length(40)
		p.Y.Tick.Label.Font.Size = 56

		p.Legend.TextStyle.Font.Size = 56
	} else {
		p.Title.TextStyle.Font.Size = 50
		p.Title.Padding = font.Length(50)

		p.X.Label.TextStyle.Font.Size = 36
		p.X.Label.Padding = font.Length(20)
		p.X.Tick.Label.Font.Size = 36

		p.Y.Label.TextStyle.Font.Size = 36
		p.Y.Label.Padding = font.Length(20)
		p.Y.Tick.Label.Font.Size = 36

		p.Legend.TextStyle.Font.Size = 28
	}

	// Enclose plot
	t := plotter.XYs{{X: xrange[0], Y: yrange[1]}, {X: xrange[1], Y: yrange[1]}}
	r := plotter.XYs{{X: xrange[1], Y: yrange[0]}, {X: xrange[1], Y: yrange[1]}}

	tAxis, err := plotter.NewLine(t)
	if err != nil {
		return nil, nil, nil, err
	}
	rAxis, err := plotter.NewLine(r)
	if err != nil {
		return nil, nil, nil, err
	}

	return p, tAxis, rAxis, nil
}

func palette(
	brush int,
	dark bool,
) (
	color.RGBA,
) {

	if dark {
		darkColor := []color.RGBA{
			{R: 27, G: 170, B: 139, A: 255},
			{R: 201, G: 104, B: 146, A: 255},
			{R: 99, G: 124, B: 198, A: 255},
			{R: 91, G: 22, B: 22, A: 255},
			{R: 188, G: 117, B: 255, A: 255},
			{R: 234, G: 156, B: 172, A: 255},
			{R: 1, G: 56, B: 84, A: 255},
			{R: 46, G: 140, B: 60, A: 255},
			{R: 140, G: 46, B: 49, A: 255},
			{R: 122, G: 41, B: 104, A: 255},
			{R: 41, G: 122, B: 100, A: 255},
			{R: 122, G: 90, B: 41, A: 255},
			{R: 183, G: 139, B: 89, A: 255},
			{R: 22, G: 44, B: 91, A: 255},
			{R: 59, G: 17, B: 66, A: 255},
			{R: 18, G: 102, B: 99, A: 255},
			{R: 255, G: 102, B: 102, A: 255},
		}
		return darkColor[brush%len(darkColor)]
	}

	col := []color.RGBA{
		{R: 31, G: 211, B: 172, A: 255},
		{R: 255, G: 122, B: 180, A: 255},
		{R: 122, G: 156, B: 255, A: 255},
		{R: 91, G: 22, B: 22, A: 255},
		{R: 188, G: 117, B: 255, A: 255},
		{R: 234, G: 156, B: 172, A: 255},
		{R: 1, G: 56, B: 84, A: 255},
		{R: 46, G: 140, B: 60, A: 255},
		{R: 140, G: 46, B: 49, A: 255},
		{R: 122, G: 41, B: 104, A: 255},
		{R: 41, G: 122, B: 100, A: 255},
		{R: 122, G: 90, B: 41, A: 255},
		{R: 255, G: 193, B: 122, A: 255},
		{R: 22, G: 44, B: 91, A: 255},
		{R: 59, G: 17, B: 66, A: 255},
		{R: 27, G: 150, B: 146, A: 255},
		{R: 255, G: 102, B: 102, A: 255},
	}
	return col[brush%len(col)]
}

// rampColor spreads n curves from blue (lowest fluence) to red.
func rampColor(i, n int) color.Color {

	cm := moreland.SmoothBlueRed()
	cm.SetMax(1)
	cm.SetMin(0)

	v := 0.
	if n > 1 {
		v = float64(i) / float64(n-1)
	}
	c, err := cm.At(v)
	if err != nil {
		return palette(i, true)
	}
	return c
}

func savePlot(
	p *plot.Plot,
	name, dir string,
	formats []string,
) (
	error,
) {

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, name)
	for _, format := range formats {
		if err := p.Save(figureSize, figureSize, path+"."+format); err != nil {
			return fmt.Errorf("save %s.%s: %w", name, format, err)
		}
	}
	return nil
}

func scatter(pts plotter.XYs, brush int) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = palette(brush, true)
	s.GlyphStyle.Radius = vg.Points(6)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	return s, nil
}

func dashed(pts plotter.XYs) (*plotter.Line, error) {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	l.LineStyle.Color = color.RGBA{R: 127, G: 127, B: 127, A: 255}
	l.LineStyle.Width = vg.Points(3)
	l.LineStyle.Dashes = []vg.Length{vg.Points(15), vg.Points(5)}
	return l, nil
}

//----------------------------------------------------------------------------//
// Energy figures

func plotFluenceProfile(
	m *Manifest,
	cfg PipelineConfig,
	dir string,
) (
	error,
) {

	pts := make(plotter.XYs, len(m.Points))
	for i, p := range m.Points {
		pts[i].X, pts[i].Y = p.Angle, p.Fluence
	}

	p, t, r, err := prepPlot(
		"Fluence Profile", "Wheel Angle (deg)", "Fluence (μJ/cm²)",
		axisRange(m.Angles(), false), axisRange(m.Fluences(), false),
		false, false, cfg.Slide,
	)
	if err != nil {
		return err
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Color = palette(0, false)
	line.LineStyle.Width = vg.Points(2)

	s, err := scatter(pts, 0)
	if err != nil {
		return err
	}

	p.Add(line, s, t, r)
	return savePlot(p, "Fluence Profile", dir, cfg.Formats)
}

func plotCalibration(
	curve *CalibrationCurve,
	calc *FluenceCalculator,
	m *Manifest,
	cfg PipelineConfig,
	dir string,
) (
	error,
) {

	angles, norm := curve.Samples()
	xs := append(append([]float64(nil), angles...), m.Angles()...)
	xr := axisRange(xs, false)

	dense := floats.Span(make([]float64, 400), xr[0], xr[1])
	fit := make(plotter.XYs, len(dense))
	for i, a := range dense {
		fit[i].X, fit[i].Y = a, curve.Evaluate(a)
	}

	ys := append([]float64(nil), norm...)
	for _, f := range fit {
		ys = append(ys, f.Y)
	}

	p, t, r, err := prepPlot(
		"Wheel Calibration", "Wheel Angle (deg)", "Normalized Transmission",
		xr, axisRange(ys, false),
		false, false, cfg.Slide,
	)
	if err != nil {
		return err
	}

	line, err := plotter.NewLine(fit)
	if err != nil {
		return err
	}
	line.LineStyle.Color = palette(2, false)
	line.LineStyle.Width = vg.Points(3)

	samples := make(plotter.XYs, len(angles))
	for i := range angles {
		samples[i].X, samples[i].Y = angles[i], norm[i]
	}
	s, err := scatter(samples, 1)
	if err != nil {
		return err
	}

	ref := plotter.XYs{
		{X: cfg.ReferenceAngle, Y: p.Y.Min},
		{X: cfg.ReferenceAngle, Y: curve.Evaluate(cfg.ReferenceAngle)},
	}
	refLine, err := dashed(ref)
	if err != nil {
		return err
	}

	p.Add(line, s, refLine, t, r)
	p.Legend.Add("spline", line)
	p.Legend.Add("calibration", s)
	p.Legend.Add(fmt.Sprintf("reference %.4g nJ", calc.ReferenceEnergy()), refLine)

	return savePlot(p, "Wheel Calibration", dir, cfg.Formats)
}

// plotPulses draws one box per logged angle and the pooled distribution of
// pulse-to-pulse deviation from each burst's median.
// burstDeviation returns each reading's deviation from the burst median in
// percent. A burst with a zero median has none.
func burstDeviation(readings []float64) []float64 {

	median, err := stats.Median(stats.Float64Data(readings))
	if err != nil || median == 0 {
		return nil
	}

	out := make([]float64, len(readings))
	for i, v := range readings {
		out[i] = 100 * (v/median - 1)
	}
	return out
}

func plotPulses(
	bursts pulseBursts,
	cfg PipelineConfig,
	dir string,
) (
	error,
) {

	if len(bursts) == 0 {
		return nil
	}

	angles := make([]float64, 0, len(bursts))
	for a := range bursts {
		angles = append(angles, a)
	}
	sort.Float64s(angles)

	box := plot.New()
	box.Title.Text = "Pulse Energies"
	box.Y.Label.Text = "Energy (J)"
	box.X.Label.Text = "Wheel Angle (deg)"

	var deviation plotter.Values
	names := make([]string, len(angles))

	for i, a := range angles {
		readings := bursts[a]
		if len(readings) > cfg.PulseSkip {
			readings = readings[cfg.PulseSkip:]
		}

		b, err := plotter.NewBoxPlot(vg.Length(15), float64(i), plotter.Values(readings))
		if err != nil {
			return err
		}
		b.FillColor = palette(i, false)
		box.Add(b)
		names[i] = formatFloat(a)

		deviation = append(deviation, burstDeviation(readings)...)
	}
	box.NominalX(names...)

	if err := savePlot(box, "Pulse Energies", dir, cfg.Formats); err != nil {
		return err
	}

	if len(deviation) < 2 {
		return nil
	}

	hist := plot.New()
	hist.Title.Text = "Pulse-to-pulse Deviation"
	hist.X.Label.Text = "Deviation from burst median (%)"
	hist.Y.Label.Text = "Pulses"

	h, err := plotter.NewHist(deviation, 20)
	if err != nil {
		return err
	}
	h.FillColor = palette(2, false)
	hist.Add(h)

	return savePlot(hist, "Pulse Deviation", dir, cfg.Formats)
}

//----------------------------------------------------------------------------//
// Analysis figures

func (res *ASEResult) widths() (plotter.XYs, []float64, []float64) {
	var pts plotter.XYs
	var xs, ys []float64
	for _, p := range res.Manifest.Points {
		if p.FWHM == nil || p.Fluence <= 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: p.Fluence, Y: *p.FWHM})
		xs = append(xs, p.Fluence)
		ys = append(ys, *p.FWHM)
	}
	return pts, xs, ys
}

func plotFWHM(
	res *ASEResult,
	cfg PipelineConfig,
	dir string,
) (
	error,
) {

	pts, xs, ys := res.widths()
	if len(pts) == 0 {
		return nil
	}
	if res.Defined {
		xs = append(xs, res.Threshold)
	}

	xr, yr := axisRange(xs, true), axisRange(ys, false)
	p, t, r, err := prepPlot(
		"Spectral Narrowing", "Fluence (μJ/cm²)", "FWHM (nm)",
		xr, yr, true, false, cfg.Slide,
	)
	if err != nil {
		return err
	}

	s, err := scatter(pts, 0)
	if err != nil {
		return err
	}
	p.Add(s, t, r)

	var fitted plotter.XYs
	for _, pt := range res.Manifest.Points {
		if pt.FWHMFit != nil && pt.Fluence > 0 {
			fitted = append(fitted, plotter.XY{X: pt.Fluence, Y: *pt.FWHMFit})
		}
	}
	if len(fitted) > 0 {
		fs, err := scatter(fitted, 1)
		if err != nil {
			return err
		}
		fs.GlyphStyle.Shape = draw.RingGlyph{}
		p.Add(fs)
		p.Legend.Add("half maximum", s)
		p.Legend.Add("Gaussian fit", fs)
	}

	if res.Defined && res.Threshold > 0 {
		th, err := dashed(plotter.XYs{{X: res.Threshold, Y: yr[0]}, {X: res.Threshold, Y: yr[1]}})
		if err != nil {
			return err
		}
		p.Add(th)
		p.Legend.Add(fmt.Sprintf("threshold %.2f μJ/cm²", res.Threshold), th)
	}

	return savePlot(p, "FWHM vs Fluence", dir, cfg.Formats)
}

func plotIntensity(
	res *ASEResult,
	cfg PipelineConfig,
	dir string,
) (
	error,
) {

	var pts plotter.XYs
	var xs, ys []float64
	for _, p := range res.Manifest.Points {
		if p.Intensity == nil || *p.Intensity <= 0 || p.Fluence <= 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: p.Fluence, Y: *p.Intensity})
		xs = append(xs, p.Fluence)
		ys = append(ys, *p.Intensity)
	}
	if len(pts) == 0 {
		return nil
	}

	xr, yr := axisRange(xs, true), axisRange(ys, true)
	p, t, r, err := prepPlot(
		"Output Intensity", "Fluence (μJ/cm²)", "Integrated Intensity (counts·nm/s)",
		xr, yr, true, true, cfg.Slide,
	)
	if err != nil {
		return err
	}

	s, err := scatter(pts, 2)
	if err != nil {
		return err
	}
	p.Add(s, t, r)

	if res.Defined && res.Threshold > 0 {
		th, err := dashed(plotter.XYs{{X: res.Threshold, Y: yr[0]}, {X: res.Threshold, Y: yr[1]}})
		if err != nil {
			return err
		}
		p.Add(th)
	}

	return savePlot(p, "Intensity vs Fluence", dir, cfg.Formats)
}

// fluenceRank gives the position of each of the first n points when sorted by
// fluence. Points missing from the manifest keep their index.
func fluenceRank(m *Manifest, n int) []int {

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if m != nil && len(m.Points) >= n {
		sort.SliceStable(order, func(a, b int) bool {
			return m.Points[order[a]].Fluence < m.Points[order[b]].Fluence
		})
	}

	rank := make([]int, n)
	for r, i := range order {
		rank[i] = r
	}
	return rank
}

// spectrumLines returns one line per smoothed spectrum, coloured by fluence
// rank. Normalized spectra are scaled to a unit maximum.
func spectrumLines(
	res *ASEResult,
	normalized bool,
) (
	[]*plotter.Line, []float64, error,
) {

	n := len(res.Smoothed.Columns)
	lines := make([]*plotter.Line, n)
	var ys []float64

	rank := fluenceRank(res.Manifest, n)

	for i, col := range res.Smoothed.Columns {
		scale := 1.
		if normalized {
			if peak := floats.Max(col); peak > 0 {
				scale = 1 / peak
			}
		}

		pts := make(plotter.XYs, len(col))
		for j, v := range col {
			pts[j].X, pts[j].Y = res.Smoothed.Wavelength[j], v*scale
			ys = append(ys, pts[j].Y)
		}

		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, nil, err
		}
		l.LineStyle.Color = rampColor(rank[i], n)
		l.LineStyle.Width = vg.Points(2)
		lines[i] = l
	}

	return lines, ys, nil
}

func plotSpectra(
	res *ASEResult,
	cfg PipelineConfig,
	dir string,
	normalized bool,
) (
	error,
) {

	lines, ys, err := spectrumLines(res, normalized)
	if err != nil {
		return err
	}

	title, ylabel := "Smoothed Spectra", "Intensity (counts)"
	if normalized {
		title, ylabel = "Normalized Spectra", "Normalized Intensity"
	}

	xr, yr := axisRange(res.Smoothed.Wavelength, false), axisRange(ys, false)
	p, t, r, err := prepPlot(title, "Wavelength (nm)", ylabel, xr, yr, false, false, cfg.Slide)
	if err != nil {
		return err
	}

	for i, l := range lines {
		p.Add(l)
		if len(lines) <= 12 {
			p.Legend.Add(fmt.Sprintf("%.3g μJ/cm²", res.Manifest.Points[i].Fluence), l)
		}
	}

	for _, bound := range []*float64{cfg.IntegrationMin, cfg.IntegrationMax} {
		if bound == nil {
			continue
		}
		b, err := dashed(plotter.XYs{{X: *bound, Y: yr[0]}, {X: *bound, Y: yr[1]}})
		if err != nil {
			return err
		}
		p.Add(b)
	}

	p.Add(t, r)
	return savePlot(p, title, dir, cfg.Formats)
}
