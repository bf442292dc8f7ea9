package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

//----------------------------------------------------------------------------//
// Step 1: energies

type energyStage struct {
	cfg PipelineConfig
	log *runLog
}

type energyOutput struct {
	manifest *Manifest
	curve    *CalibrationCurve
	calc     *FluenceCalculator
	bursts   pulseBursts
}

func newEnergyStage(cfg PipelineConfig, l *runLog) *energyStage {
	return &energyStage{cfg: cfg, log: l}
}

func (s *energyStage) calibrationPath() (string, error) {
	if s.cfg.CalibrationPath != "" {
		return s.cfg.CalibrationPath, nil
	}
	path, ok := findFileUniversal(s.cfg.BaseDir, s.cfg.CalibrationKeyword)
	if !ok {
		return "", fmt.Errorf("%w: no file matching %q in %s", ErrMissingCalibration, s.cfg.CalibrationKeyword, s.cfg.BaseDir)
	}
	return path, nil
}

func (s *energyStage) absorptionPath() string {
	if s.cfg.AbsorptionPath != "" {
		return s.cfg.AbsorptionPath
	}
	path, _ := findFileUniversal(s.cfg.BaseDir, s.cfg.AbsorptionKeyword)
	return path
}

func (s *energyStage) Run() (*energyOutput, error) {

	cfg, l := s.cfg, s.log
	l.Printf("=== STEP 1: PHYSICS CALCULATIONS ===\n")

	spot, err := newSpotGeometry(cfg.Spot.Shape, cfg.Spot.Dim1UM, cfg.Spot.Dim2UM)
	if err != nil {
		return nil, err
	}

	calibPath, err := s.calibrationPath()
	if err != nil {
		return nil, err
	}
	l.Printf("Calibration: %s\n", filepath.Base(calibPath))

	table, bursts, err := readCalibration(calibPath, cfg, l)
	if err != nil {
		return nil, err
	}
	curve, err := FitCalibration(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(calibPath), err)
	}

	rate := absorptionRate(s.absorptionPath(), cfg.TargetWavelength, l)

	calc, err := NewFluenceCalculator(cfg, curve, rate, spot)
	if err != nil {
		return nil, err
	}
	l.Printf("Ref Energy: %.2f nJ | Spot: %s | Spot Area: %.2e cm^2\n", calc.ReferenceEnergy(), spot, spot.AreaCM2())

	files, err := listSpectrumFiles(cfg.DataDir, cfg.SpectrumKeyword, cfg.SpectrumExt)
	if err != nil {
		return nil, fmt.Errorf("spectrum folder: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %q%s files in %s", cfg.SpectrumKeyword, cfg.SpectrumExt, cfg.DataDir)
	}
	l.Printf("Scanning %d files...\n", len(files))

	m, err := calc.buildManifest(files, cfg.AngleSource, l)
	if err != nil {
		return nil, err
	}

	if err := writeManifest(cfg.manifestPath(), m); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}
	l.Printf(" -> Saved Manifest: %s (%d points)\n", cfg.manifestPath(), len(m.Points))

	l.Printf("\nAngle \t\t Incident \t Fluence \t File\n")
	for _, p := range m.Points {
		l.Printf("%7.2f deg \t %8.3f nJ \t %8.3f uJ/cm2 \t %s\n", p.Angle, p.IncidentEnergy, p.Fluence, p.Filename)
	}

	return &energyOutput{manifest: m, curve: curve, calc: calc, bursts: bursts}, nil
}

//----------------------------------------------------------------------------//
// Step 2: smoothing

type smoothStage struct {
	cfg PipelineConfig
	log *runLog
}

func newSmoothStage(cfg PipelineConfig, l *runLog) *smoothStage {
	return &smoothStage{cfg: cfg, log: l}
}

// loadRaw reads a spectrum and cuts it to the configured wavelength window.
func (s *smoothStage) loadRaw(name string) (Spectrum, error) {

	f, err := os.Open(filepath.Join(s.cfg.DataDir, name))
	if err != nil {
		return Spectrum{}, err
	}
	defer f.Close()

	raw, err := parseXY(f)
	if err != nil {
		return Spectrum{}, err
	}

	var out Spectrum
	for i, x := range raw.X {
		if s.cfg.CropMin != nil && x < *s.cfg.CropMin {
			continue
		}
		if s.cfg.CropMax != nil && x > *s.cfg.CropMax {
			continue
		}
		out.X = append(out.X, x)
		out.Y = append(out.Y, raw.Y[i])
	}
	if out.Len() == 0 {
		return out, errors.New("no samples inside the crop window")
	}
	return out, nil
}

func sameAxis(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-6*math.Max(1, math.Abs(a[i])) {
			return false
		}
	}
	return true
}

// previous returns the matrix of an earlier smoothing run when it can be
// reused column by column.
func (s *smoothStage) previous(n int) *SmoothedMatrix {

	if s.cfg.LockBefore <= 0 {
		return nil
	}

	prev, err := readSmoothed(s.cfg.smoothedPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.log.Printf(" -> No previous file found. Starting fresh.\n")
		return nil
	case err != nil:
		s.log.Warnf("%s: %v, starting fresh", s.cfg.SmoothedName, err)
		return nil
	case len(prev.Columns) != n:
		s.log.Warnf("%s: %d columns for %d points, starting fresh", s.cfg.SmoothedName, len(prev.Columns), n)
		return nil
	}

	s.log.Printf(" -> Found existing file: %s\n", s.cfg.SmoothedName)
	return prev
}

func (s *smoothStage) Run() (*Manifest, *SmoothedMatrix, error) {

	cfg, l := s.cfg, s.log
	l.Printf("=== STEP 2: SIGNAL PROCESSING (%s) ===\n", cfg.SmoothedName)

	m, err := readManifest(cfg.manifestPath(), smoothRequires)
	if err != nil {
		return nil, nil, err
	}

	prev := s.previous(len(m.Points))

	l.Printf(" -> Processing...\n")
	if cfg.LockBefore > 0 {
		l.Printf("    [0 - %d] : LOCKED (Preserving old headers)\n", cfg.LockBefore-1)
	}
	l.Printf("    [%d - End] : NEW PROCESSING (w=%d)\n", cfg.LockBefore, cfg.SmoothWindow)

	sm := &SmoothedMatrix{}
	kept := make([]MeasurementPoint, 0, len(m.Points))

	for i, p := range m.Points {

		raw, err := s.loadRaw(p.Filename)
		if err != nil {
			l.Warnf("%s: %v, dropped from the run", p.Filename, err)
			continue
		}

		if sm.Wavelength == nil {
			sm.Wavelength = raw.X
		} else if !sameAxis(sm.Wavelength, raw.X) {
			l.Warnf("%s: wavelength axis differs from %s, dropped from the run", p.Filename, kept[0].Filename)
			continue
		}

		label := formatFloat(p.Angle)

		var column []float64
		var header string

		switch {
		case i < cfg.LockBefore && prev != nil && sameAxis(prev.Wavelength, sm.Wavelength):
			column = prev.Columns[i]
			header = prev.Headers[i]
			p.Smoothing = columnTag(header)
			if p.Smoothing == "" {
				p.Smoothing = "LOCKED"
			}

		case i < cfg.LockBefore:
			l.Warnf("%s: locked but no usable previous column, kept raw", p.Filename)
			column = raw.Y
			header = label + " (RAW)"
			p.Smoothing = "RAW"

		default:
			smoothed, err := Smooth(raw, cfg.SmoothWindow)
			if err != nil {
				return nil, nil, err
			}
			w := effectiveWindow(cfg.SmoothWindow, raw.Len())
			switch {
			case w == 0:
				l.Warnf("%s: %d samples, too short to smooth, kept raw", p.Filename, raw.Len())
				p.Smoothing = "RAW"
			case w != cfg.SmoothWindow:
				l.Warnf("%s: %d samples, window reduced to %d", p.Filename, raw.Len(), w)
				p.Smoothing = fmt.Sprintf("w=%d", w)
			default:
				p.Smoothing = fmt.Sprintf("w=%d", w)
			}
			column = smoothed.Y
			header = label + " (" + p.Smoothing + ")"
		}

		p.Spectrum = raw
		p.Smoothed = Spectrum{X: sm.Wavelength, Y: column}

		sm.Headers = append(sm.Headers, header)
		sm.Columns = append(sm.Columns, column)
		kept = append(kept, p)
	}

	if len(kept) == 0 {
		return nil, nil, errors.New("no spectrum could be smoothed")
	}

	m.Points = kept
	m.Smoothed = true

	if err := writeSmoothed(cfg.smoothedPath(), sm); err != nil {
		return nil, nil, fmt.Errorf("save %s: %w", cfg.SmoothedName, err)
	}
	if err := writeManifest(cfg.manifestPath(), m); err != nil {
		return nil, nil, fmt.Errorf("save manifest: %w", err)
	}
	l.Printf(" -> SUCCESS: Updated %s (%d spectra)\n", cfg.SmoothedName, len(sm.Columns))

	return m, sm, nil
}

//----------------------------------------------------------------------------//
// Step 3: analysis

type analyzeStage struct {
	cfg PipelineConfig
	log *runLog
}

// ASEResult is the outcome of one analysis: the completed table and the
// threshold, when one could be estimated.
type ASEResult struct {
	Manifest  *Manifest
	Smoothed  *SmoothedMatrix
	Threshold float64
	Defined   bool
}

func newAnalyzeStage(cfg PipelineConfig, l *runLog) *analyzeStage {
	return &analyzeStage{cfg: cfg, log: l}
}

func (s *analyzeStage) Run() (*ASEResult, error) {

	cfg, l := s.cfg, s.log
	l.Printf("=== STEP 3: PHYSICS ANALYSIS ===\n")

	l.Printf(" -> Loading Energy Manifest...\n")
	m, err := readManifest(cfg.manifestPath(), analyzeRequires)
	if err != nil {
		return nil, err
	}

	l.Printf(" -> Loading Spectra from: %s\n", cfg.SmoothedName)
	sm, err := readSmoothed(cfg.smoothedPath())
	if err != nil {
		return nil, err
	}

	if len(sm.Columns) != len(m.Points) {
		return nil, fmt.Errorf("dimension mismatch: %d smoothed spectra, %d manifest rows (re-run steps 1 and 2)",
			len(sm.Columns), len(m.Points))
	}

	xs, _ := roi(sm.Wavelength, sm.Wavelength, cfg.IntegrationMin, cfg.IntegrationMax)
	if len(xs) < 2 {
		return nil, errors.New("integration window holds fewer than 2 samples")
	}
	l.Printf(" -> Integration Range: %.1fnm to %.1fnm\n", xs[0], xs[len(xs)-1])

	var fluences, widths []float64

	l.Printf("\nAngle \t\t Fluence \t FWHM \t\t FWHM (fit) \t Intensity\n")
	for i := range m.Points {
		p := &m.Points[i]
		p.Smoothed = Spectrum{X: sm.Wavelength, Y: sm.Columns[i]}

		corrected := baselineCorrect(sm.Columns[i], cfg.BaselinePoints)

		tInt := p.IntegrationTime
		if tInt == nil {
			l.Warnf("%s: no integration time, using 1 s", p.Filename)
			tInt = opt(1)
		}
		p.Intensity = opt(integratedIntensity(sm.Wavelength, corrected, cfg.IntegrationMin, cfg.IntegrationMax, tInt))

		p.FWHM, p.FWHMFit = nil, nil
		if w, ok := FWHM(sm.Wavelength, corrected); ok {
			p.FWHM = opt(w)
			fluences = append(fluences, p.Fluence)
			widths = append(widths, w)

			if fw, ok := fitFWHM(sm.Wavelength, corrected, w); ok {
				p.FWHMFit = opt(fw)
			} else {
				l.Warnf("%s: Gaussian fit did not converge", p.Filename)
			}
		} else {
			l.Warnf("%s: FWHM undefined (flat spectrum or peak at the edge)", p.Filename)
		}

		l.Printf("%7.2f deg \t %8.3f \t %s \t %s \t %.4g\n",
			p.Angle, p.Fluence, describeWidth(p.FWHM), describeWidth(p.FWHMFit), *p.Intensity)
	}

	res := &ASEResult{Manifest: m, Smoothed: sm}
	res.Threshold, res.Defined = newThresholdEstimator(cfg).Estimate(fluences, widths)
	if res.Defined {
		m.Threshold = opt(res.Threshold)
		l.Printf("\n   [RESULT] Calculated ASE Threshold: %.2f uJ/cm2\n\n", res.Threshold)
	} else {
		m.Threshold = nil
		l.Warnf("ASE threshold undefined: %d points with a defined FWHM, need 4 distinct fluences", len(widths))
	}
	m.Analyzed = true

	if err := writeManifest(cfg.resultsPath(".csv"), m); err != nil {
		return nil, fmt.Errorf("save results: %w", err)
	}
	l.Printf(" -> Saved Final Table: %s\n", cfg.resultsPath(".csv"))

	return res, nil
}

func describeWidth(w *float64) string {
	if w == nil {
		return undefinedCell
	}
	return fmt.Sprintf("%.3f nm", *w)
}
