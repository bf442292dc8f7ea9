package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testRun lays out a complete measurement folder: a wheel calibration, an
// absorbance file with OD 1 at the pump line and six spectra whose emission
// narrows with pump angle.
func testRun(t *testing.T) PipelineConfig {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "calibration.csv"),
		"angle,energy_J\n0,1\n90,5\n180,10\n270,5\n360,1\n")
	writeFile(t, filepath.Join(dir, "absorption.txt"),
		"Wavelength (nm)\tAbsorbance\n330\t0.8\n337\t1\n345\t0.9\n")

	x := linspace(500, 600, 201)
	angles := []float64{10, 40, 70, 100, 130, 160}
	sigmas := []float64{8, 7.5, 6.5, 3, 1.5, 1.2}
	for i, a := range angles {
		y := gaussian(x, 1000*float64(i+1), 550, sigmas[i], 10)
		name := fmt.Sprintf("spectrum_%03.0f.txt", a)
		writeFile(t, filepath.Join(dir, "Raw_Data", name), spectrumText(a, 0.5, x, y))
	}

	cfg := defaultConfig()
	cfg.BaseDir = dir
	cfg.ReferenceAngle = 180
	cfg.ReferenceReading = 100
	cfg.ReferenceOD = noOD
	cfg.LensTransmission = 1
	cfg.SmoothWindow = 11
	cfg.Plots = false
	return cfg.resolve()
}

func TestStages_EndToEnd(t *testing.T) {
	cfg := testRun(t)
	l := testLog(t)

	out, err := newEnergyStage(cfg, l).Run()
	if err != nil {
		t.Fatal(err)
	}
	if len(out.manifest.Points) != 6 {
		t.Fatalf("manifest has %d points, want 6", len(out.manifest.Points))
	}
	// 100 nJ at the brightest angle, 90% absorbed over 0.02 cm^2
	if got := out.calc.Fluence(180); !near(got, 4.5, 1e-9) {
		t.Errorf("fluence at 180 deg = %v, want 4.5", got)
	}

	m, sm, err := newSmoothStage(cfg, l).Run()
	if err != nil {
		t.Fatal(err)
	}
	if len(sm.Columns) != 6 || !m.Smoothed {
		t.Fatalf("smoothed %d columns (marked %t)", len(sm.Columns), m.Smoothed)
	}
	for i, h := range sm.Headers {
		if !strings.HasSuffix(h, "(w=11)") {
			t.Errorf("header %d = %q", i, h)
		}
	}

	res, err := (&analyzeStage{cfg: cfg, log: l}).Run()
	if err != nil {
		t.Fatal(err)
	}

	pts := res.Manifest.Points
	for _, p := range pts {
		if p.FWHM == nil {
			t.Fatalf("%s: FWHM undefined", p.Filename)
		}
		if p.Intensity == nil || *p.Intensity <= 0 {
			t.Errorf("%s: intensity %v", p.Filename, p.Intensity)
		}
	}
	if *pts[len(pts)-1].FWHM >= *pts[0].FWHM {
		t.Errorf("emission did not narrow: %v -> %v", *pts[0].FWHM, *pts[len(pts)-1].FWHM)
	}

	if !res.Defined {
		t.Fatal("threshold undefined")
	}
	lo, hi := pts[0].Fluence, pts[len(pts)-1].Fluence
	if res.Threshold <= lo || res.Threshold > hi {
		t.Errorf("threshold %v outside (%v, %v]", res.Threshold, lo, hi)
	}

	final, err := readManifest(cfg.resultsPath(".csv"), analyzeRequires)
	if err != nil {
		t.Fatal(err)
	}
	if final.Threshold == nil || *final.Threshold != res.Threshold || !final.Analyzed {
		t.Errorf("FINAL_RESULTS threshold = %v, want %v", final.Threshold, res.Threshold)
	}
}

func TestStages_AnalyzeBeforeSmooth(t *testing.T) {
	cfg := testRun(t)
	l := testLog(t)

	if _, err := newEnergyStage(cfg, l).Run(); err != nil {
		t.Fatal(err)
	}

	_, err := newAnalyzeStage(cfg, l).Run()
	var missing *MissingColumnError
	if !errors.As(err, &missing) || missing.Column != colSmoothing {
		t.Errorf("err = %v, want missing %q", err, colSmoothing)
	}
}

func TestStages_LockBefore(t *testing.T) {
	cfg := testRun(t)
	l := testLog(t)

	if _, err := newEnergyStage(cfg, l).Run(); err != nil {
		t.Fatal(err)
	}
	_, first, err := newSmoothStage(cfg, l).Run()
	if err != nil {
		t.Fatal(err)
	}

	cfg.LockBefore = 2
	cfg.SmoothWindow = 21
	m, sm, err := newSmoothStage(cfg, l).Run()
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if !strings.HasSuffix(sm.Headers[i], "(w=11)") || m.Points[i].Smoothing != "w=11" {
			t.Errorf("locked column %d: header %q, tag %q", i, sm.Headers[i], m.Points[i].Smoothing)
		}
		if !sameAxis(sm.Columns[i], first.Columns[i]) {
			t.Errorf("locked column %d changed", i)
		}
	}
	for i := 2; i < len(sm.Headers); i++ {
		if !strings.HasSuffix(sm.Headers[i], "(w=21)") || m.Points[i].Smoothing != "w=21" {
			t.Errorf("column %d: header %q, tag %q", i, sm.Headers[i], m.Points[i].Smoothing)
		}
	}
}

func TestStages_DimensionMismatch(t *testing.T) {
	cfg := testRun(t)
	l := testLog(t)

	if _, err := newEnergyStage(cfg, l).Run(); err != nil {
		t.Fatal(err)
	}
	_, sm, err := newSmoothStage(cfg, l).Run()
	if err != nil {
		t.Fatal(err)
	}

	sm.Headers, sm.Columns = sm.Headers[:5], sm.Columns[:5]
	if err := writeSmoothed(cfg.smoothedPath(), sm); err != nil {
		t.Fatal(err)
	}

	if _, err := newAnalyzeStage(cfg, l).Run(); err == nil || !strings.Contains(err.Error(), "dimension mismatch") {
		t.Errorf("err = %v, want dimension mismatch", err)
	}
}

func TestStages_MissingCalibration(t *testing.T) {
	cfg := testRun(t)
	if err := os.Remove(filepath.Join(cfg.BaseDir, "calibration.csv")); err != nil {
		t.Fatal(err)
	}

	if _, err := newEnergyStage(cfg, testLog(t)).Run(); !errors.Is(err, ErrMissingCalibration) {
		t.Errorf("err = %v, want ErrMissingCalibration", err)
	}
}

func TestStages_ShortSpectraRecordWindow(t *testing.T) {
	cfg := testRun(t)
	cfg.SmoothWindow = 301
	l := testLog(t)

	if _, err := newEnergyStage(cfg, l).Run(); err != nil {
		t.Fatal(err)
	}
	m, sm, err := newSmoothStage(cfg, l).Run()
	if err != nil {
		t.Fatal(err)
	}

	// 201 samples per spectrum
	for i, p := range m.Points {
		if p.Smoothing != "w=201" || !strings.HasSuffix(sm.Headers[i], "(w=201)") {
			t.Errorf("%s: tag %q, header %q, want the applied window 201", p.Filename, p.Smoothing, sm.Headers[i])
		}
	}
}

func TestStages_TooShortToSmooth(t *testing.T) {
	cfg := testRun(t)
	cfg.CropMin, cfg.CropMax = opt(549.9), opt(550.4)
	l := testLog(t)

	if _, err := newEnergyStage(cfg, l).Run(); err != nil {
		t.Fatal(err)
	}
	m, sm, err := newSmoothStage(cfg, l).Run()
	if err != nil {
		t.Fatal(err)
	}

	for i, p := range m.Points {
		if p.Smoothing != "RAW" || !strings.HasSuffix(sm.Headers[i], "(RAW)") {
			t.Errorf("%s: tag %q, header %q, want RAW", p.Filename, p.Smoothing, sm.Headers[i])
		}
	}
}
