package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ND filter optical densities measured at 337 nm.
const (
	od1  = 1.001
	od3  = 3.163
	noOD = 0.
)

const (
	angleFromHeader   = "header"
	angleFromFilename = "filename"
)

// SpotConfig describes the excitation spot as entered by the operator.
//
//	rectangle: Dim1 = length (height), Dim2 = width
//	circle:    Dim1 = diameter, Dim2 ignored
//	ellipse:   Dim1 = major axis, Dim2 = minor axis
type SpotConfig struct {
	Shape  string  `json:"shape"`
	Dim1UM float64 `json:"dim1_um"`
	Dim2UM float64 `json:"dim2_um"`
}

// PipelineConfig holds every setting of one analysis run. It is built once in
// main and passed by value to each stage.
type PipelineConfig struct {
	Sample string `json:"sample"`

	BaseDir    string `json:"base_dir"`
	DataDir    string `json:"data_dir"`
	ResultsDir string `json:"results_dir"`

	CalibrationPath    string `json:"calibration_path"`
	AbsorptionPath     string `json:"absorption_path"`
	CalibrationKeyword string `json:"calibration_keyword"`
	AbsorptionKeyword  string `json:"absorption_keyword"`
	SpectrumKeyword    string `json:"spectrum_keyword"`
	SpectrumExt        string `json:"spectrum_ext"`

	ManifestName string `json:"manifest_name"`
	SmoothedName string `json:"smoothed_name"`
	ResultsName  string `json:"results_name"`

	ReferenceAngle   float64 `json:"reference_angle"`
	ReferenceReading float64 `json:"reference_reading_nj"`
	ReferenceOD      float64 `json:"reference_od"`
	LensTransmission float64 `json:"lens_transmission"`
	TargetWavelength float64 `json:"target_wavelength_nm"`

	Spot SpotConfig `json:"spot"`

	AngleSource string `json:"angle_source"`

	FilterODs        map[string]float64 `json:"filter_ods"`
	PulseSkip        int                `json:"pulse_skip"`
	PulseSigmaCutoff float64            `json:"pulse_sigma_cutoff"`

	SmoothWindow int      `json:"smooth_window"`
	LockBefore   int      `json:"lock_before"`
	CropMin      *float64 `json:"crop_min_nm"`
	CropMax      *float64 `json:"crop_max_nm"`

	BaselinePoints int      `json:"baseline_points"`
	IntegrationMin *float64 `json:"integration_min_nm"`
	IntegrationMax *float64 `json:"integration_max_nm"`

	ThresholdGrid    int     `json:"threshold_grid"`
	ThresholdExclude float64 `json:"threshold_exclude"`

	Plots   bool     `json:"plots"`
	Formats []string `json:"formats"`
	Slide   bool     `json:"slide"`
	Xlsx    bool     `json:"xlsx"`
	Gnuplot bool     `json:"gnuplot"`
	GIF     bool     `json:"gif"`
}

func defaultConfig() PipelineConfig {
	return PipelineConfig{
		CalibrationKeyword: "calibration",
		AbsorptionKeyword:  "absorption",
		SpectrumKeyword:    "spectrum",
		SpectrumExt:        ".txt",

		ManifestName: "energies.csv",
		SmoothedName: "COMBINED_smoothed_spectra.csv",
		ResultsName:  "FINAL_RESULTS",

		ReferenceAngle:   280,
		ReferenceReading: 24,
		ReferenceOD:      od3,
		LensTransmission: 0.959,
		TargetWavelength: 337,

		Spot: SpotConfig{Shape: "rectangle", Dim1UM: 4000, Dim2UM: 500},

		AngleSource: angleFromHeader,

		FilterODs:        map[string]float64{"0": noOD, "1": od1, "3": od3},
		PulseSkip:        5,
		PulseSigmaCutoff: 3,

		SmoothWindow: 51,

		BaselinePoints: 10,

		ThresholdGrid:    500,
		ThresholdExclude: 0.05,

		Plots:   true,
		Formats: []string{"png", "svg", "pdf"},
	}
}

// loadConfig reads a JSON run file on top of the defaults. Keys missing from
// the file keep their default value.
func loadConfig(path string) (PipelineConfig, error) {

	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}

	return cfg, nil
}

// resolve fills in the derived directories.
func (c PipelineConfig) resolve() PipelineConfig {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.BaseDir, "Raw_Data")
	}
	if c.ResultsDir == "" {
		c.ResultsDir = filepath.Join(c.BaseDir, "Results")
	}
	c.AngleSource = strings.ToLower(c.AngleSource)
	return c
}

func (c PipelineConfig) validate() error {

	if c.BaseDir == "" && (c.DataDir == "" || c.ResultsDir == "") {
		return errors.New("config: base_dir is not set")
	}

	if _, err := newSpotGeometry(c.Spot.Shape, c.Spot.Dim1UM, c.Spot.Dim2UM); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := checkWindow(c.SmoothWindow); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch c.AngleSource {
	case angleFromHeader, angleFromFilename:
	default:
		return fmt.Errorf("config: angle_source must be %q or %q, got %q",
			angleFromHeader, angleFromFilename, c.AngleSource)
	}

	if c.LensTransmission <= 0 {
		return fmt.Errorf("config: lens_transmission must be > 0, got %v", c.LensTransmission)
	}

	if c.BaselinePoints < 1 {
		return fmt.Errorf("config: baseline_points must be >= 1, got %d", c.BaselinePoints)
	}

	if c.ThresholdGrid < 500 {
		return fmt.Errorf("config: threshold_grid must be >= 500, got %d", c.ThresholdGrid)
	}

	if c.ThresholdExclude < 0 || c.ThresholdExclude >= 1 {
		return fmt.Errorf("config: threshold_exclude must be in [0, 1), got %v", c.ThresholdExclude)
	}

	if c.PulseSigmaCutoff <= 0 {
		return fmt.Errorf("config: pulse_sigma_cutoff must be > 0, got %v", c.PulseSigmaCutoff)
	}

	return nil
}

func (c PipelineConfig) manifestPath() string {
	return filepath.Join(c.ResultsDir, c.ManifestName)
}

func (c PipelineConfig) smoothedPath() string {
	return filepath.Join(c.ResultsDir, c.SmoothedName)
}

func (c PipelineConfig) resultsPath(ext string) string {
	return filepath.Join(c.ResultsDir, c.ResultsName+ext)
}

// findFileUniversal returns the first file in dir whose name contains keyword,
// preferring .csv over .txt over anything else.
func findFileUniversal(
	dir, keyword string,
) (
	string, bool,
) {

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	rank := func(name string) int {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv":
			return 0
		case ".txt":
			return 1
		}
		return 2
	}

	best, bestRank := "", 3
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(strings.ToLower(e.Name()), strings.ToLower(keyword)) {
			continue
		}
		if r := rank(e.Name()); r < bestRank || (r == bestRank && e.Name() < best) {
			best, bestRank = e.Name(), r
		}
	}

	if best == "" {
		return "", false
	}
	return filepath.Join(dir, best), true
}
