package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const manifestVersion = "# ase-manifest v1"

// Manifest columns. Which ones are present tells how far a run has gone.
const (
	colFilename        = "filename"
	colAngle           = "angle"
	colIntegrationTime = "integration_time_s"
	colPulseWidth      = "pulse_width_s"
	colIncident        = "incident_energy_nJ"
	colAbsorbed        = "absorbed_energy_nJ"
	colFluence         = "fluence_uJ_cm2"
	colPowerDensity    = "power_density_W_cm2"
	colSmoothing       = "smoothing"
	colFWHM            = "FWHM_nm"
	colFWHMFit         = "FWHM_fit_nm"
	colIntensity       = "Integrated_Intensity"
	colThreshold       = "Calculated_Threshold"

	undefinedCell = "undefined"
)

var (
	energyColumns = []string{
		colFilename, colAngle, colIntegrationTime, colPulseWidth,
		colIncident, colAbsorbed, colFluence, colPowerDensity,
	}
	smoothColumns  = []string{colSmoothing}
	analyzeColumns = []string{colFWHM, colFWHMFit, colIntensity, colThreshold}
)

// Columns each stage reads from the manifest it is handed.
var (
	smoothRequires  = []string{colFilename, colAngle}
	analyzeRequires = []string{colFilename, colAngle, colFluence, colSmoothing}
)

type MissingColumnError struct {
	File   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing column %q (run the earlier step first)", e.File, e.Column)
}

// MeasurementPoint is one angle of the run. Pointer fields are optional and
// nil when unknown or undefined.
type MeasurementPoint struct {
	Filename        string
	Angle           float64
	IntegrationTime *float64
	PulseWidth      *float64
	IncidentEnergy  float64 // nJ
	AbsorbedEnergy  float64 // nJ
	Fluence         float64 // uJ/cm^2
	PowerDensity    *float64

	Smoothing string

	FWHM      *float64
	FWHMFit   *float64
	Intensity *float64

	Spectrum Spectrum
	Smoothed Spectrum
}

// Manifest is the per-angle table threaded through the steps, sorted by angle.
type Manifest struct {
	Points    []MeasurementPoint
	Smoothed  bool
	Analyzed  bool
	Threshold *float64
}

func opt(v float64) *float64 { return &v }

// sortByAngle orders the points and checks angles are finite and strictly
// increasing and no source file appears twice.
func (m *Manifest) sortByAngle() error {

	sort.SliceStable(m.Points, func(i, j int) bool { return m.Points[i].Angle < m.Points[j].Angle })

	seen := map[string]bool{}
	for i, p := range m.Points {
		if !finite(p.Angle) {
			return fmt.Errorf("manifest: %s has angle %v", p.Filename, p.Angle)
		}
		if seen[p.Filename] {
			return fmt.Errorf("manifest: %s listed twice", p.Filename)
		}
		seen[p.Filename] = true
		if i > 0 && p.Angle == m.Points[i-1].Angle {
			return fmt.Errorf("manifest: angle %v appears twice (%s, %s)", p.Angle, m.Points[i-1].Filename, p.Filename)
		}
	}
	return nil
}

func (m *Manifest) Angles() []float64 {
	out := make([]float64, len(m.Points))
	for i, p := range m.Points {
		out[i] = p.Angle
	}
	return out
}

func (m *Manifest) Fluences() []float64 {
	out := make([]float64, len(m.Points))
	for i, p := range m.Points {
		out[i] = p.Fluence
	}
	return out
}

func (m *Manifest) columns() []string {
	cols := append([]string(nil), energyColumns...)
	if m.Smoothed || m.Analyzed {
		cols = append(cols, smoothColumns...)
	}
	if m.Analyzed {
		cols = append(cols, analyzeColumns...)
	}
	return cols
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func (m *Manifest) cell(p MeasurementPoint, col string) string {
	switch col {
	case colFilename:
		return p.Filename
	case colAngle:
		return formatFloat(p.Angle)
	case colIntegrationTime:
		return formatOpt(p.IntegrationTime)
	case colPulseWidth:
		return formatOpt(p.PulseWidth)
	case colIncident:
		return formatFloat(p.IncidentEnergy)
	case colAbsorbed:
		return formatFloat(p.AbsorbedEnergy)
	case colFluence:
		return formatFloat(p.Fluence)
	case colPowerDensity:
		return formatOpt(p.PowerDensity)
	case colSmoothing:
		return p.Smoothing
	case colFWHM:
		if p.FWHM == nil {
			return undefinedCell
		}
		return formatFloat(*p.FWHM)
	case colFWHMFit:
		if p.FWHMFit == nil {
			return undefinedCell
		}
		return formatFloat(*p.FWHMFit)
	case colIntensity:
		return formatOpt(p.Intensity)
	case colThreshold:
		if m.Threshold == nil {
			return undefinedCell
		}
		return formatFloat(*m.Threshold)
	}
	return ""
}

// Rows returns the header and the table cells as written to disk.
func (m *Manifest) Rows() [][]string {
	cols := m.columns()
	rows := [][]string{cols}
	for _, p := range m.Points {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = m.cell(p, c)
		}
		rows = append(rows, row)
	}
	return rows
}

func (m *Manifest) encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(manifestVersion + "\n"); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	if err := cw.WriteAll(m.Rows()); err != nil {
		return err
	}
	return bw.Flush()
}

func writeManifest(path string, m *Manifest) error {
	return writeFileAtomic(path, m.encode)
}

// readCSV skips the version line, when there is one, and returns the rest.
func readCSV(
	rs io.ReadSeeker,
) (
	[][]string, error,
) {

	row1, err := bufio.NewReader(rs).ReadSlice('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}

	offset := int64(0)
	if strings.HasPrefix(string(row1), "# ase-manifest") {
		if strings.TrimSpace(string(row1)) != manifestVersion {
			return nil, fmt.Errorf("unsupported manifest version %q", strings.TrimSpace(string(row1)))
		}
		offset = int64(len(row1))
	}
	if _, err := rs.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	r := csv.NewReader(rs)
	return r.ReadAll()
}

func parseOpt(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, undefinedCell) || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// readManifest loads a manifest and fails when any of requires is missing.
// Manifests written before the version line existed are accepted too.
func readManifest(
	path string,
	requires []string,
) (
	*Manifest, error,
) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty manifest", filepath.Base(path))
	}

	col := map[string]int{}
	for i, heading := range rows[0] {
		col[strings.TrimSpace(heading)] = i
	}
	for _, c := range requires {
		if _, ok := col[c]; !ok {
			return nil, &MissingColumnError{File: filepath.Base(path), Column: c}
		}
	}

	get := func(v []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(v) {
			return "", false
		}
		return v[i], true
	}

	m := &Manifest{}
	_, m.Smoothed = col[colSmoothing]
	_, m.Analyzed = col[colFWHM]

	for row, v := range rows[1:] {
		var p MeasurementPoint
		fail := func(name string, err error) error {
			return fmt.Errorf("%s: row %d column %s: %w", filepath.Base(path), row+2, name, err)
		}

		p.Filename, _ = get(v, colFilename)

		floatsCols := []struct {
			name string
			dst  *float64
		}{
			{colAngle, &p.Angle},
			{colIncident, &p.IncidentEnergy},
			{colAbsorbed, &p.AbsorbedEnergy},
			{colFluence, &p.Fluence},
		}
		for _, fc := range floatsCols {
			s, ok := get(v, fc.name)
			if !ok {
				continue
			}
			x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fail(fc.name, err)
			}
			*fc.dst = x
		}

		optCols := []struct {
			name string
			dst  **float64
		}{
			{colIntegrationTime, &p.IntegrationTime},
			{colPulseWidth, &p.PulseWidth},
			{colPowerDensity, &p.PowerDensity},
			{colFWHM, &p.FWHM},
			{colFWHMFit, &p.FWHMFit},
			{colIntensity, &p.Intensity},
		}
		for _, oc := range optCols {
			s, ok := get(v, oc.name)
			if !ok {
				continue
			}
			x, err := parseOpt(s)
			if err != nil {
				return nil, fail(oc.name, err)
			}
			*oc.dst = x
		}

		p.Smoothing, _ = get(v, colSmoothing)

		if s, ok := get(v, colThreshold); ok && m.Threshold == nil {
			t, err := parseOpt(s)
			if err != nil {
				return nil, fail(colThreshold, err)
			}
			m.Threshold = t
		}

		m.Points = append(m.Points, p)
	}

	if err := m.sortByAngle(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}
