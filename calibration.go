package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

var (
	ErrMissingCalibration    = errors.New("calibration file missing")
	ErrDegenerateCalibration = errors.New("degenerate calibration table")
)

// CalibrationPoint is one (rotation angle, pulse energy) pair of the wheel
// calibration. Energy is in joules, already corrected for ND filters.
type CalibrationPoint struct {
	Angle  float64
	Energy float64
}

// CalibrationTable is sorted by angle with unique angles.
type CalibrationTable []CalibrationPoint

// pulseBursts holds the raw power meter readings of every angle that was
// logged pulse by pulse, keyed by angle.
type pulseBursts map[float64][]float64

// readCalibration loads the wheel calibration CSV. Recognised layouts:
//
//	angle, energy_corrected_J            (filters already applied)
//	angle, energy_J, filter              (filter name -> OD from filterODs)
//	angle, energy_J                      (no filter in the beam)
//
// Several rows per angle are treated as a pulse log and reduced with
// reducePulses; the raw bursts are returned for the pulse figures.
func readCalibration(
	path string,
	cfg PipelineConfig,
	l *runLog,
) (
	CalibrationTable, pulseBursts, error,
) {

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingCalibration, path)
		}
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("%w: %s has no data rows", ErrDegenerateCalibration, filepath.Base(path))
	}

	angleCol, correctedCol, rawCol, filterCol := -1, -1, -1, -1
	for col, heading := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(heading)) {
		case "angle":
			angleCol = col
		case "energy_corrected_j", "energy_corrected":
			correctedCol = col
		case "energy_j":
			rawCol = col
		case "filter":
			filterCol = col
		}
	}

	if angleCol < 0 {
		return nil, nil, &MissingColumnError{File: filepath.Base(path), Column: "angle"}
	}
	energyCol := correctedCol
	if energyCol < 0 {
		energyCol = rawCol
	}
	if energyCol < 0 {
		return nil, nil, &MissingColumnError{File: filepath.Base(path), Column: "energy_corrected_J"}
	}
	applyOD := correctedCol < 0 && filterCol >= 0

	if correctedCol < 0 && filterCol < 0 {
		l.Warnf("%s: no energy_corrected_J or filter column, using energy_J as measured", filepath.Base(path))
	}

	pulses := map[float64][]float64{}
	var order []float64

	for row, v := range rows[1:] {
		if angleCol >= len(v) || energyCol >= len(v) {
			l.Warnf("%s: row %d is short, skipped", filepath.Base(path), row+2)
			continue
		}

		angle, err := strconv.ParseFloat(strings.TrimSpace(v[angleCol]), 64)
		if err != nil {
			l.Warnf("%s: row %d angle %q: %v", filepath.Base(path), row+2, v[angleCol], err)
			continue
		}
		energy, err := strconv.ParseFloat(strings.TrimSpace(v[energyCol]), 64)
		if err != nil {
			l.Warnf("%s: row %d energy %q: %v", filepath.Base(path), row+2, v[energyCol], err)
			continue
		}

		if applyOD {
			name := strings.TrimSpace(v[filterCol])
			od, ok := cfg.FilterODs[name]
			if !ok {
				return nil, nil, fmt.Errorf("%s: row %d: unknown filter %q", filepath.Base(path), row+2, name)
			}
			energy *= math.Pow(10, od)
		}

		if _, seen := pulses[angle]; !seen {
			order = append(order, angle)
		}
		pulses[angle] = append(pulses[angle], energy)
	}

	table := make(CalibrationTable, 0, len(order))
	bursts := pulseBursts{}
	for _, angle := range order {
		readings := pulses[angle]
		if len(readings) == 1 {
			table = append(table, CalibrationPoint{Angle: angle, Energy: readings[0]})
			continue
		}
		bursts[angle] = readings

		r, err := reducePulses(readings, cfg.PulseSkip, cfg.PulseSigmaCutoff)
		if err != nil {
			l.Warnf("%s: angle %v: %v, angle dropped", filepath.Base(path), angle, err)
			continue
		}
		l.Printf("Calibration %7.2f deg: %d/%d pulses kept, mean %.4g J\n", angle, r.Kept, r.Total, r.Mean)
		table = append(table, CalibrationPoint{Angle: angle, Energy: r.Mean})
	}

	sort.Slice(table, func(i, j int) bool { return table[i].Angle < table[j].Angle })

	return table, bursts, nil
}

// hermite is one cubic segment in value/slope form. It evaluates the same
// polynomial outside [x0, x1], which is what extrapolation uses.
type hermite struct {
	x0, x1, y0, y1, d0, d1 float64
}

func (h hermite) at(x float64) float64 {
	w := h.x1 - h.x0
	t := (x - h.x0) / w
	t2 := t * t
	t3 := t2 * t
	return (2*t3-3*t2+1)*h.y0 + (t3-2*t2+t)*w*h.d0 + (-2*t3+3*t2)*h.y1 + (t3-t2)*w*h.d1
}

// CalibrationCurve maps rotation angle to transmission normalized to the
// brightest calibration point. Outside the sampled range the end cubics are
// extended, so values may leave [0, 1].
type CalibrationCurve struct {
	spline    interp.NotAKnotCubic
	angles    []float64
	norm      []float64
	maxEnergy float64
	head      hermite
	tail      hermite
}

// FitCalibration normalizes the table by its maximum energy and fits a
// not-a-knot cubic spline through it.
func FitCalibration(table CalibrationTable) (*CalibrationCurve, error) {

	if len(table) < 4 {
		return nil, fmt.Errorf("%w: %d points, need at least 4", ErrDegenerateCalibration, len(table))
	}

	pts := append(CalibrationTable(nil), table...)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Angle < pts[j].Angle })

	angles := make([]float64, len(pts))
	energies := make([]float64, len(pts))
	for i, p := range pts {
		angles[i], energies[i] = p.Angle, p.Energy
		if math.IsNaN(p.Energy) || math.IsInf(p.Energy, 0) {
			return nil, fmt.Errorf("%w: energy %v at angle %v", ErrDegenerateCalibration, p.Energy, p.Angle)
		}
		if i > 0 && angles[i] == angles[i-1] {
			return nil, fmt.Errorf("%w: duplicate angle %v", ErrDegenerateCalibration, angles[i])
		}
	}

	maxEnergy := floats.Max(energies)
	if maxEnergy <= 0 || math.IsNaN(maxEnergy) || math.IsInf(maxEnergy, 0) {
		return nil, fmt.Errorf("%w: max energy is %v", ErrDegenerateCalibration, maxEnergy)
	}

	norm := make([]float64, len(energies))
	copy(norm, energies)
	floats.Scale(1/maxEnergy, norm)

	c := &CalibrationCurve{angles: angles, norm: norm, maxEnergy: maxEnergy}
	if err := c.spline.Fit(angles, norm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateCalibration, err)
	}

	n := len(angles)
	c.head = c.segment(angles[0], angles[1])
	c.tail = c.segment(angles[n-2], angles[n-1])

	return c, nil
}

func (c *CalibrationCurve) segment(x0, x1 float64) hermite {
	return hermite{
		x0: x0, x1: x1,
		y0: c.spline.Predict(x0), y1: c.spline.Predict(x1),
		d0: c.spline.PredictDerivative(x0), d1: c.spline.PredictDerivative(x1),
	}
}

// Evaluate returns the normalized transmission at angle. It never fails;
// angles outside the calibrated range are extrapolated.
func (c *CalibrationCurve) Evaluate(angle float64) float64 {
	switch {
	case angle < c.angles[0]:
		return c.head.at(angle)
	case angle > c.angles[len(c.angles)-1]:
		return c.tail.at(angle)
	}
	return c.spline.Predict(angle)
}

func (c *CalibrationCurve) EvaluateAll(angles []float64) []float64 {
	out := make([]float64, len(angles))
	for i, a := range angles {
		out[i] = c.Evaluate(a)
	}
	return out
}

// Samples returns the sorted calibration angles and their normalized values.
func (c *CalibrationCurve) Samples() ([]float64, []float64) {
	return append([]float64(nil), c.angles...), append([]float64(nil), c.norm...)
}

func (c *CalibrationCurve) MaxEnergy() float64 { return c.maxEnergy }
