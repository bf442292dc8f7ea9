package main

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
)

var ErrReferenceTransmissionZero = errors.New("calibration transmission at the reference angle is zero")

// referenceEnergy converts the power meter reading taken through an ND filter
// of optical density od into the energy reaching the sample, in the reading's
// units (nJ).
func referenceEnergy(reading, od, lensTransmission float64) float64 {
	return reading * math.Pow(10, od) * lensTransmission
}

// FluenceCalculator turns a rotation angle into pulse energies and fluence.
type FluenceCalculator struct {
	curve          *CalibrationCurve
	referenceE     float64
	scale          float64
	absorptionRate float64
	spot           SpotGeometry
	area           float64
}

func NewFluenceCalculator(
	cfg PipelineConfig,
	curve *CalibrationCurve,
	absorptionRate float64,
	spot SpotGeometry,
) (
	*FluenceCalculator, error,
) {

	eRef := referenceEnergy(cfg.ReferenceReading, cfg.ReferenceOD, cfg.LensTransmission)

	tRef := curve.Evaluate(cfg.ReferenceAngle)
	if tRef == 0 || math.IsNaN(tRef) {
		return nil, fmt.Errorf("%w (angle %v deg)", ErrReferenceTransmissionZero, cfg.ReferenceAngle)
	}

	area := spot.AreaCM2()
	if area <= 0 {
		return nil, fmt.Errorf("spot %s has no area", spot)
	}

	return &FluenceCalculator{
		curve:          curve,
		referenceE:     eRef,
		scale:          eRef / tRef,
		absorptionRate: absorptionRate,
		spot:           spot,
		area:           area,
	}, nil
}

func (fc *FluenceCalculator) ReferenceEnergy() float64 { return fc.referenceE }

// Incident is the pulse energy on the sample at angle, nJ.
func (fc *FluenceCalculator) Incident(angle float64) float64 {
	return fc.scale * fc.curve.Evaluate(angle)
}

// Absorbed is the part of the incident energy taken up by the sample, nJ.
func (fc *FluenceCalculator) Absorbed(angle float64) float64 {
	return fc.Incident(angle) * fc.absorptionRate
}

// Fluence is the absorbed energy per spot area, uJ/cm^2.
func (fc *FluenceCalculator) Fluence(angle float64) float64 {
	return fc.Absorbed(angle) * 1e-3 / fc.area
}

// point fills in the physics of one spectrum file.
func (fc *FluenceCalculator) point(sf SpectrumFile) MeasurementPoint {

	p := MeasurementPoint{
		Filename:       sf.Name,
		Angle:          sf.Angle,
		IncidentEnergy: fc.Incident(sf.Angle),
		Spectrum:       sf.Spectrum,
	}
	p.AbsorbedEnergy = p.IncidentEnergy * fc.absorptionRate
	p.Fluence = p.AbsorbedEnergy * 1e-3 / fc.area

	if sf.HasIntegration {
		p.IntegrationTime = opt(sf.IntegrationTime)
	}
	if sf.HasPulseWidth {
		p.PulseWidth = opt(sf.PulseWidth)
		p.PowerDensity = opt(p.Fluence * 1e-6 / sf.PulseWidth)
	}

	return p
}

// buildManifest reads every spectrum file and computes its energies. Files
// that cannot be read or carry no angle are logged and left out. When two
// files land on the same angle the one sorting last by name is kept.
func (fc *FluenceCalculator) buildManifest(
	files []string,
	angleSource string,
	l *runLog,
) (
	*Manifest, error,
) {

	byAngle := map[float64]MeasurementPoint{}

	for _, path := range files {
		sf, err := readSpectrumFile(path, angleSource)
		if err != nil {
			l.Warnf("%s: %v, skipped", filepath.Base(path), err)
			continue
		}
		if !sf.HasAngle {
			l.Warnf("%s: no angle found (%s), skipped", sf.Name, angleSource)
			continue
		}

		if prev, ok := byAngle[sf.Angle]; ok {
			keep := sf.Name
			if prev.Filename > sf.Name {
				keep = prev.Filename
			}
			l.Warnf("%s and %s share angle %v deg, keeping %s", prev.Filename, sf.Name, sf.Angle, keep)
			if keep == prev.Filename {
				continue
			}
		}

		byAngle[sf.Angle] = fc.point(sf)
	}

	if len(byAngle) == 0 {
		return nil, errors.New("no spectrum file with a usable angle")
	}

	m := &Manifest{}
	for _, p := range byAngle {
		m.Points = append(m.Points, p)
	}
	if err := m.sortByAngle(); err != nil {
		return nil, err
	}

	for _, p := range m.Points {
		if p.IntegrationTime == nil {
			l.Warnf("%s: no integration time in header, the analysis step will assume 1 s", p.Filename)
		}
	}

	return m, nil
}
