package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Header tags written by the acquisition program above the data block.
const (
	tagAngle           = "Angle (deg):"
	tagIntegrationTime = "Integration Time (s):"
	tagPulseWidth      = "Pulse Width (s):"

	headerScanLines = 20
)

// Spectrum is an ordered (x, y) series, wavelength in nm against counts or
// absorbance.
type Spectrum struct {
	X []float64
	Y []float64
}

func (s Spectrum) Len() int { return len(s.X) }

func (s Spectrum) clone() Spectrum {
	return Spectrum{
		X: append([]float64(nil), s.X...),
		Y: append([]float64(nil), s.Y...),
	}
}

// parseXY reads every line whose first two fields are numbers. Fields may be
// separated by commas, semicolons, tabs or spaces; comment lines (#) and text
// headers are skipped.
func parseXY(r io.Reader) (Spectrum, error) {

	var s Spectrum

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || r == '\t' || r == ' '
		})
		if len(fields) < 2 {
			continue
		}

		x, err1 := strconv.ParseFloat(fields[0], 64)
		y, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 == nil && err2 == nil {
			s.X = append(s.X, x)
			s.Y = append(s.Y, y)
		}
	}
	if err := sc.Err(); err != nil {
		return s, err
	}

	if s.Len() == 0 {
		return s, errors.New("no numeric rows")
	}
	return s, nil
}

// SpectrumFile is one raw per-angle measurement as found on disk.
type SpectrumFile struct {
	Name            string
	Angle           float64
	HasAngle        bool
	IntegrationTime float64
	HasIntegration  bool
	PulseWidth      float64
	HasPulseWidth   bool
	Spectrum        Spectrum
}

// headerValue looks for tag in the first lines of a file and parses the
// number after it.
func headerValue(
	lines []string,
	tag string,
) (
	float64, bool,
) {

	for i, line := range lines {
		if i >= headerScanLines {
			break
		}
		idx := strings.Index(line, tag)
		if idx < 0 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(line[idx+len(tag):]), 64)
		if err == nil && finite(v) {
			return v, true
		}
	}
	return 0, false
}

var angleToken = regexp.MustCompile(`(?i)angle[^0-9+-]*([+-]?[0-9]+(?:\.[0-9]+)?)`)

// angleFromName pulls the angle out of names like
// 20251127_spectrum_angle_120.00deg_t_1.0s_id_3.txt.
func angleFromName(name string) (float64, bool) {
	m := angleToken.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// readSpectrumFile loads a raw spectrum and its header tags. The angle is
// taken from the header or from the filename depending on angleSource; the
// other source is never consulted.
func readSpectrumFile(
	path, angleSource string,
) (
	SpectrumFile, error,
) {

	data, err := os.ReadFile(path)
	if err != nil {
		return SpectrumFile{}, err
	}

	lines := strings.SplitN(string(data), "\n", headerScanLines+1)

	sf := SpectrumFile{Name: filepath.Base(path)}

	switch angleSource {
	case angleFromHeader:
		sf.Angle, sf.HasAngle = headerValue(lines, tagAngle)
	case angleFromFilename:
		sf.Angle, sf.HasAngle = angleFromName(path)
	default:
		return sf, fmt.Errorf("unknown angle source %q", angleSource)
	}

	sf.IntegrationTime, sf.HasIntegration = headerValue(lines, tagIntegrationTime)
	if sf.HasIntegration && sf.IntegrationTime <= 0 {
		sf.HasIntegration = false
	}
	sf.PulseWidth, sf.HasPulseWidth = headerValue(lines, tagPulseWidth)
	if sf.HasPulseWidth && sf.PulseWidth <= 0 {
		sf.HasPulseWidth = false
	}

	sf.Spectrum, err = parseXY(strings.NewReader(string(data)))
	if err != nil {
		return sf, fmt.Errorf("%s: %w", sf.Name, err)
	}

	return sf, nil
}

// listSpectrumFiles returns the spectrum files of a run folder, sorted by name.
func listSpectrumFiles(
	dir, keyword, ext string,
) (
	[]string, error,
) {

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if !strings.Contains(strings.ToLower(name), strings.ToLower(keyword)) {
			continue
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)

	return files, nil
}
