package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SmoothedMatrix is the combined smoothed-spectra table: one wavelength axis
// and one intensity column per manifest point, in manifest order.
type SmoothedMatrix struct {
	Wavelength []float64
	Headers    []string
	Columns    [][]float64
}

// columnTag extracts "w=51" from a header like "120.5 (w=51)".
func columnTag(header string) string {
	open := strings.LastIndex(header, "(")
	if open < 0 {
		return ""
	}
	return strings.TrimSuffix(strings.TrimSpace(header[open+1:]), ")")
}

func (sm *SmoothedMatrix) encode(w io.Writer) error {

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Wavelength"}, sm.Headers...)); err != nil {
		return err
	}

	row := make([]string, len(sm.Columns)+1)
	for i, wl := range sm.Wavelength {
		row[0] = formatFloat(wl)
		for j, col := range sm.Columns {
			row[j+1] = formatFloat(col[i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeSmoothed(path string, sm *SmoothedMatrix) error {
	for j, col := range sm.Columns {
		if len(col) != len(sm.Wavelength) {
			return fmt.Errorf("smoothed column %d has %d samples, axis has %d", j, len(col), len(sm.Wavelength))
		}
	}
	return writeFileAtomic(path, sm.encode)
}

func readSmoothed(path string) (*SmoothedMatrix, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 || strings.TrimSpace(rows[0][0]) != "Wavelength" {
		return nil, &MissingColumnError{File: filepath.Base(path), Column: "Wavelength"}
	}

	sm := &SmoothedMatrix{Headers: rows[0][1:]}
	sm.Columns = make([][]float64, len(sm.Headers))

	for r, v := range rows[1:] {
		if len(v) != len(rows[0]) {
			return nil, fmt.Errorf("%s: row %d has %d cells, want %d", filepath.Base(path), r+2, len(v), len(rows[0]))
		}
		for c, cell := range v {
			x, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", filepath.Base(path), r+2, err)
			}
			if c == 0 {
				sm.Wavelength = append(sm.Wavelength, x)
			} else {
				sm.Columns[c-1] = append(sm.Columns[c-1], x)
			}
		}
	}

	return sm, nil
}
