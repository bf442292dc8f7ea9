package main

import (
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet = "Results"
	spectraSheet = "Spectra"
)

// xlsxCell keeps numbers numeric so the workbook can be re-plotted directly;
// "undefined" and text stay strings.
func xlsxCell(s string) interface{} {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}

// writeResultsXlsx saves the results table and the smoothed spectra as a
// two-sheet workbook.
func writeResultsXlsx(path string, res *ASEResult) error {

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", resultsSheet)

	sw, err := f.NewStreamWriter(resultsSheet)
	if err != nil {
		return err
	}
	for r, row := range res.Manifest.Rows() {
		cells := make([]interface{}, len(row))
		for c, v := range row {
			cells[c] = xlsxCell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if res.Smoothed != nil {
		if _, err := f.NewSheet(spectraSheet); err != nil {
			return err
		}
		sw, err := f.NewStreamWriter(spectraSheet)
		if err != nil {
			return err
		}

		header := []interface{}{"Wavelength"}
		for _, h := range res.Smoothed.Headers {
			header = append(header, h)
		}
		if err := sw.SetRow("A1", header); err != nil {
			return err
		}

		for i, wl := range res.Smoothed.Wavelength {
			cells := []interface{}{wl}
			for _, col := range res.Smoothed.Columns {
				cells = append(cells, col[i])
			}
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			if err := sw.SetRow(cell, cells); err != nil {
				return err
			}
		}
		if err := sw.Flush(); err != nil {
			return err
		}
	}

	return writeFileAtomic(path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}
