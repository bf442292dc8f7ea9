package main

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"
)

// pulseReduction summarizes one burst of power meter readings.
type pulseReduction struct {
	Mean  float64
	Total int
	Kept  int
}

// reducePulses drops the first skip readings (the laser is still warming up),
// then removes readings outside median +/- cutoff*sigma in a single pass and
// averages what is left. Sigma is the population standard deviation of the
// readings after the warmup cut.
func reducePulses(
	readings []float64,
	skip int,
	cutoff float64,
) (
	pulseReduction, error,
) {

	r := pulseReduction{Total: len(readings)}

	if skip < 0 {
		skip = 0
	}
	if len(readings) <= skip {
		return r, fmt.Errorf("only %d pulses, %d skipped as warmup", len(readings), skip)
	}
	valid := stats.Float64Data(readings[skip:])

	median, err := stats.Median(valid)
	if err != nil {
		return r, err
	}
	sigma, err := stats.StandardDeviationPopulation(valid)
	if err != nil {
		return r, err
	}
	limit := cutoff * sigma

	var clean stats.Float64Data
	for _, v := range valid {
		if v >= median-limit && v <= median+limit {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return r, errors.New("no pulses left after outlier cut")
	}

	r.Mean, err = stats.Mean(clean)
	if err != nil {
		return r, err
	}
	r.Kept = len(clean)

	return r, nil
}
