package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

const (
	stepEnergy  = "energy"
	stepSmooth  = "smooth"
	stepAnalyze = "analyze"
	stepAll     = "all"
)

type options struct {
	config, dir, step, note string
	slide, noPlots          bool
	xlsx, gnuplot, gif      bool
	angleSource             string
	window, lockBefore      int
}

func flags() options {

	var o options

	flag.StringVar(&o.config, "config", "", "JSON run file (defaults apply to missing keys)")
	flag.StringVar(&o.dir, "dir", "", "sample folder holding Raw_Data/ and the calibration files")
	flag.StringVar(&o.step, "step", stepAll, "step to run: energy, smooth, analyze or all")
	flag.StringVar(&o.note, "note", "", "note to append folder name")
	flag.StringVar(&o.angleSource, "angles", "", "angle discovery: header or filename")
	flag.IntVar(&o.window, "window", 0, "Savitzky-Golay window (odd, >= 3)")
	flag.IntVar(&o.lockBefore, "lock", -1, "keep previously smoothed columns before this index")
	flag.BoolVar(&o.slide, "slide", false, "format figures for slide presentation")
	flag.BoolVar(&o.noPlots, "noplots", false, "skip figures")
	flag.BoolVar(&o.xlsx, "xlsx", false, "also write the results as an Excel workbook")
	flag.BoolVar(&o.gnuplot, "gnuplot", false, "quick-look plots through gnuplot")
	flag.BoolVar(&o.gif, "gif", false, "animate the spectra in fluence order")
	flag.Parse()

	switch o.step {
	case stepEnergy, stepSmooth, stepAnalyze, stepAll:
	default:
		fmt.Printf("flag.Parse(): unknown step %q\n", o.step)
		os.Exit(2)
	}

	return o
}

// apply lays the command line over the run file.
func (o options) apply(cfg PipelineConfig) PipelineConfig {

	if o.dir != "" {
		cfg.BaseDir = o.dir
	}
	if o.angleSource != "" {
		cfg.AngleSource = o.angleSource
	}
	if o.window != 0 {
		cfg.SmoothWindow = o.window
	}
	if o.lockBefore >= 0 {
		cfg.LockBefore = o.lockBefore
	}
	cfg.Slide = cfg.Slide || o.slide
	cfg.Xlsx = cfg.Xlsx || o.xlsx
	cfg.Gnuplot = cfg.Gnuplot || o.gnuplot
	cfg.GIF = cfg.GIF || o.gif
	if o.noPlots {
		cfg.Plots = false
	}

	return cfg
}

func main() {

	o := flags()
	start := time.Now()

	cfg, err := loadConfig(o.config)
	if err != nil {
		log.Fatal(err)
	}
	cfg = o.apply(cfg).resolve()
	if err := cfg.validate(); err != nil {
		log.Fatal(err)
	}

	l := newRunLog(cfg.ResultsDir, o.note, start)
	l.header(cfg, o.step, o.note)

	if err := run(cfg, o.step, l); err != nil {
		l.Printf("\nCRITICAL ERROR: %v\n", err)
		if werr := l.write(); werr != nil {
			fmt.Println(werr)
		}
		log.Fatal(err)
	}

	l.Printf("\nFinished in %s with %d warning(s)\n", time.Since(start).Round(time.Millisecond), l.warns)
	if err := l.write(); err != nil {
		log.Fatal(err)
	}
}

// run executes one step, or all three in order. Each step reads what the
// previous one left on disk.
func run(
	cfg PipelineConfig,
	step string,
	l *runLog,
) (
	error,
) {

	if step == stepEnergy || step == stepAll {
		out, err := newEnergyStage(cfg, l).Run()
		if err != nil {
			return err
		}
		if cfg.Plots {
			energyFigures(out, cfg, l)
		}
	}

	if step == stepSmooth || step == stepAll {
		if _, _, err := newSmoothStage(cfg, l).Run(); err != nil {
			return err
		}
	}

	if step == stepAnalyze || step == stepAll {
		res, err := newAnalyzeStage(cfg, l).Run()
		if err != nil {
			return err
		}
		analysisOutputs(res, cfg, l)
	}

	return nil
}

// Figures and side outputs never fail a run; problems are logged as warnings.
func energyFigures(out *energyOutput, cfg PipelineConfig, l *runLog) {

	if err := plotFluenceProfile(out.manifest, cfg, l.path); err != nil {
		l.Warnf("fluence profile: %v", err)
	}
	if err := plotCalibration(out.curve, out.calc, out.manifest, cfg, l.path); err != nil {
		l.Warnf("calibration figure: %v", err)
	}
	if err := plotPulses(out.bursts, cfg, l.path); err != nil {
		l.Warnf("pulse figures: %v", err)
	}
}

func analysisOutputs(res *ASEResult, cfg PipelineConfig, l *runLog) {

	if cfg.Xlsx {
		if err := writeResultsXlsx(cfg.resultsPath(".xlsx"), res); err != nil {
			l.Warnf("xlsx: %v", err)
		} else {
			l.Printf(" -> Saved Workbook: %s\n", cfg.resultsPath(".xlsx"))
		}
	}

	if cfg.Plots {
		if err := plotFWHM(res, cfg, l.path); err != nil {
			l.Warnf("FWHM figure: %v", err)
		}
		if err := plotIntensity(res, cfg, l.path); err != nil {
			l.Warnf("intensity figure: %v", err)
		}
		for _, normalized := range []bool{false, true} {
			if err := plotSpectra(res, cfg, l.path, normalized); err != nil {
				l.Warnf("spectra figure: %v", err)
			}
		}
	}

	if cfg.Gnuplot {
		if err := quickLook(res, l.path); err != nil {
			l.Warnf("gnuplot: %v", err)
		}
	}

	if cfg.GIF {
		if err := spectralEvolution(res, l.path); err != nil {
			l.Warnf("gif: %v", err)
		} else {
			l.Printf(" -> Saved Animation: %s\n", l.path)
		}
	}
}
