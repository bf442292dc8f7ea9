package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// runLog echoes every message to stdout and keeps a copy for log.txt.
type runLog struct {
	path  string
	lines []string
	warns int
}

func newRunLog(
	resultsDir, note string,
	start time.Time,
) (
	*runLog,
) {
	return &runLog{path: logpath(resultsDir, note, start)}
}

// logpath mirrors the plots/<date>/<time> note layout of the plotting scripts.
// Colons are avoided so the folder can live on the lab's Windows share.
func logpath(
	resultsDir, note string,
	start time.Time,
) (
	string,
) {

	name := start.Format("15-04-05")
	if note != "" {
		name += " " + note
	}
	return filepath.Join(resultsDir, "plots", start.Format("2006-Jan-02"), name)
}

func (l *runLog) Printf(format string, a ...any) {
	str := fmt.Sprintf(format, a...)
	fmt.Print(str)
	l.lines = append(l.lines, str)
}

func (l *runLog) Warnf(format string, a ...any) {
	l.warns++
	l.Printf("WARNING: "+format+"\n", a...)
}

func (l *runLog) header(
	cfg PipelineConfig,
	step, note string,
) {

	if cfg.Sample != "" {
		l.Printf("Sample: %s\n", cfg.Sample)
	}
	if note != "" {
		l.Printf("Runtime note: %s\n", note)
	}
	if cfg.Slide {
		l.Printf("Figures formatted for slide presentation\n")
	}

	l.Printf("\n*ASE analysis: step %s*\n", step)
	l.Printf("\n*Base directory: %s*\n", cfg.BaseDir)
	l.Printf("*Angle discovery: %s*\n\n", cfg.AngleSource)
}

// write flushes the log into <path>/log.txt, creating the dated folders.
func (l *runLog) write() error {

	if err := os.MkdirAll(l.path, 0755); err != nil {
		return err
	}

	txt, err := os.Create(filepath.Join(l.path, "log.txt"))
	if err != nil {
		return err
	}
	defer txt.Close()

	w := bufio.NewWriter(txt)
	for _, line := range l.lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	return w.Flush()
}
