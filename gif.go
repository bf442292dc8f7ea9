package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	ipalette "image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gonum.org/v1/plot/vg"
)

const (
	gifFrameSize  = 6 * vg.Inch
	gifFrameDelay = 25 // 1/100 s
)

type frameResult struct {
	Index   int
	Palette *image.Paletted
	Err     error
}

// renderFrames writes one PNG per smoothed spectrum, in fluence order, all on
// the same normalized axes so the narrowing is visible frame to frame.
func renderFrames(
	res *ASEResult,
	dir string,
) (
	[]string, error,
) {

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	order := make([]int, len(res.Manifest.Points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return res.Manifest.Points[order[a]].Fluence < res.Manifest.Points[order[b]].Fluence
	})

	lines, _, err := spectrumLines(res, true)
	if err != nil {
		return nil, err
	}
	xr := axisRange(res.Smoothed.Wavelength, false)
	yr := []float64{0, 1.05}

	var names []string
	for frame, i := range order {
		pt := res.Manifest.Points[i]

		p, t, r, err := prepPlot(
			fmt.Sprintf("%.3g μJ/cm²", pt.Fluence), "Wavelength (nm)", "Normalized Intensity",
			xr, yr, false, false, false,
		)
		if err != nil {
			return nil, err
		}
		p.Add(lines[i], t, r)

		if pt.FWHM != nil {
			p.Legend.Add(fmt.Sprintf("FWHM %.2f nm", *pt.FWHM), lines[i])
		}

		name := filepath.Join(dir, fmt.Sprintf("frame%03d.png", frame))
		if err := p.Save(gifFrameSize, gifFrameSize, name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, nil
}

// writeGIF assembles PNG frames into an animated GIF. Frames are quantized
// concurrently against the palette of the last (narrowest) frame.
func writeGIF(
	pngFilenames []string,
	gifPath string,
) (
	error,
) {

	if len(pngFilenames) == 0 {
		return errors.New("gif: no frames")
	}

	lastPNG, err := openPNG(pngFilenames[len(pngFilenames)-1])
	if err != nil {
		return err
	}
	pal := generatePalette(lastPNG)

	resultCh := make(chan frameResult, len(pngFilenames))
	var wg sync.WaitGroup

	for index, fname := range pngFilenames {
		wg.Add(1)
		go convertToPaletted(index, fname, pal, resultCh, &wg)
	}

	wg.Wait()
	close(resultCh)

	var frameResults []frameResult
	for result := range resultCh {
		if result.Err != nil {
			return result.Err
		}
		frameResults = append(frameResults, result)
	}

	sort.Slice(frameResults, func(i, j int) bool {
		return frameResults[i].Index < frameResults[j].Index
	})

	anim := &gif.GIF{}
	for _, result := range frameResults {
		anim.Image = append(anim.Image, result.Palette)
		anim.Delay = append(anim.Delay, gifFrameDelay)
	}

	return writeFileAtomic(gifPath, func(w io.Writer) error {
		return gif.EncodeAll(w, anim)
	})
}

func convertToPaletted(
	index int,
	fname string,
	pal []color.Color,
	resultCh chan<- frameResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	img, err := openPNG(fname)
	if err != nil {
		resultCh <- frameResult{Index: index, Err: err}
		return
	}

	palettedImage := image.NewPaletted(img.Bounds(), pal)
	draw.Draw(palettedImage, img.Bounds(), img, image.Point{}, draw.Over)
	resultCh <- frameResult{Index: index, Palette: palettedImage}
}

func generatePalette(img image.Image) []color.Color {
	paletted := image.NewPaletted(img.Bounds(), ipalette.Plan9)
	draw.Draw(paletted, img.Bounds(), img, image.Point{}, draw.Over)
	return paletted.Palette
}

func openPNG(fname string) (image.Image, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(fname), err)
	}
	return img, nil
}

// spectralEvolution renders the frames into <dir>/gifFrames and writes
// <dir>/Spectral Evolution.gif.
func spectralEvolution(
	res *ASEResult,
	dir string,
) (
	error,
) {

	if len(res.Manifest.Points) == 0 {
		return nil
	}

	frames, err := renderFrames(res, filepath.Join(dir, "gifFrames"))
	if err != nil {
		return err
	}
	return writeGIF(frames, filepath.Join(dir, "Spectral Evolution.gif"))
}
