package stencil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgtex"
)

// Canvas is a drawn overlay, ready to be written out.
type Canvas struct {
	Plot   *hplot.Plot
	Width  vg.Length
	Height vg.Length
}

// SaveAs writes the canvas to filename. The extension picks the format: .tex
// gives a pgf picture to \input into a document, .svg goes through the canvas
// renderer and everything else (png, pdf, eps, jpg, tiff) through gonum.
func (c *Canvas) SaveAs(filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tex":
		f, err := os.Create(filename)
		if err != nil {
			return fmt.Errorf("could not create %q: %w", filename, err)
		}
		defer f.Close()

		if err := c.WriteTex(f); err != nil {
			return fmt.Errorf("could not write %q: %w", filename, err)
		}
		return f.Close()
	case ".svg":
		cv := canvas.New(float64(c.Width/vg.Millimeter), float64(c.Height/vg.Millimeter))
		c.Plot.Plot.Draw(renderers.NewGonumPlot(cv))
		if err := cv.WriteFile(filename, renderers.SVG()); err != nil {
			return fmt.Errorf("could not write %q: %w", filename, err)
		}
		return nil
	default:
		if err := c.Plot.Plot.Save(c.Width, c.Height, filename); err != nil {
			return fmt.Errorf("could not save %q: %w", filename, err)
		}
		return nil
	}
}

// WriteTex writes the canvas as a pgf picture without a document around it.
func (c *Canvas) WriteTex(w io.Writer) error {
	tc := vgtex.New(c.Width, c.Height)
	c.Plot.Plot.Draw(draw.New(tc))
	_, err := tc.WriteTo(w)
	return err
}

// WriteTo writes the canvas to w as a PNG image.
func (c *Canvas) WriteTo(w io.Writer) (int64, error) {
	wt, err := c.Plot.Plot.WriterTo(c.Width, c.Height, "png")
	if err != nil {
		return 0, err
	}
	return wt.WriteTo(w)
}
