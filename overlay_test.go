package stencil

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

func newTestOverlay(t *testing.T, mod func(*OverlayOptions)) *Overlay {
	t.Helper()
	opts := DefaultOverlayOptions()
	if mod != nil {
		mod(&opts)
	}
	o, err := NewOverlay(opts)
	if err != nil {
		t.Fatalf("NewOverlay: %v", err)
	}
	return o
}

func TestPositionFlag(t *testing.T) {
	var p Position
	if err := p.UnmarshalFlag("0.1, 0.2,0.3,0.4"); err != nil {
		t.Fatalf("UnmarshalFlag: %v", err)
	}
	if p != (Position{0.1, 0.2, 0.3, 0.4}) {
		t.Fatalf("got %v", p)
	}

	s, err := p.MarshalFlag()
	if err != nil || s != "0.1,0.2,0.3,0.4" {
		t.Fatalf("MarshalFlag() = %q, %v", s, err)
	}

	for _, bad := range []string{"1,2,3", "1,2,3,4,5", "a,b,c,d", ""} {
		before := p
		if err := p.UnmarshalFlag(bad); !errors.Is(err, ErrBadSequence) {
			t.Errorf("UnmarshalFlag(%q) = %v, want ErrBadSequence", bad, err)
		}
		if p != before {
			t.Errorf("UnmarshalFlag(%q) changed the value to %v", bad, p)
		}
	}
}

func TestNewOverlayUnknownScheme(t *testing.T) {
	opts := DefaultOverlayOptions()
	opts.ColorScheme = "not registered"
	if _, err := NewOverlay(opts); !errors.Is(err, ErrUnknownScheme) {
		t.Fatalf("expected ErrUnknownScheme, got %v", err)
	}
}

func TestOverlayAddObj(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o := newTestOverlay(t, nil)
		o.AddObj("a", NewHist(newTestH1D(1, 1)), Entry{})
		if got := o.LegendLabels(); !cmp.Equal(got, []string{"a"}) {
			t.Fatalf("LegendLabels() = %v", got)
		}
		e, _ := o.legend.Get("a")
		if e.Option != "L" {
			t.Fatalf("legend option = %q, want L", e.Option)
		}
	})

	t.Run("second add wins and keeps order", func(t *testing.T) {
		o := newTestOverlay(t, nil)
		first := NewHist(newTestH1D(1, 1))
		second := NewHist(newTestH1D(1, 2))
		o.AddObj("a", first, Entry{DrawOpt: "HIST", LegName: "first"})
		o.AddObj("b", NewHist(newTestH1D(1, 3)), Entry{})
		o.AddObj("a", second, Entry{DrawOpt: "E", LegName: "second"})

		if diff := cmp.Diff([]string{"a", "b"}, o.Names()); diff != "" {
			t.Fatalf("order mismatch (-want +got):\n%s", diff)
		}
		if opt, _ := o.DrawOpt("a"); opt != "E" {
			t.Fatalf("draw option = %q, want E", opt)
		}
		if e, _ := o.Get("a"); e != Element(second) {
			t.Fatalf("object was not replaced")
		}
		if diff := cmp.Diff([]string{"second", "b"}, o.LegendLabels()); diff != "" {
			t.Fatalf("legend mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestOverlayAutoRange(t *testing.T) {
	o := newTestOverlay(t, func(opts *OverlayOptions) {
		opts.AutoScaleMax = false
	})
	narrow := hbook.NewH1D(4, 2, 6)
	narrow.Fill(3, 5)
	wide := hbook.NewH1D(10, -1, 9)
	wide.Fill(0, 2)
	o.AddObj("narrow", NewHist(narrow), Entry{})
	o.AddObj("wide", NewHist(wide), Entry{})

	c, err := o.Draw()
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	p := c.Plot.Plot
	if p.X.Min != -1 || p.X.Max != 9 {
		t.Errorf("x range = [%v, %v], want union [-1, 9]", p.X.Min, p.X.Max)
	}
	if p.Y.Max != 5 {
		t.Errorf("y max = %v, want 5", p.Y.Max)
	}
}

func TestOverlayManualRanges(t *testing.T) {
	t.Run("x range and maximum", func(t *testing.T) {
		o := newTestOverlay(t, nil)
		o.AddObj("h", NewHist(newTestH1D(1, 1)), Entry{})
		o.SetXRange(2, 4)
		o.SetMaxima(10)

		c, err := o.Draw()
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		p := c.Plot.Plot
		if p.X.Min != 2 || p.X.Max != 4 {
			t.Errorf("x range = [%v, %v], want [2, 4]", p.X.Min, p.X.Max)
		}
		if p.Y.Max != 10 {
			t.Errorf("y max = %v, want 10", p.Y.Max)
		}
	})

	t.Run("y range ignored with auto max", func(t *testing.T) {
		o := newTestOverlay(t, nil)
		o.AddObj("h", NewHist(newTestH1D(1, 1)), Entry{})
		o.SetYRange(-5, 50)
		c, err := o.Draw()
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		if c.Plot.Plot.Y.Max == 50 {
			t.Errorf("y range should be ignored while auto_scale_max is set")
		}
	})

	t.Run("y range honoured without auto max", func(t *testing.T) {
		o := newTestOverlay(t, func(opts *OverlayOptions) { opts.AutoScaleMax = false })
		o.AddObj("h", NewHist(newTestH1D(1, 1)), Entry{})
		o.SetYRange(-5, 50)
		c, err := o.Draw()
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		p := c.Plot.Plot
		if p.Y.Min != -5 || p.Y.Max != 50 {
			t.Errorf("y range = [%v, %v], want [-5, 50]", p.Y.Min, p.Y.Max)
		}
	})
}

func TestOverlayDrawStyling(t *testing.T) {
	o := newTestOverlay(t, func(opts *OverlayOptions) {
		opts.ColorScheme = "default"
		opts.AddFill = true
		opts.Normalise = true
		opts.LineStyle = 2
		opts.Title = "spectrum"
		opts.XTitle = "energy"
		opts.XTitleOffset = 2
		opts.XTitleSize = 0.05
	})
	uchain := NewHist(newTestH1D(4, 1, 2))
	other := NewHist(newTestH1D(1, 3))
	o.AddObj("uchain", uchain, Entry{})
	o.AddObj("other", other, Entry{})

	c, err := o.Draw()
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}

	if got := uchain.Integral(); math.Abs(got-1) > 1e-12 {
		t.Errorf("uchain integral = %v, want 1", got)
	}
	if rgba8(uchain.LineColor()) != rgba8(DefaultScheme["uchain"]) {
		t.Errorf("uchain color = %v", uchain.LineColor())
	}
	if other.LineColor() != BackupColors[0] {
		t.Errorf("other color = %v, want first backup", other.LineColor())
	}
	if uchain.FillColor() != uchain.LineColor() {
		t.Errorf("fill not applied")
	}
	if uchain.lineStyle != 2 {
		t.Errorf("line style = %v, want 2", uchain.lineStyle)
	}

	p := c.Plot.Plot
	if p.Title.Text != "spectrum" || p.X.Label.Text != "energy" || p.Y.Label.Text != "yaxis" {
		t.Errorf("titles = %q %q %q", p.Title.Text, p.X.Label.Text, p.Y.Label.Text)
	}
	if p.X.Label.Padding != 2*basePadding {
		t.Errorf("x title padding = %v, want %v", p.X.Label.Padding, 2*basePadding)
	}
	if want := vg.Length(0.05 * 500); p.X.Label.TextStyle.Font.Size != want {
		t.Errorf("x title size = %v, want %v", p.X.Label.TextStyle.Font.Size, want)
	}
	if c.Width != 700 || c.Height != 500 {
		t.Errorf("canvas = %vx%v, want 700x500", c.Width, c.Height)
	}
}

func TestOverlayLogScale(t *testing.T) {
	o := newTestOverlay(t, func(opts *OverlayOptions) {
		opts.LogY = true
		opts.AutoScaleMax = false
	})
	o.AddObj("h", NewHist(newTestH1D(1, 1)), Entry{})

	c, err := o.Draw()
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	p := c.Plot.Plot
	if _, ok := p.Y.Scale.(plot.LogScale); !ok {
		t.Fatalf("y scale is %T, want plot.LogScale", p.Y.Scale)
	}
	if p.Y.Min <= 0 {
		t.Fatalf("log axis minimum %v must be positive", p.Y.Min)
	}
}

func TestOverlayDrawWritesPNG(t *testing.T) {
	for _, noLegend := range []bool{false, true} {
		o := newTestOverlay(t, func(opts *OverlayOptions) { opts.NoLegend = noLegend })
		o.AddObj("h", NewHist(newTestH1D(1, 1)), Entry{LegOpt: "F"})
		o.AddObj("g", NewGraph(hbook.NewS2D(hbook.Point2D{X: 1, Y: 1}, hbook.Point2D{X: 2, Y: 3})), Entry{DrawOpt: "PL", LegOpt: "P"})
		c, err := o.Draw()
		if err != nil {
			t.Fatalf("Draw: %v", err)
		}
		var buf bytes.Buffer
		if _, err := c.WriteTo(&buf); err != nil {
			t.Fatalf("WriteTo: %v", err)
		}
		if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
			t.Fatalf("no_legend=%v: output is not a PNG", noLegend)
		}
	}
}

func TestPlaceLegend(t *testing.T) {
	var l plot.Legend
	placeLegend(&l, Position{0.7, 0.7, 0.9, 0.9}, 100, 100)
	if !l.Top || l.Left {
		t.Fatalf("top right box: Top=%v Left=%v", l.Top, l.Left)
	}
	if math.Abs(float64(l.XOffs)+10) > 1e-9 || math.Abs(float64(l.YOffs)+10) > 1e-9 {
		t.Fatalf("offsets = %v, %v, want -10, -10", l.XOffs, l.YOffs)
	}

	placeLegend(&l, Position{0.1, 0.1, 0.3, 0.3}, 100, 100)
	if l.Top || !l.Left {
		t.Fatalf("bottom left box: Top=%v Left=%v", l.Top, l.Left)
	}
	if math.Abs(float64(l.XOffs)-10) > 1e-9 || math.Abs(float64(l.YOffs)-10) > 1e-9 {
		t.Fatalf("offsets = %v, %v, want 10, 10", l.XOffs, l.YOffs)
	}
}
