package stencil

import (
	"image/color"
	"math"
	"reflect"
	"testing"

	"go-hep.org/x/hep/hbook"
)

func TestApplyColorScheme(t *testing.T) {
	objs := NewNamed[Element]()
	objs.Set("uchain", NewHist(newTestH1D(1, 1)))
	objs.Set("unknown1", NewHist(newTestH1D(1, 2)))
	objs.Set("heatmap", NewHist2D(hbook.NewH2D(2, 0, 2, 2, 0, 2)))
	objs.Set("unknown2", NewGraph(hbook.NewS2D(hbook.Point2D{X: 1, Y: 1})))

	ApplyColorScheme(objs, DefaultScheme)

	lineColor := func(name string) color.Color {
		e, _ := objs.Get(name)
		return e.(LineColorer).LineColor()
	}

	if got, want := rgba8(lineColor("uchain")), rgba8(DefaultScheme["uchain"]); got != want {
		t.Errorf("uchain = %v, want %v", got, want)
	}
	// The 2-D histogram has no line and must not use up a backup color.
	if got, want := lineColor("unknown1"), BackupColors[0]; got != want {
		t.Errorf("unknown1 = %v, want first backup %v", got, want)
	}
	if got, want := lineColor("unknown2"), BackupColors[1]; got != want {
		t.Errorf("unknown2 = %v, want second backup %v", got, want)
	}
}

func TestApplyColorSchemeWrapsBackups(t *testing.T) {
	objs := NewNamed[Element]()
	n := len(BackupColors) + 1
	for i := 0; i < n; i++ {
		objs.Set(string(rune('a'+i)), NewHist(newTestH1D(1, 1)))
	}
	ApplyColorScheme(objs, Scheme{})

	last, _ := objs.Get(string(rune('a' + n - 1)))
	if got := last.(LineColorer).LineColor(); got != BackupColors[0] {
		t.Fatalf("expected backups to wrap around, got %v", got)
	}
}

func TestApplyFill(t *testing.T) {
	objs := NewNamed[Element]()
	h := NewHist(newTestH1D(1, 1))
	h.SetLineColor(color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	objs.Set("h", h)
	objs.Set("h2", NewHist2D(hbook.NewH2D(2, 0, 2, 2, 0, 2)))

	ApplyFill(objs)

	if h.FillColor() != h.LineColor() {
		t.Fatalf("fill %v != line %v", h.FillColor(), h.LineColor())
	}
}

func TestNormalise(t *testing.T) {
	objs := NewNamed[Element]()
	a := NewHist(newTestH1D(2, 1, 2, 3))
	b := NewHist(newTestH1D(0.5, 4))
	empty := NewHist(hbook.NewH1D(10, 0, 10))
	objs.Set("a", a)
	objs.Set("b", b)
	objs.Set("empty", empty)
	objs.Set("graph", NewGraph(hbook.NewS2D(hbook.Point2D{X: 1, Y: 5})))

	Normalise(objs)

	for name, h := range map[string]*Hist{"a": a, "b": b} {
		if got := h.Integral(); math.Abs(got-1) > 1e-12 {
			t.Errorf("%s integral = %v, want 1", name, got)
		}
	}
	if got := empty.Integral(); got != 0 {
		t.Errorf("empty integral = %v, want 0", got)
	}
}

func TestNormaliseIgnoresOutflows(t *testing.T) {
	// One entry in range and one above the last bin, both of weight 4.
	h := NewHist(newTestH1D(4, 1, 11))
	if got := h.Integral(); got != 4 {
		t.Fatalf("integral before = %v, want 4", got)
	}

	objs := NewNamed[Element]()
	objs.Set("h", h)
	Normalise(objs)

	visible := 0.
	for _, bin := range h.H.Binning.Bins {
		visible += bin.SumW()
	}
	if math.Abs(visible-1) > 1e-12 {
		t.Fatalf("visible area after normalising = %v, want 1", visible)
	}
}

func TestApplyLineStyle(t *testing.T) {
	objs := NewNamed[Element]()
	h := NewHist(newTestH1D(1, 1))
	g := NewGraph(hbook.NewS2D(hbook.Point2D{X: 1, Y: 1}))
	objs.Set("h", h)
	objs.Set("g", g)

	ApplyLineStyle(objs, 2)

	if h.lineStyle != 2 || g.lineStyle != 2 {
		t.Fatalf("line styles = %v, %v, want 2", h.lineStyle, g.lineStyle)
	}
	if !reflect.DeepEqual(h.lineStyle.Dashes(), LineStyle(2).Dashes()) {
		t.Fatalf("unexpected dashes %v", h.lineStyle.Dashes())
	}
}
