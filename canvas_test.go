package stencil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func drawTestCanvas(t *testing.T) *Canvas {
	t.Helper()
	o := newTestOverlay(t, nil)
	o.AddObj("h", NewHist(newTestH1D(1, 1, 2, 2)), Entry{})
	c, err := o.Draw()
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	return c
}

func TestCanvasSaveAs(t *testing.T) {
	dir := t.TempDir()

	// The tex output opens with a comment line, so only png and pdf are
	// checked by prefix.
	tests := []struct {
		file     string
		prefix   []byte
		contains string
	}{
		{"plot.png", []byte("\x89PNG"), ""},
		{"plot.pdf", []byte("%PDF"), ""},
		{"plot.tex", nil, `\begin{pgfpicture}`},
		{"plot.svg", nil, "<svg"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			fn := filepath.Join(dir, tt.file)
			if err := drawTestCanvas(t).SaveAs(fn); err != nil {
				t.Fatalf("SaveAs(%s): %v", tt.file, err)
			}
			data, err := os.ReadFile(fn)
			if err != nil {
				t.Fatalf("could not read output: %v", err)
			}
			if len(data) == 0 {
				t.Fatalf("%s is empty", tt.file)
			}
			if tt.prefix != nil && !bytes.HasPrefix(data, tt.prefix) {
				t.Fatalf("%s starts with %q", tt.file, data[:Min(len(data), 16)])
			}
			if tt.contains != "" && !strings.Contains(string(data), tt.contains) {
				t.Fatalf("%s does not contain %q", tt.file, tt.contains)
			}
		})
	}
}

func TestCanvasWriteTex(t *testing.T) {
	var buf bytes.Buffer
	if err := drawTestCanvas(t).WriteTex(&buf); err != nil {
		t.Fatalf("WriteTex: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, `\documentclass`) {
		t.Fatalf("WriteTex must write a fragment, not a document")
	}
	if !strings.Contains(out, `\end{pgfpicture}`) {
		t.Fatalf("WriteTex output is not a pgf picture")
	}
}
