package stencil

// LegendInfo is one legend row as shown by the preview page.
type LegendInfo struct {
	Label  string
	Option string
}

// Metadata describes the overlay currently served by the preview server.
type Metadata struct {
	Title    string
	XLabel   string
	YLabel   string
	Files    []string
	Objects  []string
	Legend   []LegendInfo `json:",omitempty"`
	Width    float64
	Height   float64
	Revision uint32
	LogX     bool
	LogY     bool
}

// NewMetadata describes o as drawn from files.
func NewMetadata(o *Overlay, files []string, revision uint32) Metadata {
	opts := o.Options()
	m := Metadata{
		Title:    opts.Title,
		XLabel:   opts.XTitle,
		YLabel:   opts.YTitle,
		Files:    files,
		Objects:  o.Names(),
		Width:    opts.Width,
		Height:   opts.Height,
		Revision: revision,
		LogX:     opts.LogX,
		LogY:     opts.LogY,
	}
	o.legend.Each(func(_ string, e legendEntry) {
		m.Legend = append(m.Legend, LegendInfo{Label: e.Label, Option: e.Option})
	})
	return m
}
