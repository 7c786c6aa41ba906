package stencil

import (
	"github.com/sirupsen/logrus"
)

// Styling helpers over a named collection. Each one only touches the elements
// that have the capability it needs and leaves the rest alone.

// ApplyColorScheme sets the line color of every element from scheme, looked
// up by the element's name. Elements with a line but no entry in the scheme
// get the next backup color. Elements without a line do not use up a backup
// color.
func ApplyColorScheme(objs *Named[Element], scheme Scheme) {
	backupCount := 0
	objs.Each(func(name string, obj Element) {
		lc, ok := obj.(LineColorer)
		if !ok {
			return
		}
		if c, ok := scheme[name]; ok {
			lc.SetLineColor(c)
			return
		}
		lc.SetLineColor(BackupColors[backupCount%len(BackupColors)])
		backupCount++
	})
}

// ApplyFill copies the line color of every element into its fill color.
func ApplyFill(objs *Named[Element]) {
	objs.Each(func(name string, obj Element) {
		lc, ok := obj.(LineColorer)
		if !ok {
			return
		}
		if fc, ok := obj.(FillColorer); ok {
			fc.SetFillColor(lc.LineColor())
		}
	})
}

// Normalise scales every element with an integral to unit area. Elements with
// a zero integral are left as they are.
func Normalise(objs *Named[Element]) {
	objs.Each(func(name string, obj Element) {
		n, ok := obj.(Normaliser)
		if !ok {
			return
		}
		integral := n.Integral()
		if integral == 0 {
			logrus.WithField("tag", "paint").WithField("name", name).Warn("zero integral, not normalising")
			return
		}
		n.Scale(1. / integral)
	})
}

// ApplyLineStyle overrides the line style of every element that has one.
func ApplyLineStyle(objs *Named[Element], style LineStyle) {
	objs.Each(func(name string, obj Element) {
		if ls, ok := obj.(LineStyler); ok {
			ls.SetLineStyle(style)
		}
	})
}
