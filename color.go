package stencil

import (
	"errors"
	"fmt"
	"image/color"
	"sort"
	"strings"
	"sync"

	"github.com/gogpu/gg"
)

// Color schemes are just maps from display names to colors. Fetch one by name
// with ColorScheme.

var ErrUnknownScheme = errors.New("unknown color scheme")

type Scheme map[string]color.Color

// DefaultScheme is registered as "default".
var DefaultScheme = Scheme{
	"uchain":     gg.Hex("#4b6ebc"),
	"thchain":    gg.Hex("#669966"),
	"cosmogenic": gg.Hex("#00cccc"),
	"b8":         gg.Hex("#996633"),
	"external":   gg.Hex("#ff9900"),
	"twonu":      gg.Hex("#bfbfbf"),
}

// BackupColors are handed out in turn to objects that have no color in the
// active scheme.
var BackupColors = []color.Color{
	color.NRGBA{R: 0xff, A: 0xff},          // red
	color.NRGBA{B: 0xff, A: 0xff},          // blue
	color.NRGBA{R: 0xcc, B: 0xff, A: 0xff}, // violet
	color.NRGBA{R: 0xff, G: 0xcc, A: 0xff}, // orange
	color.NRGBA{B: 0xff, A: 0xff},          // blue
	color.NRGBA{A: 0xff},                   // black
	color.NRGBA{R: 0xff, B: 0xff, A: 0xff}, // magenta
}

var (
	schemesMu sync.RWMutex
	schemes   = map[string]Scheme{
		"default": DefaultScheme,
	}
)

// RegisterScheme makes scheme available to ColorScheme under name, replacing
// any scheme already registered with that name.
func RegisterScheme(name string, scheme Scheme) {
	schemesMu.Lock()
	defer schemesMu.Unlock()
	schemes[name] = scheme
}

// ColorScheme finds a registered color scheme by name. The error for an
// unknown name lists the registered ones.
func ColorScheme(name string) (Scheme, error) {
	schemesMu.RLock()
	s, ok := schemes[name]
	schemesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownScheme, name, strings.Join(SchemeNames(), ", "))
	}
	return s, nil
}

// SchemeNames lists the registered schemes, sorted.
func SchemeNames() []string {
	schemesMu.RLock()
	defer schemesMu.RUnlock()
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseScheme builds a scheme from hex color strings such as "#4b6ebc".
func ParseScheme(hex map[string]string) (Scheme, error) {
	s := make(Scheme, len(hex))
	for name, h := range hex {
		c, err := gg.ParseHex(h)
		if err != nil {
			return nil, fmt.Errorf("color %q: %w", name, err)
		}
		s[name] = c
	}
	return s, nil
}
