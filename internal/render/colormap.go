package render

import (
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Colormap maps a density in [0,1] to a color by linear RGB interpolation
// between evenly spaced anchors.
type Colormap struct {
	Name    string
	anchors []colorful.Color
}

// Stop is one anchor of a colormap at its position in [0,1]
type Stop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

// YlOrRd is the ColorBrewer yellow-orange-red sequential scale
var YlOrRd = MustColormap("YlOrRd",
	"#ffffcc", "#ffeda0", "#fed976", "#feb24c", "#fd8d3c",
	"#fc4e2a", "#e31a1c", "#bd0026", "#800026",
)

// NewColormap builds a colormap from at least two hex anchors
func NewColormap(name string, hexes ...string) (*Colormap, error) {
	if len(hexes) < 2 {
		return nil, fmt.Errorf("colormap %s needs at least two anchors, got %d", name, len(hexes))
	}
	anchors := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("colormap %s anchor %d: %w", name, i, err)
		}
		anchors[i] = c
	}
	return &Colormap{Name: name, anchors: anchors}, nil
}

// MustColormap is NewColormap for package-level tables
func MustColormap(name string, hexes ...string) *Colormap {
	cm, err := NewColormap(name, hexes...)
	if err != nil {
		panic(err)
	}
	return cm
}

// At returns the color for v. Values outside [0,1] and NaN clamp to the ends.
func (c *Colormap) At(v float64) colorful.Color {
	last := len(c.anchors) - 1
	switch {
	case math.IsNaN(v) || v <= 0:
		return c.anchors[0]
	case v >= 1:
		return c.anchors[last]
	}
	pos := v * float64(last)
	i := int(pos)
	return c.anchors[i].BlendRgb(c.anchors[i+1], pos-float64(i)).Clamped()
}

// Hex returns At(v) as "#rrggbb"
func (c *Colormap) Hex(v float64) string {
	return c.At(v).Hex()
}

// Stops returns the anchors with their offsets, lowest first
func (c *Colormap) Stops() []Stop {
	last := len(c.anchors) - 1
	stops := make([]Stop, len(c.anchors))
	for i, a := range c.anchors {
		stops[i] = Stop{Offset: float64(i) / float64(last), Color: a.Hex()}
	}
	return stops
}
