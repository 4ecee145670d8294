package render

import (
	"fmt"
	"math"

	"calheat/internal/calendar"
	"calheat/internal/heatmap"
)

// Anchor is the horizontal alignment of a text element; text is always
// vertically centered on its Y coordinate.
type Anchor string

const (
	AnchorMiddle Anchor = "middle"
	AnchorStart  Anchor = "start"
)

// Rect is an axis-aligned rectangle
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Center returns the center point of the rectangle
func (r Rect) Center() (int, int) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Text is a positioned label. Rotate is clockwise, in degrees.
type Text struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Value  string  `json:"value"`
	Size   float64 `json:"size"`
	Anchor Anchor  `json:"anchor"`
	Rotate int     `json:"rotate,omitempty"`
}

// CellShape is one colored day cell
type CellShape struct {
	Rect    Rect    `json:"rect"`
	Day     int     `json:"day"`
	Density float64 `json:"density"`
	Fill    string  `json:"fill"`
	Label   Text    `json:"label"`
}

// Tick is one legend graduation
type Tick struct {
	Value float64 `json:"value"`
	Y     int     `json:"y"`
	X1    int     `json:"x1"`
	X2    int     `json:"x2"`
	Label Text    `json:"label"`
}

// Legend is the vertical color bar. Density 0 is at the bottom of Bar.
type Legend struct {
	Bar   Rect   `json:"bar"`
	Stops []Stop `json:"stops"`
	Ticks []Tick `json:"ticks"`
	Title Text   `json:"title"`
}

// Geometry is every shape of a rendered heatmap. It depends only on the
// densities, the grid, the style and the colormap, so two renders of the
// same inputs produce equal geometry.
type Geometry struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Background string      `json:"background"`
	TextColor  string      `json:"text_color"`
	Border     string      `json:"border"`
	BorderW    float64     `json:"border_width"`
	Grid       Rect        `json:"grid"`
	Headers    []Text      `json:"headers"`
	Cells      []CellShape `json:"cells"`
	Legend     Legend      `json:"legend"`
	Dropped    []int       `json:"dropped,omitempty"`
}

// ComputeGeometry lays out the headers, day cells and legend of a heatmap
func ComputeGeometry(densities heatmap.Densities, grid *calendar.Grid, style Style, cmap *Colormap) (*Geometry, error) {
	if grid == nil {
		return nil, fmt.Errorf("grid is required")
	}
	if cmap == nil {
		cmap = YlOrRd
	}
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("invalid style: %w", err)
	}

	cs := style.CellSize
	gridRect := Rect{
		X: style.Margin,
		Y: style.Margin + style.HeaderHeight,
		W: grid.Cols * cs,
		H: grid.Rows * cs,
	}

	geo := &Geometry{
		Background: style.Background,
		TextColor:  style.TextColor,
		Border:     style.BorderColor,
		BorderW:    style.BorderWidth,
		Grid:       gridRect,
		Headers:    make([]Text, 0, calendar.Weekdays),
		Cells:      make([]CellShape, 0, calendar.MaxDays),
		Dropped:    append([]int(nil), grid.Dropped...),
	}

	for col, name := range calendar.WeekdayHeaders {
		geo.Headers = append(geo.Headers, Text{
			X:      gridRect.X + col*cs + cs/2,
			Y:      style.Margin + style.HeaderHeight/2,
			Value:  name,
			Size:   style.FontSize,
			Anchor: AnchorMiddle,
		})
	}

	for _, cell := range grid.Assigned() {
		if cell.Day > len(densities) {
			return nil, fmt.Errorf("day %d has no density", cell.Day)
		}
		density := clamp01(densities[cell.Day-1])
		rect := Rect{
			X: gridRect.X + cell.Col*cs,
			Y: gridRect.Y + cell.Row*cs,
			W: cs,
			H: cs,
		}
		cx, cy := rect.Center()
		geo.Cells = append(geo.Cells, CellShape{
			Rect:    rect,
			Day:     cell.Day,
			Density: density,
			Fill:    cmap.Hex(density),
			Label: Text{
				X:      cx,
				Y:      cy,
				Value:  fmt.Sprintf("%d", cell.Day),
				Size:   style.FontSize,
				Anchor: AnchorMiddle,
			},
		})
	}

	geo.Legend = computeLegend(gridRect, style, cmap)

	geo.Width = geo.Legend.Title.X + int(math.Ceil(style.LabelFontSize)) + style.Margin
	geo.Height = gridRect.Y + gridRect.H + style.Margin

	return geo, nil
}

func computeLegend(gridRect Rect, style Style, cmap *Colormap) Legend {
	bar := Rect{
		X: gridRect.X + gridRect.W + style.LegendGap,
		Y: gridRect.Y,
		W: style.LegendWidth,
		H: gridRect.H,
	}

	tickX2 := bar.X + bar.W + style.TickLength
	labelX := tickX2 + 4

	ticks := make([]Tick, 0, style.LegendTicks+1)
	for i := 0; i <= style.LegendTicks; i++ {
		value := float64(i) / float64(style.LegendTicks)
		y := bar.Y + bar.H - int(math.Round(value*float64(bar.H)))
		ticks = append(ticks, Tick{
			Value: value,
			Y:     y,
			X1:    bar.X + bar.W,
			X2:    tickX2,
			Label: Text{
				X:      labelX,
				Y:      y,
				Value:  fmt.Sprintf("%.1f", value),
				Size:   style.TickFontSize,
				Anchor: AnchorStart,
			},
		})
	}

	// "0.0" is three glyphs of roughly 0.6em each
	tickLabelWidth := int(math.Ceil(3 * 0.6 * style.TickFontSize))
	titleX := labelX + tickLabelWidth + int(math.Ceil(style.LabelFontSize))

	return Legend{
		Bar:   bar,
		Stops: cmap.Stops(),
		Ticks: ticks,
		Title: Text{
			X:      titleX,
			Y:      bar.Y + bar.H/2,
			Value:  style.LegendLabel,
			Size:   style.LabelFontSize,
			Anchor: AnchorMiddle,
			Rotate: 90,
		},
	}
}

// DensityAtRow returns the legend density for pixel row py of a bar of
// height h, sampling at the pixel center. Row 0 is the top of the bar.
func DensityAtRow(py, h int) float64 {
	return 1 - (float64(py)+0.5)/float64(h)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
