package render

import (
	"errors"
	"fmt"
)

// Style controls sizes and colors of a rendered heatmap. All lengths are
// in pixels.
type Style struct {
	CellSize     int     `json:"cell_size"`
	Margin       int     `json:"margin"`
	HeaderHeight int     `json:"header_height"`
	BorderWidth  float64 `json:"border_width"`

	LegendGap   int `json:"legend_gap"`
	LegendWidth int `json:"legend_width"`
	TickLength  int `json:"tick_length"`
	// LegendTicks is the number of intervals between 0 and 1
	LegendTicks int    `json:"legend_ticks"`
	LegendLabel string `json:"legend_label"`

	FontSize      float64 `json:"font_size"`
	TickFontSize  float64 `json:"tick_font_size"`
	LabelFontSize float64 `json:"label_font_size"`

	Background  string `json:"background"`
	TextColor   string `json:"text_color"`
	BorderColor string `json:"border_color"`
}

// DefaultStyle returns the standard heatmap style
func DefaultStyle() Style {
	return Style{
		CellSize:      80,
		Margin:        20,
		HeaderHeight:  32,
		BorderWidth:   1,
		LegendGap:     32,
		LegendWidth:   24,
		TickLength:    5,
		LegendTicks:   5,
		LegendLabel:   "Event Density (0 to 1)",
		FontSize:      14,
		TickFontSize:  12,
		LabelFontSize: 14,
		Background:    "#ffffff",
		TextColor:     "#000000",
		BorderColor:   "#ffffff",
	}
}

// WithCellSize returns a copy with the cell size and day font size replaced.
// Zero values keep the current setting.
func (s Style) WithCellSize(cellSize int, fontSize float64) Style {
	if cellSize > 0 {
		s.CellSize = cellSize
	}
	if fontSize > 0 {
		s.FontSize = fontSize
	}
	return s
}

// Validate checks that the style can produce a drawable layout
func (s Style) Validate() error {
	var errs []error
	if s.CellSize < 20 {
		errs = append(errs, fmt.Errorf("cell size must be at least 20, got %d", s.CellSize))
	}
	if s.Margin < 0 || s.HeaderHeight < 0 || s.LegendGap < 0 || s.TickLength < 0 {
		errs = append(errs, errors.New("margins, header height, legend gap and tick length must not be negative"))
	}
	if s.LegendWidth <= 0 {
		errs = append(errs, fmt.Errorf("legend width must be positive, got %d", s.LegendWidth))
	}
	if s.LegendTicks < 1 {
		errs = append(errs, fmt.Errorf("legend ticks must be at least 1, got %d", s.LegendTicks))
	}
	if s.FontSize <= 0 || s.TickFontSize <= 0 || s.LabelFontSize <= 0 {
		errs = append(errs, errors.New("font sizes must be positive"))
	}
	if s.BorderWidth < 0 {
		errs = append(errs, fmt.Errorf("border width must not be negative, got %g", s.BorderWidth))
	}
	return errors.Join(errs...)
}
