package render

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
)

const legendGradientID = "density-scale"

// EncodeSVG writes geo as an SVG document
func EncodeSVG(w io.Writer, geo *Geometry, cmap *Colormap) error {
	if cmap == nil {
		cmap = YlOrRd
	}

	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(geo.Width, geo.Height)
	canvas.Title("Calendar heatmap")

	stops := cmap.Stops()
	offcolors := make([]svg.Offcolor, len(stops))
	for i, s := range stops {
		offcolors[i] = svg.Offcolor{
			Offset:  uint8(math.Round(s.Offset * 100)),
			Color:   s.Color,
			Opacity: 1,
		}
	}
	canvas.Def()
	// bottom to top: density 0 at the bottom of the bar
	canvas.LinearGradient(legendGradientID, 0, 100, 0, 0, offcolors)
	canvas.DefEnd()

	canvas.Rect(0, 0, geo.Width, geo.Height, "fill:"+geo.Background)

	cellStyle := func(fill string) string {
		if geo.BorderW > 0 {
			return fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%g", fill, geo.Border, geo.BorderW)
		}
		return "fill:" + fill
	}
	for _, cell := range geo.Cells {
		canvas.Rect(cell.Rect.X, cell.Rect.Y, cell.Rect.W, cell.Rect.H, cellStyle(cell.Fill))
	}
	for _, cell := range geo.Cells {
		svgText(canvas, cell.Label, geo.TextColor)
	}
	for _, header := range geo.Headers {
		svgText(canvas, header, geo.TextColor)
	}

	bar := geo.Legend.Bar
	canvas.Rect(bar.X, bar.Y, bar.W, bar.H,
		fmt.Sprintf("fill:url(#%s);stroke:%s;stroke-width:1", legendGradientID, geo.TextColor))
	for _, tick := range geo.Legend.Ticks {
		canvas.Line(tick.X1, tick.Y, tick.X2, tick.Y, "stroke:"+geo.TextColor+";stroke-width:1")
		svgText(canvas, tick.Label, geo.TextColor)
	}
	svgText(canvas, geo.Legend.Title, geo.TextColor)

	canvas.End()

	if ew.err != nil {
		return fmt.Errorf("failed to write svg: %w", ew.err)
	}
	return nil
}

func svgText(canvas *svg.SVG, t Text, color string) {
	style := fmt.Sprintf("font-family:'Go',sans-serif;font-size:%gpx;fill:%s;text-anchor:%s;dominant-baseline:central",
		t.Size, color, t.Anchor)
	if t.Rotate != 0 {
		canvas.Text(t.X, t.Y, t.Value, style,
			fmt.Sprintf(`transform="rotate(%d %d %d)"`, t.Rotate, t.X, t.Y))
		return
	}
	canvas.Text(t.X, t.Y, t.Value, style)
}

// errWriter keeps the first write error; svgo does not report them
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
