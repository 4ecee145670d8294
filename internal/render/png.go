package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	regularOnce sync.Once
	regularFont *opentype.Font
	regularErr  error
)

func loadRegular() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regularFont, regularErr = opentype.Parse(goregular.TTF)
	})
	return regularFont, regularErr
}

// faceCache holds one face per point size for the duration of a draw
type faceCache struct {
	font  *opentype.Font
	faces map[float64]font.Face
}

func newFaceCache() (*faceCache, error) {
	f, err := loadRegular()
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &faceCache{font: f, faces: make(map[float64]font.Face)}, nil
}

func (c *faceCache) face(size float64) (font.Face, error) {
	if face, ok := c.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %gpt face: %w", size, err)
	}
	c.faces[size] = face
	return face, nil
}

func (c *faceCache) Close() {
	for _, face := range c.faces {
		face.Close()
	}
}

// EncodePNG rasterizes geo and writes it as PNG
func EncodePNG(w io.Writer, geo *Geometry, cmap *Colormap) error {
	if cmap == nil {
		cmap = YlOrRd
	}

	faces, err := newFaceCache()
	if err != nil {
		return err
	}
	defer faces.Close()

	dc := gg.NewContext(geo.Width, geo.Height)
	dc.SetHexColor(geo.Background)
	dc.Clear()

	for _, cell := range geo.Cells {
		dc.SetHexColor(cell.Fill)
		drawRect(dc, cell.Rect)
		dc.Fill()
		if geo.BorderW > 0 {
			dc.SetHexColor(geo.Border)
			dc.SetLineWidth(geo.BorderW)
			drawRect(dc, cell.Rect)
			dc.Stroke()
		}
	}

	dc.SetHexColor(geo.TextColor)
	for _, cell := range geo.Cells {
		if err := drawText(dc, faces, cell.Label); err != nil {
			return err
		}
	}
	for _, header := range geo.Headers {
		if err := drawText(dc, faces, header); err != nil {
			return err
		}
	}

	bar := geo.Legend.Bar
	for py := 0; py < bar.H; py++ {
		dc.SetColor(cmap.At(DensityAtRow(py, bar.H)))
		dc.DrawRectangle(float64(bar.X), float64(bar.Y+py), float64(bar.W), 1)
		dc.Fill()
	}

	dc.SetHexColor(geo.TextColor)
	dc.SetLineWidth(1)
	drawRect(dc, bar)
	dc.Stroke()
	for _, tick := range geo.Legend.Ticks {
		dc.DrawLine(float64(tick.X1), float64(tick.Y), float64(tick.X2), float64(tick.Y))
		dc.Stroke()
		if err := drawText(dc, faces, tick.Label); err != nil {
			return err
		}
	}
	if err := drawText(dc, faces, geo.Legend.Title); err != nil {
		return err
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

func drawRect(dc *gg.Context, r Rect) {
	dc.DrawRectangle(float64(r.X), float64(r.Y), float64(r.W), float64(r.H))
}

func drawText(dc *gg.Context, faces *faceCache, t Text) error {
	face, err := faces.face(t.Size)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)

	ax := 0.5
	if t.Anchor == AnchorStart {
		ax = 0
	}
	x, y := float64(t.X), float64(t.Y)

	if t.Rotate != 0 {
		dc.Push()
		dc.RotateAbout(gg.Radians(float64(t.Rotate)), x, y)
		dc.DrawStringAnchored(t.Value, x, y, ax, 0.5)
		dc.Pop()
		return nil
	}
	dc.DrawStringAnchored(t.Value, x, y, ax, 0.5)
	return nil
}
