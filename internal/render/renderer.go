// Package render draws a laid-out calendar heatmap as a PNG or SVG image.
//
// Rendering happens in two steps. ComputeGeometry turns densities and a
// calendar.Grid into a Geometry of rectangles and text anchors; an encoder
// then draws that geometry. The Renderer ties both to an atomic file write
// so a failed render never leaves a half-written image at the destination.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"calheat/internal/calendar"
	apperrors "calheat/internal/errors"
	"calheat/internal/files"
	"calheat/internal/heatmap"
)

// Format is an output image format
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat parses a format name; empty means "infer from the path"
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPNG, FormatSVG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

// FormatFromPath returns the format implied by the destination extension,
// defaulting to PNG
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return FormatSVG
	}
	return FormatPNG
}

// DestinationFor swaps the extension of path to match format
func DestinationFor(path string, format Format) string {
	if format == "" || FormatFromPath(path) == format {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + string(format)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Output describes a persisted render
type Output struct {
	Path     string        `json:"path"`
	Format   Format        `json:"format"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
	Geometry *Geometry     `json:"-"`
}

// Renderer draws heatmaps and persists them through a file manager
type Renderer struct {
	style  Style
	cmap   *Colormap
	files  *files.Manager
	logger *slog.Logger
}

// NewRenderer creates a renderer using the YlOrRd colormap
func NewRenderer(style Style, fm *files.Manager, logger *slog.Logger) (*Renderer, error) {
	if err := style.Validate(); err != nil {
		return nil, apperrors.NewConfigError("invalid render style", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if fm == nil {
		fm = files.NewManager("", logger)
	}
	return &Renderer{
		style:  style,
		cmap:   YlOrRd,
		files:  fm,
		logger: logger.With(slog.String("component", "renderer")),
	}, nil
}

// Style returns the renderer's style
func (r *Renderer) Style() Style {
	return r.style
}

// Geometry computes the shapes for densities on grid
func (r *Renderer) Geometry(densities heatmap.Densities, grid *calendar.Grid) (*Geometry, error) {
	return ComputeGeometry(densities, grid, r.style, r.cmap)
}

// Encode draws geo to w in the given format
func (r *Renderer) Encode(w io.Writer, geo *Geometry, format Format) error {
	switch format {
	case FormatSVG:
		return EncodeSVG(w, geo, r.cmap)
	case FormatPNG, "":
		return EncodePNG(w, geo, r.cmap)
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// Render draws densities on grid and writes the image to dest, replacing
// any existing file. An empty format is inferred from dest. Every failure
// is returned as a render error and leaves dest untouched.
func (r *Renderer) Render(ctx context.Context, densities heatmap.Densities, grid *calendar.Grid, dest string, format Format) (*Output, error) {
	start := time.Now()

	if dest == "" {
		return nil, apperrors.NewRenderError("destination path is empty", nil)
	}
	if format == "" {
		format = FormatFromPath(dest)
	}

	geo, err := r.Geometry(densities, grid)
	if err != nil {
		return nil, apperrors.NewRenderError("failed to lay out heatmap", err)
	}

	n, err := r.files.WriteAtomic(dest, func(w io.Writer) error {
		return r.Encode(w, geo, format)
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Render failed",
			slog.String("destination", dest),
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
		return nil, apperrors.NewRenderError(fmt.Sprintf("failed to write heatmap to %s", dest), err).
			WithContext("destination", dest)
	}

	out := &Output{
		Path:     r.files.ResolvePath(dest),
		Format:   format,
		Bytes:    n,
		Duration: time.Since(start),
		Geometry: geo,
	}

	r.logger.InfoContext(ctx, "Rendered heatmap",
		slog.String("path", out.Path),
		slog.String("format", string(format)),
		slog.Int64("bytes", n),
		slog.Int("width", geo.Width),
		slog.Int("height", geo.Height),
		slog.Duration("duration", out.Duration))

	return out, nil
}
