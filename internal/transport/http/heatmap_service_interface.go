package http

import (
	"context"
	"io"

	"calheat/internal/services"
)

// HeatmapServiceInterface defines the service operations used by HeatmapHandler
type HeatmapServiceInterface interface {
	Upload(ctx context.Context, name string, r io.Reader) (*services.UploadSummary, error)
	Current() (*services.UploadSummary, error)
	Process(ctx context.Context, req services.ProcessRequest) (*services.ProcessResult, error)
	Download(ctx context.Context) (*services.Artifact, error)
}

// Ensure the concrete service satisfies the interface
var _ HeatmapServiceInterface = (*services.HeatmapService)(nil)
