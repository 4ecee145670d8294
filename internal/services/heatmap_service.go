package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"calheat/internal/calendar"
	"calheat/internal/config"
	"calheat/internal/dataset"
	apperrors "calheat/internal/errors"
	"calheat/internal/files"
	"calheat/internal/heatmap"
	"calheat/internal/pipeline"
	"calheat/internal/render"
)

// maxSkipMessages bounds the skip messages returned by Process
const maxSkipMessages = 50

// UploadSummary describes the current upload
type UploadSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Columns    []string  `json:"columns"`
	Rows       int       `json:"rows"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ProcessRequest selects the timestamp column and rendering options. Empty
// options fall back to the configured defaults.
type ProcessRequest struct {
	Column   string `json:"column"`
	Offset   *int   `json:"offset,omitempty" validate:"omitempty,min=0,max=6"`
	Month    string `json:"month,omitempty" validate:"omitempty,month"`
	Overflow string `json:"overflow,omitempty" validate:"omitempty,oneof=drop expand"`
	Format   string `json:"format,omitempty" validate:"omitempty,oneof=png svg"`
}

// ProcessResult is the outcome of one cycle as shown to the user
type ProcessResult struct {
	RunID        string            `json:"run_id"`
	Column       string            `json:"column"`
	Rows         int               `json:"rows"`
	Counted      int               `json:"counted"`
	Skipped      int               `json:"skipped"`
	SkipMessages []string          `json:"skip_messages"`
	Counts       heatmap.DayCounts `json:"counts"`
	Densities    heatmap.Densities `json:"densities"`
	Offset       int               `json:"offset"`
	GridRows     int               `json:"grid_rows"`
	Dropped      []int             `json:"dropped"`
	OutputPath   string            `json:"output_path"`
	Format       string            `json:"format"`
	Bytes        int64             `json:"bytes"`
	Message      string            `json:"message"`
}

// Artifact is an open rendered image ready to be streamed. The caller
// closes File.
type Artifact struct {
	File        *os.File
	Name        string
	ContentType string
	ModTime     time.Time
}

// HeatmapService keeps the current upload and runs cycles against it
type HeatmapService struct {
	mu       sync.RWMutex
	upload   *dataset.Table
	summary  *UploadSummary
	pipeline *pipeline.Service
	files    *files.Manager
	defaults config.RenderConfig
	logger   *slog.Logger
}

// NewHeatmapService creates a service running cycles through pipe with the
// render defaults of cfg
func NewHeatmapService(pipe *pipeline.Service, fm *files.Manager, cfg config.RenderConfig, logger *slog.Logger) *HeatmapService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeatmapService{
		pipeline: pipe,
		files:    fm,
		defaults: cfg,
		logger:   logger.With(slog.String("service", "heatmap")),
	}
}

// Upload parses r as the named file and makes it the current upload. A
// failed upload keeps the previous one.
func (s *HeatmapService) Upload(ctx context.Context, name string, r io.Reader) (*UploadSummary, error) {
	name = filepath.Base(name)
	if !dataset.SupportedExtension(name) {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("Unsupported file type %q. Upload a .csv or .xlsx file.", filepath.Ext(name)),
			dataset.ErrUnsupportedFormat)
	}

	table, err := dataset.Read(r, name)
	if err != nil {
		s.logger.WarnContext(ctx, "Upload rejected",
			slog.String("file", name),
			slog.String("error", err.Error()))
		if errors.Is(err, dataset.ErrEmptyDataset) {
			return nil, apperrors.NewMissingInputError(pipeline.MsgMissingInput)
		}
		return nil, apperrors.NewParsingError(fmt.Sprintf("Could not read %s", name), err)
	}

	summary := &UploadSummary{
		ID:         uuid.New().String(),
		Name:       table.Name,
		Columns:    append([]string(nil), table.Columns...),
		Rows:       table.Len(),
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	s.upload = table
	s.summary = summary
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Upload stored",
		slog.String("upload_id", summary.ID),
		slog.String("file", summary.Name),
		slog.Int("rows", summary.Rows),
		slog.Int("columns", len(summary.Columns)))

	return summary, nil
}

// Current returns the current upload summary
func (s *HeatmapService) Current() (*UploadSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return nil, ErrNoUpload
	}
	return s.summary, nil
}

// Process runs one cycle over the current upload
func (s *HeatmapService) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	s.mu.RLock()
	table := s.upload
	s.mu.RUnlock()

	offset := s.defaults.Offset
	if req.Offset != nil {
		offset = *req.Offset
	}

	policy, err := calendar.ParseOverflowPolicy(firstNonEmpty(req.Overflow, s.defaults.Overflow))
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}

	format, err := render.ParseFormat(firstNonEmpty(req.Format, s.defaults.Format))
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}

	result, err := s.pipeline.Run(ctx, pipeline.Request{
		Table:       table,
		Column:      req.Column,
		Offset:      calendar.Offset(offset),
		Month:       req.Month,
		Overflow:    policy,
		Destination: render.DestinationFor(s.defaults.OutputPath, format),
		Format:      format,
	})
	if err != nil {
		return nil, err
	}

	agg := result.Aggregation
	messages := make([]string, 0, min(len(agg.Skipped), maxSkipMessages))
	for i, skip := range agg.Skipped {
		if i == maxSkipMessages {
			break
		}
		messages = append(messages, skip.Message())
	}

	return &ProcessResult{
		RunID:        result.RunID,
		Column:       result.Column,
		Rows:         result.Rows,
		Counted:      agg.Total,
		Skipped:      len(agg.Skipped),
		SkipMessages: messages,
		Counts:       agg.Counts,
		Densities:    agg.Densities,
		Offset:       int(result.Grid.Offset),
		GridRows:     result.Grid.Rows,
		Dropped:      append([]int{}, result.Grid.Dropped...),
		OutputPath:   result.Output.Path,
		Format:       string(result.Output.Format),
		Bytes:        result.Output.Bytes,
		Message:      fmt.Sprintf("Calendar heatmap saved as %s", result.Output.Path),
	}, nil
}

// Download opens the most recently rendered image
func (s *HeatmapService) Download(ctx context.Context) (*Artifact, error) {
	last := s.pipeline.Last()
	if last == nil || last.Output == nil {
		return nil, ErrNoRenderedPlot
	}

	f, err := s.files.Open(last.Output.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "Rendered image is gone",
				slog.String("path", last.Output.Path))
			return nil, ErrNoRenderedPlot
		}
		return nil, apperrors.NewStorageError("failed to open rendered image", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.NewStorageError("failed to stat rendered image", err)
	}

	return &Artifact{
		File:        f,
		Name:        filepath.Base(last.Output.Path),
		ContentType: last.Output.Format.ContentType(),
		ModTime:     info.ModTime(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
