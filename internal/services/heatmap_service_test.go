package services

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calheat/internal/config"
	apperrors "calheat/internal/errors"
	"calheat/internal/files"
	"calheat/internal/pipeline"
	"calheat/internal/render"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestHeatmapService(t *testing.T) (*HeatmapService, string) {
	t.Helper()
	dir := t.TempDir()
	fm := files.NewManager(dir, discardLogger())
	renderer, err := render.NewRenderer(render.DefaultStyle(), fm, discardLogger())
	require.NoError(t, err)

	pipe := pipeline.NewService(renderer, discardLogger(), pipeline.WithReporter(&pipeline.RecordingReporter{}))
	return NewHeatmapService(pipe, fm, config.Default().Render, discardLogger()), dir
}

const scenarioCSV = "id,Timestamp\n1,2024-01-05 10:00\n2,2024-01-05 11:00\n3,2024-01-31\n"

func TestHeatmapService_UploadAndProcess(t *testing.T) {
	svc, dir := newTestHeatmapService(t)
	ctx := context.Background()

	summary, err := svc.Upload(ctx, "events.csv", strings.NewReader(scenarioCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "Timestamp"}, summary.Columns)
	assert.Equal(t, 3, summary.Rows)
	assert.NotEmpty(t, summary.ID)

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, summary, current)

	result, err := svc.Process(ctx, ProcessRequest{Column: "Timestamp"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Counts[4])
	assert.Equal(t, 1, result.Counts[30])
	assert.InDelta(t, 1.0, result.Densities[4], 1e-9)
	assert.InDelta(t, 0.5, result.Densities[30], 1e-9)
	assert.Equal(t, 3, result.Counted)
	assert.Zero(t, result.Skipped)
	assert.Empty(t, result.Dropped)
	assert.Equal(t, filepath.Join(dir, config.DefaultOutputPath), result.OutputPath)
	assert.Equal(t, "Calendar heatmap saved as "+result.OutputPath, result.Message)
	assert.FileExists(t, result.OutputPath)
}

func TestHeatmapService_DownloadWithRelativeBase(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, t.TempDir())
	require.NoError(t, err)

	fm := files.NewManager(rel, discardLogger())
	renderer, err := render.NewRenderer(render.DefaultStyle(), fm, discardLogger())
	require.NoError(t, err)
	pipe := pipeline.NewService(renderer, discardLogger())
	svc := NewHeatmapService(pipe, fm, config.Default().Render, discardLogger())

	ctx := context.Background()
	_, err = svc.Upload(ctx, "events.csv", strings.NewReader(scenarioCSV))
	require.NoError(t, err)
	_, err = svc.Process(ctx, ProcessRequest{Column: "Timestamp"})
	require.NoError(t, err)

	artifact, err := svc.Download(ctx)
	require.NoError(t, err)
	defer artifact.File.Close()
	assert.Equal(t, config.DefaultOutputPath, artifact.Name)
	assert.Equal(t, "image/png", artifact.ContentType)
}

func TestHeatmapService_ProcessWithoutUpload(t *testing.T) {
	svc, dir := newTestHeatmapService(t)

	_, err := svc.Process(context.Background(), ProcessRequest{Column: "Timestamp"})
	require.ErrorIs(t, err, apperrors.ErrMissingInput)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHeatmapService_ProcessWithoutColumn(t *testing.T) {
	svc, _ := newTestHeatmapService(t)
	_, err := svc.Upload(context.Background(), "events.csv", strings.NewReader(scenarioCSV))
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), ProcessRequest{})
	require.ErrorIs(t, err, apperrors.ErrMissingColumn)
}

func TestHeatmapService_ProcessOptions(t *testing.T) {
	svc, dir := newTestHeatmapService(t)
	_, err := svc.Upload(context.Background(), "events.csv",
		strings.NewReader("Timestamp\n2024-01-30\n2024-01-31\nnot a date\n2024-01-45\n"))
	require.NoError(t, err)

	offset := 6
	result, err := svc.Process(context.Background(), ProcessRequest{
		Column:   "Timestamp",
		Offset:   &offset,
		Overflow: "expand",
		Format:   "svg",
	})
	require.NoError(t, err)

	assert.Equal(t, 6, result.Offset)
	assert.Equal(t, 6, result.GridRows)
	assert.Empty(t, result.Dropped)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, []string{
		"Invalid timestamp format: not a date. Skipping.",
		"Invalid day detected: 45. Skipping.",
	}, result.SkipMessages)
	assert.Equal(t, "svg", result.Format)
	assert.Equal(t, filepath.Join(dir, "calendar_heatmap.svg"), result.OutputPath)

	result, err = svc.Process(context.Background(), ProcessRequest{Column: "Timestamp", Offset: &offset})
	require.NoError(t, err)
	assert.Equal(t, []int{30, 31}, result.Dropped)
}

func TestHeatmapService_UploadErrors(t *testing.T) {
	svc, _ := newTestHeatmapService(t)

	_, err := svc.Upload(context.Background(), "notes.pdf", strings.NewReader("%PDF"))
	assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))

	_, err = svc.Upload(context.Background(), "empty.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, apperrors.ErrMissingInput)

	_, err = svc.Upload(context.Background(), "broken.xlsx", strings.NewReader("not a zip"))
	assert.Equal(t, apperrors.ErrTypeParsing, apperrors.TypeOf(err))

	_, err = svc.Current()
	assert.ErrorIs(t, err, ErrNoUpload)
}

func TestHeatmapService_FailedUploadKeepsPrevious(t *testing.T) {
	svc, _ := newTestHeatmapService(t)
	first, err := svc.Upload(context.Background(), "events.csv", strings.NewReader(scenarioCSV))
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), "broken.xlsx", strings.NewReader("not a zip"))
	require.Error(t, err)

	current, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)
}

func TestHeatmapService_Download(t *testing.T) {
	svc, _ := newTestHeatmapService(t)
	ctx := context.Background()

	_, err := svc.Download(ctx)
	require.ErrorIs(t, err, ErrNoRenderedPlot)

	_, err = svc.Upload(ctx, "events.csv", strings.NewReader(scenarioCSV))
	require.NoError(t, err)
	result, err := svc.Process(ctx, ProcessRequest{Column: "Timestamp"})
	require.NoError(t, err)

	artifact, err := svc.Download(ctx)
	require.NoError(t, err)
	defer artifact.File.Close()

	assert.Equal(t, config.DefaultOutputPath, artifact.Name)
	assert.Equal(t, "image/png", artifact.ContentType)

	data, err := io.ReadAll(artifact.File)
	require.NoError(t, err)
	assert.Len(t, data, int(result.Bytes))
	assert.Equal(t, []byte("\x89PNG"), data[:4])

	require.NoError(t, os.Remove(result.OutputPath))
	_, err = svc.Download(ctx)
	assert.ErrorIs(t, err, ErrNoRenderedPlot)
}

type fixedClients int

func (f fixedClients) ClientCount() int { return int(f) }

func TestHealthService(t *testing.T) {
	dir := t.TempDir()

	hs := NewHealthService("1.0.0", dir, fixedClients(2), discardLogger())
	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Equal(t, "1.0.0", live.Version)
	assert.Contains(t, live.Runtime, "goroutines")

	ready := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "2 clients connected", ready.Services["websocket"].Message)

	missing := NewHealthService("1.0.0", filepath.Join(dir, "missing"), nil, discardLogger())
	status := missing.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
	assert.Equal(t, "not_ready", status.Services["output"].Status)
}
