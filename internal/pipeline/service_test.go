package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calheat/internal/calendar"
	"calheat/internal/config"
	"calheat/internal/dataset"
	apperrors "calheat/internal/errors"
	"calheat/internal/files"
	"calheat/internal/infrastructure"
	"calheat/internal/render"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestService(t *testing.T, opts ...Option) (*Service, *RecordingReporter, string) {
	t.Helper()
	dir := t.TempDir()
	renderer, err := render.NewRenderer(render.DefaultStyle(), files.NewManager(dir, discardLogger()), discardLogger())
	require.NoError(t, err)

	rec := &RecordingReporter{}
	opts = append([]Option{WithReporter(rec)}, opts...)
	return NewService(renderer, discardLogger(), opts...), rec, dir
}

func csvTable(t *testing.T, content string) *dataset.Table {
	t.Helper()
	table, err := dataset.ReadCSV(strings.NewReader(content), "events.csv")
	require.NoError(t, err)
	return table
}

func scenarioTable(t *testing.T) *dataset.Table {
	return csvTable(t, "id,Timestamp\n1,2024-01-05 10:00\n2,2024-01-05 11:00\n3,2024-01-31\n")
}

func TestRun_Scenario(t *testing.T) {
	svc, rec, dir := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Table:  scenarioTable(t),
		Column: "Timestamp",
	})
	require.NoError(t, err)

	agg := result.Aggregation
	assert.Equal(t, 2, agg.Counts[4])
	assert.Equal(t, 1, agg.Counts[30])
	assert.Equal(t, 1.0, agg.Densities[4])
	assert.Equal(t, 0.5, agg.Densities[30])
	assert.Equal(t, 3, result.Rows)
	assert.NotEmpty(t, result.RunID)

	wantPath := filepath.Join(dir, "calendar_heatmap.png")
	assert.Equal(t, wantPath, result.Output.Path)
	_, err = os.Stat(wantPath)
	require.NoError(t, err)

	msgs := rec.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Calendar heatmap saved as "+wantPath, msgs[len(msgs)-1])
	assert.Same(t, result, svc.Last())
}

func TestRun_MissingInput(t *testing.T) {
	tests := []struct {
		name  string
		table *dataset.Table
	}{
		{name: "no upload", table: nil},
		{name: "header only", table: &dataset.Table{Name: "empty.csv", Columns: []string{"Timestamp"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec, dir := newTestService(t)

			result, err := svc.Run(context.Background(), Request{Table: tt.table, Column: "Timestamp"})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, apperrors.ErrMissingInput)

			entries, readErr := os.ReadDir(dir)
			require.NoError(t, readErr)
			assert.Empty(t, entries, "no image may be written")

			events := rec.Events()
			require.Len(t, events, 1)
			assert.Equal(t, EventFailed, events[0].Type)
			assert.Equal(t, MsgMissingInput, events[0].Message)
			assert.Nil(t, svc.Last())
		})
	}
}

func TestRun_MissingColumn(t *testing.T) {
	svc, rec, _ := newTestService(t)

	_, err := svc.Run(context.Background(), Request{Table: scenarioTable(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingColumn)
	assert.Equal(t, []string{MsgMissingColumn}, rec.Messages())

	_, err = svc.Run(context.Background(), Request{Table: scenarioTable(t), Column: "when"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingColumn)
	assert.Contains(t, err.Error(), `"when"`)
}

func TestRun_SkipsMalformedRows(t *testing.T) {
	svc, rec, _ := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Table:  csvTable(t, "Timestamp\n2024-02-30\nsoon\n2024-03-03 08:00\n"),
		Column: "Timestamp",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Aggregation.Total)
	require.Len(t, result.Aggregation.Skipped, 2)

	var skips []string
	for _, e := range rec.Events() {
		if e.Type == EventSkip {
			skips = append(skips, e.Message)
		}
	}
	assert.Equal(t, []string{
		"Invalid day detected: 30. Skipping.",
		"Invalid timestamp format: soon. Skipping.",
	}, skips)
}

func TestRun_AllInvalidStillRenders(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Table:  csvTable(t, "Timestamp\n2024-02-30\n"),
		Column: "Timestamp",
	})
	require.NoError(t, err)
	for _, d := range result.Aggregation.Densities {
		assert.Zero(t, d)
	}
	assert.FileExists(t, result.Output.Path)
}

func TestRun_CapsSkipEvents(t *testing.T) {
	svc, rec, _ := newTestService(t)

	var b strings.Builder
	b.WriteString("Timestamp\n")
	for i := 0; i < maxReportedSkips+10; i++ {
		fmt.Fprintf(&b, "bad-%d-x\n", i)
	}

	result, err := svc.Run(context.Background(), Request{Table: csvTable(t, b.String()), Column: "Timestamp"})
	require.NoError(t, err)
	assert.Len(t, result.Aggregation.Skipped, maxReportedSkips+10)

	skipEvents := 0
	var last Event
	for _, e := range rec.Events() {
		if e.Type == EventSkip {
			skipEvents++
			last = e
		}
	}
	assert.Equal(t, maxReportedSkips+1, skipEvents)
	assert.Equal(t, "10 more invalid values were skipped.", last.Message)
}

func TestRun_RenderFailure(t *testing.T) {
	svc, rec, dir := newTestService(t)
	dest := filepath.Join(dir, "missing", "out.png")

	_, err := svc.Run(context.Background(), Request{
		Table:       scenarioTable(t),
		Column:      "Timestamp",
		Destination: dest,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRender)
	assert.NoFileExists(t, dest)

	events := rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, EventFailed, events[len(events)-1].Type)
	assert.Equal(t, LevelError, events[len(events)-1].Level)
}

func TestRun_OverflowReported(t *testing.T) {
	svc, rec, _ := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Table:  scenarioTable(t),
		Column: "Timestamp",
		Offset: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{30, 31}, result.Grid.Dropped)

	var dropped []Event
	for _, e := range rec.Events() {
		if e.Type == EventDropped {
			dropped = append(dropped, e)
		}
	}
	require.Len(t, dropped, 1)
	assert.Equal(t, "Days 30, 31 do not fit the 5-row grid at offset 6 and were not rendered.", dropped[0].Message)

	expanded, err := svc.Run(context.Background(), Request{
		Table:    scenarioTable(t),
		Column:   "Timestamp",
		Offset:   6,
		Overflow: calendar.OverflowExpand,
	})
	require.NoError(t, err)
	assert.Empty(t, expanded.Grid.Dropped)
	assert.Equal(t, 6, expanded.Grid.Rows)
}

func TestRun_Month(t *testing.T) {
	svc, rec, _ := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Table:  scenarioTable(t),
		Column: "Timestamp",
		Month:  "2024-02",
		Offset: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, calendar.Offset(4), result.Grid.Offset)
	assert.Len(t, result.Grid.Assigned(), 29)

	// day 31 was counted but February has no cell for it
	assert.Equal(t, 1, result.Aggregation.Counts[30])
	assert.Equal(t, []int{31}, result.Grid.Dropped)

	var dropped []Event
	for _, event := range rec.Events() {
		if event.Type == EventDropped {
			dropped = append(dropped, event)
		}
	}
	require.Len(t, dropped, 1)
	assert.Equal(t, LevelWarning, dropped[0].Level)
	assert.Contains(t, dropped[0].Message, "31")
	assert.Equal(t, []int{31}, dropped[0].Data["dropped"])
}

func TestRun_MonthWithoutLateEvents(t *testing.T) {
	svc, rec, _ := newTestService(t)

	result, err := svc.Run(context.Background(), Request{
		Table:  csvTable(t, "Timestamp\n2024-02-01\n2024-02-10\n"),
		Column: "Timestamp",
		Month:  "2024-02",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Grid.Dropped)
	for _, event := range rec.Events() {
		assert.NotEqual(t, EventDropped, event.Type)
	}
}

func TestRun_InvalidRequest(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Run(context.Background(), Request{Table: scenarioTable(t), Column: "Timestamp", Offset: 9})
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))

	_, err = svc.Run(context.Background(), Request{Table: scenarioTable(t), Column: "Timestamp", Month: "Feb"})
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))

	_, err = svc.Run(context.Background(), Request{Table: scenarioTable(t), Column: "Timestamp", Overflow: "wrap"})
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
}

func TestRun_SVGDestination(t *testing.T) {
	svc, _, dir := newTestService(t, WithDefaultDestination("heatmap.svg"))

	result, err := svc.Run(context.Background(), Request{Table: scenarioTable(t), Column: "Timestamp"})
	require.NoError(t, err)
	assert.Equal(t, render.FormatSVG, result.Output.Format)
	assert.Equal(t, filepath.Join(dir, "heatmap.svg"), result.Output.Path)
}

func TestRun_Serialized(t *testing.T) {
	svc, _, _ := newTestService(t)
	table := scenarioTable(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Run(context.Background(), Request{Table: table, Column: "Timestamp"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	require.NotNil(t, svc.Last())
	assert.FileExists(t, svc.Last().Output.Path)
}

func TestRun_RecordsMetrics(t *testing.T) {
	providers, err := infrastructure.InitializeOTel(config.TelemetryConfig{
		Environment:    "test",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	telemetry, err := NewTelemetry(providers)
	require.NoError(t, err)

	svc, _, _ := newTestService(t, WithTelemetry(telemetry))
	_, err = svc.Run(context.Background(), Request{
		Table:  csvTable(t, "Timestamp\n2024-01-05\nnope\n"),
		Column: "Timestamp",
	})
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), Request{Column: "Timestamp"})
	require.Error(t, err)

	rr := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body := rr.Body.String()

	assert.Contains(t, body, "calheat_cycles_total")
	assert.Contains(t, body, `outcome="success"`)
	assert.Contains(t, body, `outcome="missing_input"`)
	assert.Contains(t, body, "calheat_rows_skipped_total")
	assert.Contains(t, body, `reason="unparsable"`)
	assert.Contains(t, body, "calheat_render_duration_seconds")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "missing_column", Outcome(apperrors.NewMissingColumnError("x")))
	assert.Equal(t, "render", Outcome(fmt.Errorf("wrapped: %w", apperrors.NewRenderError("x", nil))))
	assert.Equal(t, "internal", Outcome(fmt.Errorf("plain")))
}

func TestMultiReporter(t *testing.T) {
	a, b := &RecordingReporter{}, &RecordingReporter{}
	m := MultiReporter{a, nil, b}
	m.Report(context.Background(), Event{Type: EventStarted, Message: "hello"})

	assert.Equal(t, []string{"hello"}, a.Messages())
	assert.Equal(t, []string{"hello"}, b.Messages())
}
