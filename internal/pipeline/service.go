package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"calheat/internal/calendar"
	apperrors "calheat/internal/errors"
	"calheat/internal/heatmap"
	"calheat/internal/infrastructure"
	"calheat/internal/render"
)

// maxReportedSkips bounds the per-row skip events of one cycle; the rest
// are summarized in a single event
const maxReportedSkips = 50

// Diagnostic messages shown to the user
const (
	MsgMissingInput  = "Please upload a file first."
	MsgMissingColumn = "Please select the Timestamp column."
)

// Service runs upload-and-render cycles one at a time
type Service struct {
	mu sync.Mutex

	aggregator  *heatmap.Aggregator
	renderer    *render.Renderer
	reporter    Reporter
	telemetry   *Telemetry
	logger      *slog.Logger
	destination string

	last *Result
}

// Option configures a Service
type Option func(*Service)

// WithReporter replaces the log-only reporter
func WithReporter(r Reporter) Option {
	return func(s *Service) {
		s.reporter = r
	}
}

// WithTelemetry sets the tracer and metrics used for each cycle
func WithTelemetry(t *Telemetry) Option {
	return func(s *Service) {
		s.telemetry = t
	}
}

// WithAggregator replaces the default aggregator
func WithAggregator(a *heatmap.Aggregator) Option {
	return func(s *Service) {
		s.aggregator = a
	}
}

// WithDefaultDestination sets the output path used when a request has none
func WithDefaultDestination(path string) Option {
	return func(s *Service) {
		s.destination = path
	}
}

// NewService creates a pipeline service
func NewService(renderer *render.Renderer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	s := &Service{
		renderer:    renderer,
		logger:      logger.With(slog.String("component", "pipeline")),
		destination: "calendar_heatmap.png",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.aggregator == nil {
		s.aggregator = heatmap.NewAggregator(logger)
	}
	if s.reporter == nil {
		s.reporter = NewLogReporter(logger)
	}
	if s.telemetry == nil {
		s.telemetry = NoopTelemetry()
	}
	return s
}

// Last returns the result of the most recent successful cycle
func (s *Service) Last() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run performs one cycle: validate the request, aggregate the timestamp
// column, lay out the grid and render the image. Structural failures abort
// the cycle with an *errors.AppError; malformed rows are only reported.
func (s *Service) Run(ctx context.Context, req Request) (result *Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = infrastructure.EnsureTraceID(ctx)
	runID := uuid.New().String()
	start := time.Now()

	ctx, span := s.telemetry.TraceRun(ctx, runID, req)
	defer func() {
		s.telemetry.RecordRunCompletion(ctx, span, time.Since(start), err)
		span.End()
		if err != nil {
			s.report(ctx, runID, EventFailed, LevelError, userMessage(err), map[string]interface{}{
				"error_type": string(apperrors.TypeOf(err)),
			})
		}
	}()

	values, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	offset, days, err := resolveCalendar(req)
	if err != nil {
		return nil, err
	}

	destination := req.Destination
	if destination == "" {
		destination = s.destination
	}

	s.report(ctx, runID, EventStarted, LevelInfo,
		fmt.Sprintf("Processing %d rows from column %s", len(values), req.Column),
		map[string]interface{}{
			"rows":   len(values),
			"column": req.Column,
			"offset": int(offset),
		})

	aggregation := s.aggregate(ctx, runID, values)

	grid, err := s.layout(ctx, runID, days, offset, req.Overflow, aggregation.Counts)
	if err != nil {
		return nil, err
	}

	output, err := s.render(ctx, runID, aggregation.Densities, grid, destination, req.Format)
	if err != nil {
		return nil, err
	}

	s.report(ctx, runID, EventComplete, LevelSuccess,
		fmt.Sprintf("Calendar heatmap saved as %s", output.Path),
		map[string]interface{}{
			"path":    output.Path,
			"format":  string(output.Format),
			"bytes":   output.Bytes,
			"counted": aggregation.Total,
			"skipped": len(aggregation.Skipped),
		})

	result = &Result{
		RunID:       runID,
		Column:      req.Column,
		Rows:        len(values),
		Aggregation: aggregation,
		Grid:        grid,
		Output:      output,
		CompletedAt: time.Now(),
	}
	s.last = result

	return result, nil
}

// validate checks the structural preconditions and returns the column values
func (s *Service) validate(req Request) ([]string, error) {
	if req.Table == nil || req.Table.Len() == 0 {
		return nil, apperrors.NewMissingInputError(MsgMissingInput)
	}
	if strings.TrimSpace(req.Column) == "" {
		return nil, apperrors.NewMissingColumnError(MsgMissingColumn).
			WithContext("columns", req.Table.Columns)
	}
	values, err := req.Table.Column(req.Column)
	if err != nil {
		return nil, apperrors.NewMissingColumnError(fmt.Sprintf("Column %q does not exist in %s.", req.Column, req.Table.Name)).
			WithContext("columns", req.Table.Columns)
	}
	return values, nil
}

// resolveCalendar returns the offset and day count of the grid
func resolveCalendar(req Request) (calendar.Offset, int, error) {
	if req.Month != "" {
		year, month, err := calendar.ParseMonth(req.Month)
		if err != nil {
			return 0, 0, apperrors.NewAppValidationError(err.Error())
		}
		return calendar.OffsetForMonth(year, month), calendar.DaysIn(year, month), nil
	}
	if err := req.Offset.Validate(); err != nil {
		return 0, 0, apperrors.NewAppValidationError(err.Error())
	}
	return req.Offset, calendar.MaxDays, nil
}

func (s *Service) aggregate(ctx context.Context, runID string, values []string) *heatmap.Result {
	stageStart := time.Now()
	ctx, span := s.telemetry.TraceStage(ctx, runID, "aggregate")
	defer s.telemetry.EndStage(span, stageStart, nil)

	result := s.aggregator.Aggregate(ctx, values)
	s.telemetry.RecordAggregation(ctx, result)

	for i, skip := range result.Skipped {
		if i == maxReportedSkips {
			s.report(ctx, runID, EventSkip, LevelWarning,
				fmt.Sprintf("%d more invalid values were skipped.", len(result.Skipped)-maxReportedSkips),
				map[string]interface{}{"skipped": len(result.Skipped)})
			break
		}
		s.report(ctx, runID, EventSkip, LevelWarning, skip.Message(), map[string]interface{}{
			"row":    skip.Row,
			"value":  skip.Value,
			"reason": string(skip.Reason),
		})
	}

	return result
}

func (s *Service) layout(ctx context.Context, runID string, days int, offset calendar.Offset, policy calendar.OverflowPolicy, counts heatmap.DayCounts) (*calendar.Grid, error) {
	stageStart := time.Now()
	ctx, span := s.telemetry.TraceStage(ctx, runID, "layout")

	grid, err := calendar.Layout(days, offset, policy)
	s.telemetry.EndStage(span, stageStart, err)
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}

	// counted days past the month length have no cell
	for day := days + 1; day <= calendar.MaxDays; day++ {
		if counts[day-1] > 0 {
			grid.Dropped = append(grid.Dropped, day)
		}
	}

	if grid.Overflowed() {
		s.telemetry.RecordDropped(ctx, int(offset), grid.Dropped)
		s.report(ctx, runID, EventDropped, LevelWarning,
			fmt.Sprintf("Days %s do not fit the %d-row grid at offset %d and were not rendered.",
				joinInts(grid.Dropped), grid.Rows, int(offset)),
			map[string]interface{}{"dropped": grid.Dropped, "offset": int(offset)})
	}
	return grid, nil
}

func (s *Service) render(ctx context.Context, runID string, densities heatmap.Densities, grid *calendar.Grid, dest string, format render.Format) (*render.Output, error) {
	stageStart := time.Now()
	ctx, span := s.telemetry.TraceStage(ctx, runID, "render")

	output, err := s.renderer.Render(ctx, densities, grid, dest, format)
	s.telemetry.EndStage(span, stageStart, err)
	if err != nil {
		return nil, err
	}

	s.telemetry.RecordRender(ctx, string(output.Format), output.Duration, output.Bytes)
	return output, nil
}

func (s *Service) report(ctx context.Context, runID, eventType, level, message string, data map[string]interface{}) {
	s.reporter.Report(ctx, Event{
		Type:    eventType,
		Level:   level,
		Message: message,
		RunID:   runID,
		Data:    data,
	})
}

// userMessage returns the AppError message without its kind prefix
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Cause != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
		}
		return appErr.Message
	}
	return err.Error()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
