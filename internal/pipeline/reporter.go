package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// Reporter receives cycle diagnostics
type Reporter interface {
	Report(ctx context.Context, event Event)
}

// LogReporter writes events to a slog logger
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a reporter logging through logger
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger.With(slog.String("component", "pipeline.reporter"))}
}

// Report logs the event at a level matching its severity
func (r *LogReporter) Report(ctx context.Context, event Event) {
	level := slog.LevelInfo
	switch event.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("event", event.Type),
		slog.String("run_id", event.RunID),
	}
	for k, v := range event.Data {
		attrs = append(attrs, slog.Any(k, v))
	}
	r.logger.LogAttrs(ctx, level, event.Message, attrs...)
}

// MultiReporter fans events out to several reporters in order
type MultiReporter []Reporter

// Report forwards the event to every non-nil reporter
func (m MultiReporter) Report(ctx context.Context, event Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, event)
		}
	}
}

// RecordingReporter keeps every event in memory
type RecordingReporter struct {
	mu     sync.Mutex
	events []Event
}

// Report stores the event
func (r *RecordingReporter) Report(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *RecordingReporter) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Messages returns the recorded event messages
func (r *RecordingReporter) Messages() []string {
	events := r.Events()
	msgs := make([]string, len(events))
	for i, e := range events {
		msgs[i] = e.Message
	}
	return msgs
}
