package pipeline

import (
	"time"

	"calheat/internal/calendar"
	"calheat/internal/dataset"
	"calheat/internal/heatmap"
	"calheat/internal/render"
)

// Request is one upload-and-render cycle
type Request struct {
	// Table is the uploaded data; nil means nothing was uploaded
	Table *dataset.Table
	// Column names the timestamp column
	Column string
	// Offset is the column of day 1; ignored when Month is set
	Offset calendar.Offset
	// Month, as "YYYY-MM", derives the offset and day count from a real month
	Month    string
	Overflow calendar.OverflowPolicy
	// Destination is the output path; empty uses the service default
	Destination string
	// Format is the image format; empty infers it from Destination
	Format render.Format
}

// Result is the outcome of a successful cycle
type Result struct {
	RunID       string          `json:"run_id"`
	Column      string          `json:"column"`
	Rows        int             `json:"rows"`
	Aggregation *heatmap.Result `json:"aggregation"`
	Grid        *calendar.Grid  `json:"grid"`
	Output      *render.Output  `json:"output"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Event types reported during a cycle
const (
	EventStarted  = "pipeline:started"
	EventSkip     = "pipeline:skip"
	EventDropped  = "pipeline:dropped"
	EventComplete = "pipeline:complete"
	EventFailed   = "pipeline:failed"
)

// Event levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Event is a human-readable diagnostic emitted during a cycle
type Event struct {
	Type    string                 `json:"type"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	RunID   string                 `json:"run_id,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
