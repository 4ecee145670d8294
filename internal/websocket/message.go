package websocket

import "time"

// Message types sent by the hub itself
const (
	TypeConnection = "connection"
)

// Message levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Message is the JSON document delivered to every client
type Message struct {
	Type      string                 `json:"type"`
	Level     string                 `json:"level,omitempty"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	TraceID   string                 `json:"trace_id,omitempty"`
}
