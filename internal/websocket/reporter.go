package websocket

import (
	"context"
	"time"

	"calheat/internal/infrastructure"
	"calheat/internal/pipeline"
)

// Reporter forwards pipeline events to every connected client
type Reporter struct {
	hub *Hub
}

// NewReporter creates a pipeline reporter publishing to hub
func NewReporter(hub *Hub) *Reporter {
	return &Reporter{hub: hub}
}

// Report publishes the event without blocking the cycle
func (r *Reporter) Report(ctx context.Context, event pipeline.Event) {
	data := make(map[string]interface{}, len(event.Data)+1)
	for k, v := range event.Data {
		data[k] = v
	}
	if event.RunID != "" {
		data["run_id"] = event.RunID
	}

	r.hub.Publish(Message{
		Type:      event.Type,
		Level:     event.Level,
		Message:   event.Message,
		Data:      data,
		Timestamp: time.Now(),
		TraceID:   infrastructure.GetTraceID(ctx),
	})
}
