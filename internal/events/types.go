// Package events provides the in-process event bus pipeline components
// publish stage transitions on. The trace recorder and CLI surfaces
// subscribe to it; publishing never blocks on a slow subscriber.
package events

import (
	"time"

	"github.com/scanforge/scanforge/internal/types"
)

// EventType identifies the category of a pipeline event.
type EventType string

// Pipeline lifecycle events.
const (
	EventPipelineStarted   EventType = "pipeline.started"
	EventPipelineCompleted EventType = "pipeline.completed"
	EventPipelineRejected  EventType = "pipeline.rejected"
	EventPipelineCancelled EventType = "pipeline.cancelled"
)

// Stage transition events.
const (
	EventClassified       EventType = "stage.classified"
	EventGenerateStarted  EventType = "stage.generate.started"
	EventGenerateFinished EventType = "stage.generate.finished"
	EventGenerateFailed   EventType = "stage.generate.failed"
	EventValidated        EventType = "stage.validated"
	EventRepairStarted    EventType = "stage.repair.started"
	EventRepairFinished   EventType = "stage.repair.finished"
	EventEscalated        EventType = "stage.escalated"
)

// Event is a single pipeline occurrence tied to one request.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID types.ID       `json:"request_id"`
	Tier      string         `json:"tier,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Filter restricts which events a subscriber receives. Zero-value
// fields match everything.
type Filter struct {
	Types     []EventType
	RequestID types.ID
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(event Event) bool {
	if !f.RequestID.IsZero() && f.RequestID != event.RequestID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == event.Type {
			return true
		}
	}
	return false
}
