package models

import (
	"time"
)

// EventType identifies an event emitted by a running graph
type EventType string

const (
	// Run events
	EventRunStarted    EventType = "run.started"
	EventRunCompleted  EventType = "run.completed"
	EventRunTerminated EventType = "run.terminated"

	// Node events
	EventNodeStarted EventType = "node.started"
	EventNodeEmitted EventType = "node.emitted"
	EventNodeDone    EventType = "node.done"
)

// Event is a generic graph event
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// EventListener receives events from a running graph
type EventListener interface {
	OnEvent(event Event)
}

// EventListenerFunc adapts a function to EventListener
type EventListenerFunc func(event Event)

func (f EventListenerFunc) OnEvent(event Event) {
	f(event)
}
