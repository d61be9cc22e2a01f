package dataflow

import (
	"sync"
	"time"

	"github.com/simon020286/go-dataflow/models"
)

// eventBus manages event distribution to registered listeners (private)
type eventBus struct {
	listeners []models.EventListener
	mutex     sync.RWMutex
	pendingWg sync.WaitGroup // Tracks events being processed
}

// newEventBus creates a new eventBus instance (private)
func newEventBus() *eventBus {
	return &eventBus{
		listeners: make([]models.EventListener, 0),
	}
}

// addListener registers a new listener
func (eb *eventBus) addListener(listener models.EventListener) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	eb.listeners = append(eb.listeners, listener)
}

// Emit sends an event to all registered listeners
func (eb *eventBus) Emit(eventType models.EventType, data map[string]any) {
	eb.mutex.RLock()
	if len(eb.listeners) == 0 {
		eb.mutex.RUnlock()
		return
	}
	listeners := make([]models.EventListener, len(eb.listeners))
	copy(listeners, eb.listeners)
	eb.mutex.RUnlock()

	event := models.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Notify listeners asynchronously so node actors never wait on them
	for _, listener := range listeners {
		eb.pendingWg.Go(func() {
			listener.OnEvent(event)
		})
	}
}

// Wait waits for all pending events to be processed
func (eb *eventBus) Wait() {
	eb.pendingWg.Wait()
}

// EmitRunStarted emits a run start event
func (eb *eventBus) EmitRunStarted(runID string) {
	eb.Emit(models.EventRunStarted, map[string]any{
		"run_id": runID,
	})
}

// EmitRunCompleted emits a run completion event
func (eb *eventBus) EmitRunCompleted(runID string, duration time.Duration, values int) {
	eb.Emit(models.EventRunCompleted, map[string]any{
		"run_id":   runID,
		"duration": duration,
		"values":   values,
	})
}

// EmitRunTerminated emits an event for a run stopped before completion
func (eb *eventBus) EmitRunTerminated(runID string, err error) {
	eb.Emit(models.EventRunTerminated, map[string]any{
		"run_id": runID,
		"error":  err.Error(),
	})
}

// EmitNodeStarted emits a node start event
func (eb *eventBus) EmitNodeStarted(runID, nodeID, variant string) {
	eb.Emit(models.EventNodeStarted, map[string]any{
		"run_id":  runID,
		"node_id": nodeID,
		"variant": variant,
	})
}

// EmitNodeEmitted emits an event for a value forwarded by a node
func (eb *eventBus) EmitNodeEmitted(runID, nodeID string, value any) {
	eb.Emit(models.EventNodeEmitted, map[string]any{
		"run_id":  runID,
		"node_id": nodeID,
		"value":   value,
	})
}

// EmitNodeDone emits a node completion event
func (eb *eventBus) EmitNodeDone(runID, nodeID string, child int) {
	eb.Emit(models.EventNodeDone, map[string]any{
		"run_id":  runID,
		"node_id": nodeID,
		"child":   child,
	})
}
