// Package telemetry provides solver health tracking: step timing, windowed
// fluid statistics, anomaly bookmarks and CSV output.
package telemetry

import "github.com/pthm-cable/sphgrid/components"

// EventType identifies telemetry events.
type EventType uint8

const (
	EventMove EventType = iota
	EventModeSwitch
	EventClamp
)

// Event represents a single telemetry event.
type Event struct {
	Type EventType
	Step int64

	// Optional fields depending on event type
	Count int                     // particles moved or clamped
	Mode  components.BoundaryMode // new mode for switches
}

// NewMoveEvent records a MoveParticles command applied at step.
func NewMoveEvent(step int64, count int) Event {
	return Event{Type: EventMove, Step: step, Count: count}
}

// NewModeSwitchEvent records a boundary mode change.
func NewModeSwitchEvent(step int64, mode components.BoundaryMode) Event {
	return Event{Type: EventModeSwitch, Step: step, Mode: mode}
}

// NewClampEvent records how many particles the integrator clamped in a step.
func NewClampEvent(step int64, count int) Event {
	return Event{Type: EventClamp, Step: step, Count: count}
}
