// Package telemetry provides compute timing, stream summaries, emitter
// event counting, and CSV output.
package telemetry

// EventType identifies emitter events.
type EventType uint8

const (
	EventSystemAdded EventType = iota
	EventSystemRemoved
	EventDirty
	EventComputed
	EventFailed
	EventCancelled
	EventStale
)

var eventNames = [...]string{
	EventSystemAdded:   "system_added",
	EventSystemRemoved: "system_removed",
	EventDirty:         "dirty",
	EventComputed:      "computed",
	EventFailed:        "failed",
	EventCancelled:     "cancelled",
	EventStale:         "stale",
}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event is a single notification from the emitter.
type Event struct {
	Type   EventType
	System string

	// Optional fields depending on event type
	Epoch  uint64 // for computed events
	Points int    // for computed events
	Err    error  // for failed and stale events
}

// NewDirtyEvent creates an event for a system whose stream went stale.
func NewDirtyEvent(system string) Event {
	return Event{Type: EventDirty, System: system}
}

// NewComputedEvent creates an event for a finished compute.
func NewComputedEvent(system string, epoch uint64, points int) Event {
	return Event{Type: EventComputed, System: system, Epoch: epoch, Points: points}
}

// NewFailedEvent creates an event for a failed compute.
func NewFailedEvent(system string, err error) Event {
	return Event{Type: EventFailed, System: system, Err: err}
}
