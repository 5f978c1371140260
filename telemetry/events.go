// Package telemetry provides flock health tracking, bookmarking, snapshots
// and metrics export.
package telemetry

// EventType identifies telemetry events.
type EventType uint8

const (
	EventSpawn EventType = iota
	EventRemove
	EventGoalChange
	EventGateFill
)

func (t EventType) String() string {
	switch t {
	case EventSpawn:
		return "spawn"
	case EventRemove:
		return "remove"
	case EventGoalChange:
		return "goal_change"
	case EventGateFill:
		return "gate_fill"
	}
	return "unknown"
}

// Event represents a single telemetry event.
type Event struct {
	Type    EventType
	Tick    int32
	AgentID uint32 // spawn and remove only
	Count   int    // members inside the gate, gate fills only
}
