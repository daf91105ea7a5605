package types

import (
	"time"
)

// Platform identifies where a change originated.
type Platform string

const (
	// PlatformBoard is the visual whiteboard side.
	PlatformBoard Platform = "board"
	// PlatformTracker is the task-management side.
	PlatformTracker Platform = "tracker"
	// PlatformClient marks changes submitted by an end client through the API.
	PlatformClient Platform = "client"
	// PlatformSystem marks changes produced by the bridge itself.
	PlatformSystem Platform = "system"
)

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformBoard, PlatformTracker, PlatformClient, PlatformSystem:
		return true
	}
	return false
}

// EventType classifies a normalized sync event. Webhook ingress maps
// platform-native event names onto these before anything reaches the engine.
type EventType string

const (
	EventTaskUpdated        EventType = "task_updated"
	EventCommunicationAdded EventType = "communication_added"
	EventStatusChanged      EventType = "status_changed"
)

// CandidateUpdate is one side of a potential conflict: a completion value
// together with the timestamp the originating platform reported for it.
type CandidateUpdate struct {
	Completed bool
	Timestamp time.Time
}
