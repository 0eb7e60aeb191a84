package models

import "time"

// EventKind is the attendance event type. The string values are the wire
// "status" field of the tracking payload.
type EventKind string

const (
	EventClockIn        EventKind = "clockin"
	EventClockOut       EventKind = "clockout"
	EventPeriodicUpdate EventKind = "update"
)

// Event is emitted by an attendance session on every transition and tick.
type Event struct {
	ID         string     `json:"event_id"`
	WorkerID   string     `json:"worker_id"`
	SessionID  string     `json:"session_id"`
	Kind       EventKind  `json:"status"`
	Coordinate Coordinate `json:"coordinate"`
	Timestamp  time.Time  `json:"timestamp"`
}

// TrackPayload is the JSON body sent to tracking endpoints.
type TrackPayload struct {
	Status    EventKind `json:"status"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp string    `json:"timestamp"`
	WorkerID  string    `json:"worker_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	EventID   string    `json:"event_id,omitempty"`
}

// Payload converts the event into its tracking wire form.
func (e Event) Payload() TrackPayload {
	return TrackPayload{
		Status:    e.Kind,
		Latitude:  e.Coordinate.Latitude,
		Longitude: e.Coordinate.Longitude,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		WorkerID:  e.WorkerID,
		SessionID: e.SessionID,
		EventID:   e.ID,
	}
}
