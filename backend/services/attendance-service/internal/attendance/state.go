package attendance

import (
	"fmt"
	"time"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

// State of an attendance session.
type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state as its lowercase name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	WorkerID     string             `json:"worker_id"`
	State        State              `json:"state"`
	SessionID    string             `json:"session_id,omitempty"`
	ClockedInAt  *time.Time         `json:"clocked_in_at,omitempty"`
	LastKnown    *models.Coordinate `json:"last_known,omitempty"`
	LastUpdateAt *time.Time         `json:"last_update_at,omitempty"`
	FailedPings  int                `json:"failed_pings"`
}
