package models

import "time"

// AttendanceRecord is one clock-in/clock-out pair as shown in a worker's history.
type AttendanceRecord struct {
	SessionID   string      `db:"session_id" json:"session_id"`
	WorkerID    string      `db:"worker_id" json:"worker_id"`
	SiteName    string      `db:"site_name" json:"site_name"`
	ClockInAt   time.Time   `db:"clock_in_at" json:"clock_in_at"`
	ClockOutAt  *time.Time  `db:"clock_out_at" json:"clock_out_at,omitempty"`
	ClockIn     Coordinate  `json:"clock_in_location"`
	ClockOut    *Coordinate `json:"clock_out_location,omitempty"`
	UpdateCount int         `db:"update_count" json:"update_count"`

	// DurationSeconds is filled when records are served; open records count up to now.
	DurationSeconds int64 `db:"-" json:"duration_seconds"`
}

// Duration returns the worked time; open records are measured up to now.
func (r AttendanceRecord) Duration(now time.Time) time.Duration {
	end := now
	if r.ClockOutAt != nil {
		end = *r.ClockOutAt
	}
	if end.Before(r.ClockInAt) {
		return 0
	}
	return end.Sub(r.ClockInAt)
}

// WithDuration returns a copy of r with DurationSeconds measured at now.
func (r AttendanceRecord) WithDuration(now time.Time) AttendanceRecord {
	r.DurationSeconds = int64(r.Duration(now) / time.Second)
	return r
}
