package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

// ErrRecordNotFound indicates an unknown session id.
var ErrRecordNotFound = errors.New("attendance record not found")

const schema = `
CREATE TABLE IF NOT EXISTS attendance_sessions (
	session_id     TEXT PRIMARY KEY,
	worker_id      TEXT NOT NULL,
	site_name      TEXT NOT NULL DEFAULT '',
	clock_in_at    TIMESTAMPTZ NOT NULL,
	clock_in_lat   DOUBLE PRECISION NOT NULL,
	clock_in_lon   DOUBLE PRECISION NOT NULL,
	clock_out_at   TIMESTAMPTZ,
	clock_out_lat  DOUBLE PRECISION,
	clock_out_lon  DOUBLE PRECISION,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS attendance_sessions_worker_idx ON attendance_sessions (worker_id, clock_in_at DESC);

CREATE TABLE IF NOT EXISTS attendance_events (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	worker_id    TEXT NOT NULL,
	status       TEXT NOT NULL,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS attendance_events_session_idx ON attendance_events (session_id, recorded_at);

CREATE TABLE IF NOT EXISTS workers (
	worker_id      TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	password_hash  TEXT NOT NULL,
	role           TEXT NOT NULL DEFAULT 'worker',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// AttendanceRepository persists attendance sessions and their events.
type AttendanceRepository struct {
	db *sql.DB
}

// NewAttendanceRepository returns repository.
func NewAttendanceRepository(db *sql.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Migrate creates the tables when missing.
func (r *AttendanceRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// InsertEvent stores an event; replays of the same event id are ignored.
func (r *AttendanceRepository) InsertEvent(ctx context.Context, event models.Event) error {
	const query = `
		INSERT INTO attendance_events (id, session_id, worker_id, status, latitude, longitude, recorded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.SessionID,
		event.WorkerID,
		string(event.Kind),
		event.Coordinate.Latitude,
		event.Coordinate.Longitude,
		event.Timestamp.UTC(),
	)
	return err
}

// StartSession records a clock-in.
func (r *AttendanceRepository) StartSession(ctx context.Context, record *models.AttendanceRecord) error {
	const query = `
		INSERT INTO attendance_sessions (session_id, worker_id, site_name, clock_in_at, clock_in_lat, clock_in_lon, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (session_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		record.SessionID,
		record.WorkerID,
		record.SiteName,
		record.ClockInAt.UTC(),
		record.ClockIn.Latitude,
		record.ClockIn.Longitude,
	)
	return err
}

// CompleteSession records the clock-out of sessionID.
func (r *AttendanceRepository) CompleteSession(ctx context.Context, sessionID string, at time.Time, c models.Coordinate) error {
	const query = `
		UPDATE attendance_sessions
		SET clock_out_at = $2,
		    clock_out_lat = $3,
		    clock_out_lon = $4,
		    updated_at = NOW()
		WHERE session_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, sessionID, at.UTC(), c.Latitude, c.Longitude)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListByWorker returns the latest records of a worker, newest first.
func (r *AttendanceRepository) ListByWorker(ctx context.Context, workerID string, limit int) ([]models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT s.session_id, s.worker_id, s.site_name, s.clock_in_at, s.clock_in_lat, s.clock_in_lon,
		       s.clock_out_at, s.clock_out_lat, s.clock_out_lon,
		       (SELECT COUNT(*) FROM attendance_events e WHERE e.session_id = s.session_id AND e.status = 'update')
		FROM attendance_sessions s
		WHERE s.worker_id = $1
		ORDER BY s.clock_in_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, workerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.AttendanceRecord, 0, limit)
	for rows.Next() {
		var (
			rec    models.AttendanceRecord
			outAt  sql.NullTime
			outLat sql.NullFloat64
			outLon sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.SessionID,
			&rec.WorkerID,
			&rec.SiteName,
			&rec.ClockInAt,
			&rec.ClockIn.Latitude,
			&rec.ClockIn.Longitude,
			&outAt,
			&outLat,
			&outLon,
			&rec.UpdateCount,
		); err != nil {
			return nil, err
		}
		if outAt.Valid {
			at := outAt.Time.UTC()
			rec.ClockOutAt = &at
		}
		if outLat.Valid && outLon.Valid {
			rec.ClockOut = &models.Coordinate{Latitude: outLat.Float64, Longitude: outLon.Float64}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
