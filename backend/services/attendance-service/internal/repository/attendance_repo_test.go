package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

func newMockRepo(t *testing.T) (*AttendanceRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAttendanceRepository(db), mock
}

func TestInsertEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_events")).
		WithArgs("evt-1", "sess-1", "w-1", "clockin", 17.4221891, 78.3819498, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertEvent(context.Background(), models.Event{
		ID:         "evt-1",
		SessionID:  "sess-1",
		WorkerID:   "w-1",
		Kind:       models.EventClockIn,
		Coordinate: models.Coordinate{Latitude: 17.4221891, Longitude: 78.3819498},
		Timestamp:  at,
	})
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStartSession(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_sessions")).
		WithArgs("sess-1", "w-1", "metro", at, 17.0, 78.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.StartSession(context.Background(), &models.AttendanceRecord{
		SessionID: "sess-1",
		WorkerID:  "w-1",
		SiteName:  "metro",
		ClockInAt: at,
		ClockIn:   models.Coordinate{Latitude: 17, Longitude: 78},
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCompleteSessionNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_sessions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CompleteSession(context.Background(), "missing", time.Now(), models.Coordinate{})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListByWorker(t *testing.T) {
	repo, mock := newMockRepo(t)
	in := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	out := in.Add(8*time.Hour + 30*time.Minute)

	rows := sqlmock.NewRows([]string{
		"session_id", "worker_id", "site_name", "clock_in_at", "clock_in_lat", "clock_in_lon",
		"clock_out_at", "clock_out_lat", "clock_out_lon", "count",
	}).
		AddRow("sess-2", "w-1", "metro", in.Add(24*time.Hour), 17.0, 78.0, nil, nil, nil, 3).
		AddRow("sess-1", "w-1", "metro", in, 17.0, 78.0, out, 17.1, 78.1, 510)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_sessions s")).
		WithArgs("w-1", 50).
		WillReturnRows(rows)

	records, err := repo.ListByWorker(context.Background(), "w-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ClockOutAt != nil || records[0].ClockOut != nil {
		t.Fatalf("open session must not have clock-out data: %+v", records[0])
	}
	if records[0].UpdateCount != 3 {
		t.Fatalf("expected 3 updates, got %d", records[0].UpdateCount)
	}
	if records[1].ClockOutAt == nil || !records[1].ClockOutAt.Equal(out) {
		t.Fatalf("unexpected clock-out time %+v", records[1].ClockOutAt)
	}
	if got := records[1].Duration(time.Now()); got != 8*time.Hour+30*time.Minute {
		t.Fatalf("expected 8h30m, got %s", got)
	}
	if got := records[0].WithDuration(in.Add(26 * time.Hour)).DurationSeconds; got != 2*3600 {
		t.Fatalf("open record must count up to now, got %ds", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListByWorkerEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows([]string{
		"session_id", "worker_id", "site_name", "clock_in_at", "clock_in_lat", "clock_in_lon",
		"clock_out_at", "clock_out_lat", "clock_out_lon", "count",
	})
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_sessions s")).
		WithArgs("w-9", 10).
		WillReturnRows(rows)

	records, err := repo.ListByWorker(context.Background(), "w-9", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", records)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS attendance_sessions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}
