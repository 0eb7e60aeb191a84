package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"fieldattendance/backend/services/attendance-service/internal/auth"
)

func newMockWorkerRepo(t *testing.T) (*WorkerRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWorkerRepository(db), mock
}

func TestCreateAccount(t *testing.T) {
	repo, mock := newMockWorkerRepo(t)
	created := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO workers")).
		WithArgs("w-1", "Asha", "hash", "worker").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	account := &auth.Account{WorkerID: "w-1", Name: "Asha", PasswordHash: "hash", Role: "worker"}
	if err := repo.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !account.CreatedAt.Equal(created) {
		t.Fatalf("created_at not scanned: %s", account.CreatedAt)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	repo, mock := newMockWorkerRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO workers")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := repo.CreateAccount(context.Background(), &auth.Account{WorkerID: "w-1"})
	if !errors.Is(err, auth.ErrWorkerExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestGetAccount(t *testing.T) {
	repo, mock := newMockWorkerRepo(t)
	created := time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM workers")).
		WithArgs("w-1").
		WillReturnRows(sqlmock.NewRows([]string{"worker_id", "name", "password_hash", "role", "created_at"}).
			AddRow("w-1", "Asha", "hash", "supervisor", created))

	account, err := repo.GetAccount(context.Background(), "w-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if account.Role != "supervisor" || account.PasswordHash != "hash" {
		t.Fatalf("unexpected account %+v", account)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM workers")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"worker_id", "name", "password_hash", "role", "created_at"}))

	if _, err := repo.GetAccount(context.Background(), "ghost"); !errors.Is(err, auth.ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
