package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"fieldattendance/backend/services/attendance-service/internal/auth"
)

const uniqueViolation = "23505"

// WorkerRepository stores worker accounts.
type WorkerRepository struct {
	db *sql.DB
}

// NewWorkerRepository returns repository instance.
func NewWorkerRepository(db *sql.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

// CreateAccount inserts a new worker. A duplicate id yields auth.ErrWorkerExists.
func (r *WorkerRepository) CreateAccount(ctx context.Context, account *auth.Account) error {
	const query = `
		INSERT INTO workers (worker_id, name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, account.WorkerID, account.Name, account.PasswordHash, account.Role).
		Scan(&account.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return auth.ErrWorkerExists
	}
	return err
}

// GetAccount fetches a worker by id.
func (r *WorkerRepository) GetAccount(ctx context.Context, workerID string) (*auth.Account, error) {
	const query = `
		SELECT worker_id, name, password_hash, role, created_at
		FROM workers
		WHERE worker_id = $1
		LIMIT 1
	`
	var account auth.Account
	err := r.db.QueryRowContext(ctx, query, workerID).
		Scan(&account.WorkerID, &account.Name, &account.PasswordHash, &account.Role, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}
