package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrWorkerExists is returned when registering a taken worker id.
	ErrWorkerExists = errors.New("auth: worker already registered")
	// ErrInvalidCredentials represents login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountNotFound is returned by AccountStore for unknown workers.
	ErrAccountNotFound = errors.New("auth: account not found")
)

// Account is a worker login.
type Account struct {
	WorkerID     string    `json:"worker_id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, workerID string) (*Account, error)
}

// Service registers workers and logs them in.
type Service struct {
	store       AccountStore
	hasher      Hasher
	tokens      *TokenService
	supervisors map[string]struct{}
	logger      *zap.Logger
}

// NewService builds Service. Workers listed in supervisors get the
// supervisor role when they register.
func NewService(store AccountStore, hasher Hasher, tokens *TokenService, supervisors []string, logger *zap.Logger) *Service {
	set := make(map[string]struct{}, len(supervisors))
	for _, id := range supervisors {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return &Service{
		store:       store,
		hasher:      hasher,
		tokens:      tokens,
		supervisors: set,
		logger:      logger,
	}
}

// Register creates a worker account.
func (s *Service) Register(ctx context.Context, workerID, name, password string) (*Account, error) {
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return nil, errors.New("auth: worker id required")
	}
	if password == "" {
		return nil, errors.New("auth: password required")
	}

	if _, err := s.store.GetAccount(ctx, workerID); err == nil {
		return nil, ErrWorkerExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	role := RoleWorker
	if _, ok := s.supervisors[workerID]; ok {
		role = RoleSupervisor
	}
	account := &Account{
		WorkerID:     workerID,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("worker registered", zap.String("worker_id", workerID), zap.String("role", role))
	return account, nil
}

// Login checks the password and issues a bearer token.
func (s *Service) Login(ctx context.Context, workerID, password string) (string, *Account, error) {
	workerID = strings.TrimSpace(workerID)
	if workerID == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	account, err := s.store.GetAccount(ctx, workerID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(account.WorkerID, account.Role)
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}
