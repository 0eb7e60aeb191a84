package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// Roles carried in tokens.
const (
	RoleWorker     = "worker"
	RoleSupervisor = "supervisor"
)

// ErrInvalidToken is returned for tokens that fail validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT payload understood by the attendance API.
type Claims struct {
	WorkerID string `json:"worker_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	clock     clockwork.Clock
}

// NewTokenService returns configured token service.
func NewTokenService(secret string, expiresIn time.Duration, clock clockwork.Clock) *TokenService {
	if expiresIn <= 0 {
		expiresIn = 12 * time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenService{secret: []byte(secret), expiresIn: expiresIn, clock: clock}
}

// GenerateToken issues a token for the worker.
func (t *TokenService) GenerateToken(workerID, role string) (string, error) {
	if strings.TrimSpace(workerID) == "" {
		return "", errors.New("auth: worker id is required")
	}
	if role == "" {
		role = RoleWorker
	}

	now := t.clock.Now().UTC()
	claims := Claims{
		WorkerID: workerID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   workerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// ValidateToken verifies the signature and expiry and decodes the claims.
func (t *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: unexpected signing method")
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.WorkerID) == "" {
		return nil, ErrInvalidToken
	}
	if claims.Role == "" {
		claims.Role = RoleWorker
	}
	return claims, nil
}
