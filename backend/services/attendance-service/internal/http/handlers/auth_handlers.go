package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fieldattendance/backend/services/attendance-service/internal/auth"
)

// AccountService registers workers and issues tokens.
type AccountService interface {
	Register(ctx context.Context, workerID, name, password string) (*auth.Account, error)
	Login(ctx context.Context, workerID, password string) (string, *auth.Account, error)
}

type credentialsRequest struct {
	WorkerID string `json:"worker_id"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// NewRegisterHandler returns POST /auth/register handler.
func NewRegisterHandler(accounts AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.WorkerID = strings.TrimSpace(req.WorkerID)
		if req.WorkerID == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "worker_id and password are required")
			return
		}

		account, err := accounts.Register(r.Context(), req.WorkerID, req.Name, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrWorkerExists) {
				writeError(w, http.StatusConflict, "worker already registered")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to register worker")
			return
		}
		writeJSON(w, http.StatusCreated, account)
	}
}

// NewLoginHandler returns POST /auth/login handler.
func NewLoginHandler(accounts AccountService) http.HandlerFunc {
	type response struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
		Role      string `json:"role"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.WorkerID) == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "worker_id and password are required")
			return
		}

		token, account, err := accounts.Login(r.Context(), req.WorkerID, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to login")
			return
		}
		writeJSON(w, http.StatusOK, response{
			Token:     token,
			TokenType: "Bearer",
			Role:      account.Role,
		})
	}
}
