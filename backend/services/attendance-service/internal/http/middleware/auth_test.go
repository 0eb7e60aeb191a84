package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fieldattendance/backend/services/attendance-service/internal/auth"
)

const testSecret = "test-secret"

func protectedHandler(tokens *auth.TokenService) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workerID, ok := WorkerIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(workerID))
	})
	return AuthMiddleware(tokens)(next)
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, time.Hour, nil)
	valid, err := tokens.GenerateToken("w-42", auth.RoleWorker)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	wrongSecret, _ := auth.NewTokenService("other", time.Hour, nil).GenerateToken("w-42", "")
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"worker_id": "w-42",
		"exp":       time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	noWorker, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "w-42"}).SignedString([]byte(testSecret))

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusOK, wantBody: "w-42"},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK, wantBody: "w-42"},
		{name: "query token", query: "?access_token=" + valid, wantStatus: http.StatusOK, wantBody: "w-42"},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + wrongSecret, wantStatus: http.StatusUnauthorized},
		{name: "no worker claim", header: "Bearer " + noWorker, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/attendance/status"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protectedHandler(tokens).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Fatalf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, time.Hour, nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := AuthMiddleware(tokens)(RequireRole(auth.RoleSupervisor)(ok))

	for _, tc := range []struct {
		role string
		want int
	}{
		{role: auth.RoleWorker, want: http.StatusForbidden},
		{role: auth.RoleSupervisor, want: http.StatusOK},
	} {
		token, err := tokens.GenerateToken("w-1", tc.role)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/attendance/active", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("role %s: expected %d, got %d", tc.role, tc.want, rec.Code)
		}
	}
}
