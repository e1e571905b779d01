package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func guarded() http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := GetUserRoleFromContext(r.Context())
		w.Header().Set("X-Role", role)
		w.WriteHeader(http.StatusNoContent)
	})
	return Authenticate(testSecret)(RequireRole(RoleOrganizer, RoleAdmin)(ok))
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	valid := func(role string) string {
		return signed(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
			"role": role,
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
	}

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"role": RoleAdmin}), http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + signed(t, jwt.SigningMethodHS512, testSecret, jwt.MapClaims{"role": RoleAdmin}), http.StatusUnauthorized},
		{"expired", "Bearer " + signed(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
			"role": RoleAdmin, "exp": time.Now().Add(-time.Minute).Unix(),
		}), http.StatusUnauthorized},
		{"missing role", "Bearer " + signed(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "42"}), http.StatusUnauthorized},
		{"player", "Bearer " + valid("player"), http.StatusForbidden},
		{"organizer", "Bearer " + valid(RoleOrganizer), http.StatusNoContent},
		{"admin", "Bearer " + valid(RoleAdmin), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/Games", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			guarded().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode >= 400 {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestGetUserRoleFromContext(t *testing.T) {
	_, err := GetUserRoleFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoClaims)

	role, err := GetUserRoleFromContext(WithClaims(context.Background(), jwt.MapClaims{"role": RoleAdmin}))
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = GetUserRoleFromContext(WithClaims(context.Background(), jwt.MapClaims{"role": 7}))
	assert.Error(t, err)

	_, err = GetUserRoleFromContext(WithClaims(context.Background(), jwt.MapClaims{"role": "root"}))
	assert.Error(t, err)
}
