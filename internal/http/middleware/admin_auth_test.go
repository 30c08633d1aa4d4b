package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func runAdminJWT(t *testing.T, secret, authorization string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/users/1", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	called := false
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok || claims.Subject != "ops" {
			t.Fatalf("expected admin claims in context, got %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, called
}

func TestAdminJWTRejects(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		auth   string
	}{
		{"disabled", "", "Bearer " + signedAdminToken(t, "secret", time.Minute)},
		{"missing header", "secret", ""},
		{"not bearer", "secret", "Basic abc"},
		{"wrong secret", "secret", "Bearer " + signedAdminToken(t, "wrong", time.Minute)},
		{"expired", "secret", "Bearer " + signedAdminToken(t, "secret", -time.Minute)},
		{"no expiry", "secret", "Bearer " + signedAdminTokenNoExpiry(t, "secret")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, called := runAdminJWT(t, tt.secret, tt.auth)
			if called {
				t.Fatalf("handler should not run")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	rec, called := runAdminJWT(t, "secret", "bearer "+signedAdminToken(t, "secret", 5*time.Minute))
	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func signedAdminToken(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func signedAdminTokenNoExpiry(t *testing.T, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ops"}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
