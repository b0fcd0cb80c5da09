package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestAuth() *AuthMiddleware {
	return NewAuthMiddleware("test-secret", time.Minute, time.Hour)
}

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	m := newTestAuth()

	tokens, err := m.IssueTokens("alice")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		subject, ok := SubjectFromContext(r.Context())
		if !ok {
			t.Fatalf("subject not in context")
		}
		if subject != "alice" {
			t.Fatalf("subject from context = %q, want alice", subject)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := newTestAuth()

	tokens, err := m.IssueTokens("alice")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	expired, err := NewAuthMiddleware("test-secret", -time.Minute, time.Hour).IssueAccessToken("alice")
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}

	foreign, err := NewAuthMiddleware("other-secret", time.Minute, time.Hour).IssueAccessToken("alice")
	if err != nil {
		t.Fatalf("issue foreign token: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "alice",
		"type": TokenTypeAccess,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("issue unsigned token: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "wrong scheme", header: "Basic " + tokens.AccessToken},
		{name: "garbage", header: "Bearer not-a-jwt"},
		{name: "refresh token", header: "Bearer " + tokens.RefreshToken},
		{name: "expired", header: "Bearer " + expired},
		{name: "other secret", header: "Bearer " + foreign},
		{name: "alg none", header: "Bearer " + unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			m.Middleware(next).ServeHTTP(w, r)

			res := w.Result()
			defer res.Body.Close()
			if res.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
			}
			if !strings.Contains(w.Body.String(), InvalidTokenMessage) {
				t.Fatalf("body = %q, want %q", w.Body.String(), InvalidTokenMessage)
			}
		})
	}
}

func TestRefreshMiddleware_RejectsAccessToken(t *testing.T) {
	m := newTestAuth()

	tokens, err := m.IssueTokens("bob")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	r := httptest.NewRequest(http.MethodGet, "/auth/refresh", nil)
	r.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	w := httptest.NewRecorder()
	m.RefreshMiddleware(next).ServeHTTP(w, r)

	if called || w.Code != http.StatusUnauthorized {
		t.Fatalf("access token must not pass refresh middleware, status = %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/auth/refresh", nil)
	r.Header.Set("Authorization", "Bearer "+tokens.RefreshToken)
	m.RefreshMiddleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !called {
		t.Fatalf("refresh token must pass refresh middleware")
	}
}

func TestNewAuthMiddleware_EmptySecret(t *testing.T) {
	a := NewAuthMiddleware("", time.Minute, time.Hour)
	b := NewAuthMiddleware("", time.Minute, time.Hour)

	token, err := a.IssueAccessToken("alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := a.ParseToken(token, TokenTypeAccess); err != nil {
		t.Fatalf("token must be valid for its issuer: %v", err)
	}
	if _, err := b.ParseToken(token, TokenTypeAccess); err == nil {
		t.Fatalf("random keys must differ between instances")
	}
}
