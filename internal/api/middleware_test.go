// middleware_test.go - Tests for the identity middleware
package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runIdentity(t *testing.T, cfg AuthConfig, authorization string) (string, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	err := Identity(cfg)(func(c echo.Context) error {
		got = IdentityFrom(c)
		return nil
	})(c)
	return got, err
}

func TestIdentity(t *testing.T) {
	const secret = "test-secret"

	t.Run("valid token resolves the subject", func(t *testing.T) {
		token, err := IssueToken("alice", secret)
		if err != nil {
			t.Fatalf("IssueToken failed: %v", err)
		}

		got, err := runIdentity(t, AuthConfig{JWTSecret: secret, Required: true}, "Bearer "+token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "alice" {
			t.Errorf("identity = %q, want alice", got)
		}
	})

	t.Run("missing token rejected when required", func(t *testing.T) {
		_, err := runIdentity(t, AuthConfig{JWTSecret: secret, Required: true}, "")
		apiErr, ok := err.(*APIError)
		if !ok || apiErr.Status != http.StatusUnauthorized {
			t.Fatalf("expected 401 APIError, got %v", err)
		}
	})

	t.Run("missing token allowed as anonymous when optional", func(t *testing.T) {
		got, err := runIdentity(t, AuthConfig{JWTSecret: secret}, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != AnonymousIdentity {
			t.Errorf("identity = %q, want %q", got, AnonymousIdentity)
		}
	})

	t.Run("tampered token rejected", func(t *testing.T) {
		token, _ := IssueToken("alice", "other-secret")
		_, err := runIdentity(t, AuthConfig{JWTSecret: secret, Required: true}, "Bearer "+token)
		apiErr, ok := err.(*APIError)
		if !ok || apiErr.Status != http.StatusUnauthorized {
			t.Fatalf("expected 401 APIError, got %v", err)
		}
	})
}
