// middleware.go - Identity extraction for API requests
package api

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// identityKey is the context key the identity middleware stores under.
const identityKey = "identity"

// AnonymousIdentity is assigned when auth is optional and no token is sent.
const AnonymousIdentity = "anonymous"

// AuthConfig configures the identity middleware.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens (HMAC).
	JWTSecret string
	// Required rejects requests without a valid token. When false,
	// unauthenticated requests proceed as AnonymousIdentity.
	Required bool
}

// Identity returns middleware that resolves the caller's identity from a
// bearer token and stores it on the request context.
func Identity(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				if cfg.Required {
					return NewUnauthorizedError("missing bearer token")
				}
				c.Set(identityKey, AnonymousIdentity)
				return next(c)
			}

			subject, err := verifyToken(token, cfg.JWTSecret)
			if err != nil {
				return NewUnauthorizedError("invalid bearer token")
			}

			c.Set(identityKey, subject)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by the middleware, or
// AnonymousIdentity when none was set.
func IdentityFrom(c echo.Context) string {
	if id, ok := c.Get(identityKey).(string); ok && id != "" {
		return id
	}
	return AnonymousIdentity
}

// IssueToken mints a signed bearer token for the given subject. Used by
// the CLI and by tests; production deployments may plug in an external
// identity provider instead.
func IssueToken(subject, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

func verifyToken(raw, secret string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}
