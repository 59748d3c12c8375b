package api

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// LocalSubject is the fiber Locals key holding the authenticated subject.
const LocalSubject = "subject"

const issuer = "go-guide"

// IssueToken signs an HS256 token for subject valid for ttl from now.
func IssueToken(secret []byte, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("api: empty jwt secret")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(secret []byte, token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// TokenQuery is the query parameter carrying the token on WebSocket upgrades,
// where clients cannot always set headers.
const TokenQuery = "token"

// RequireJWT rejects requests without a valid "Authorization: Bearer" token
// or, failing that, a token query parameter.
func RequireJWT(secret []byte, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearer(c)
		if token == "" {
			return fail(c, fiber.StatusUnauthorized, "missing bearer token")
		}
		claims, err := ParseToken(secret, token)
		if err != nil {
			logger.Warn("jwt rejected", "path", c.Path(), "error", err)
			return fail(c, fiber.StatusUnauthorized, "invalid or expired token")
		}
		c.Locals(LocalSubject, claims.Subject)
		return c.Next()
	}
}

func bearer(c *fiber.Ctx) string {
	if token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); ok {
		return token
	}
	return c.Query(TokenQuery)
}
