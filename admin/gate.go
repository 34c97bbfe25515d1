// Package admin guards and performs destructive maintenance operations.
package admin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin   = "admin"
	tokenIssuer = "docqa"
)

var ErrUnauthorized = errors.New("unauthorized")

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Gate issues and verifies HS256 admin tokens.
type Gate struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGate(secret string, ttl time.Duration) (*Gate, error) {
	if secret == "" {
		return nil, errors.New("admin JWT secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Gate{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (g *Gate) IssueToken(subject string) (string, error) {
	now := g.now()
	claims := &AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Authorize validates an Authorization header value of the form
// "Bearer <token>". Every rejection wraps ErrUnauthorized.
func (g *Gate) Authorize(header string) (*AdminClaims, error) {
	raw, err := bearerToken(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	claims := &AdminClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: role %q is not allowed", ErrUnauthorized, claims.Role)
	}
	return claims, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", errors.New("authorization header must start with 'Bearer '")
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", errors.New("token is empty")
	}
	return token, nil
}
