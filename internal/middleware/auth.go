// Package middleware provides authentication, logging and rate limiting
// middleware for the application.
package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rockymount114/City-Workflow/internal/config"
	"github.com/rockymount114/City-Workflow/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultIssuer   = "city-workflow-api"
	DefaultAudience = "city-workflow-client"
)

var (
	ErrMissingToken = errors.New("authorization required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims are the JWT claims the API issues and accepts.
type Claims struct {
	Role models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

func issuer(cfg *config.Config) string {
	if cfg.JWTIssuer != "" {
		return cfg.JWTIssuer
	}
	return DefaultIssuer
}

func audience(cfg *config.Config) string {
	if cfg.JWTAudience != "" {
		return cfg.JWTAudience
	}
	return DefaultAudience
}

// IssueToken signs an HS256 access token for userID valid for ttl. It
// returns the token and its jti.
func IssueToken(cfg *config.Config, userID uint, role models.Role, ttl time.Duration) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    issuer(cfg),
			Audience:  jwt.ClaimStrings{audience(cfg)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// ParseToken validates the signature, expiry, issuer and audience of raw.
func ParseToken(cfg *config.Config, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(cfg.JWTSecret), nil
	},
		jwt.WithIssuer(issuer(cfg)),
		jwt.WithAudience(audience(cfg)),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// When allowQuery is set a "token" query parameter is accepted as well,
// which browsers need for websocket upgrades.
func BearerToken(c *fiber.Ctx, allowQuery bool) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", ErrInvalidToken
		}
		return parts[1], nil
	}
	if allowQuery {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingToken
}
