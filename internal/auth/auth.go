// Package auth validates the HS256 tokens issued by the fleet admin app.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const (
	defaultSecret = "default-secret-key-change-in-production"
	defaultExpiry = 24 * time.Hour
)

// tokenClaims mirrors the payload the admin app signs.
type tokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewService falls back to a development secret and a 24h expiry.
func NewService(secret string, expiry time.Duration) *Service {
	if secret == "" {
		secret = defaultSecret
	}
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	return &Service{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// UsingDefaultSecret reports whether no secret was configured.
func (s *Service) UsingDefaultSecret() bool {
	return string(s.secret) == defaultSecret
}

// GenerateToken signs a token for user. The alerting service only issues
// tokens in tests and tooling; production tokens come from the admin app.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	issued := s.now()
	claims := tokenClaims{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature and expiry and returns the caller's claims.
// A leading "Bearer " is tolerated.
func (s *Service) ValidateToken(raw string) (*models.Claims, error) {
	raw = strings.TrimPrefix(raw, "Bearer ")

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	}

	role := models.Role(claims.Role)
	if claims.UserID == "" || claims.Username == "" || !models.IsValidRole(role) {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     role,
		Exp:      claims.ExpiresAt.Unix(),
	}, nil
}

// ExtractTokenFromHeader returns the token of a "Bearer <token>" header.
func (s *Service) ExtractTokenFromHeader(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", ErrInvalidToken
	}
	return token, nil
}
