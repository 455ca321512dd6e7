// Package auth issues and validates the JWT tokens that identify
// mobile clients to the API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants for the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Token expiration durations.
const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// DefaultLeeway absorbs clock skew between the API and clients during
// expiry checks.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrEmptyUserID is returned when the user UUID is empty.
	ErrEmptyUserID = errors.New("user id cannot be empty")
)

// Claims carries the token subject (the user's UUID) and the token
// type.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// Service signs and validates HS256 tokens. It supports dual-key
// rotation: tokens are signed with currentSecret but validate against
// either currentSecret or previousSecret, so rotating the signing key
// does not log everyone out.
type Service struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewService creates a Service signing with a single secret.
func NewService(secret string) *Service {
	return NewServiceWithRotation(secret, "")
}

// NewServiceWithRotation creates a Service with dual-key support.
// Pass an empty previousSecret when no rotation is in progress.
func NewServiceWithRotation(currentSecret, previousSecret string) *Service {
	svc := &Service{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// WithLeeway overrides the expiry leeway. Tests shrink it to exercise
// expiration without waiting.
func (s *Service) WithLeeway(leeway time.Duration) *Service {
	s.leeway = leeway
	return s
}

// GenerateAccessToken creates a new access token for the user's UUID.
func (s *Service) GenerateAccessToken(userUUID string) (string, error) {
	return s.generate(userUUID, TokenTypeAccess, AccessTokenExpiry)
}

// GenerateRefreshToken creates a new refresh token for the user's UUID.
func (s *Service) GenerateRefreshToken(userUUID string) (string, error) {
	return s.generate(userUUID, TokenTypeRefresh, RefreshTokenExpiry)
}

func (s *Service) generate(userUUID, tokenType string, expiry time.Duration) (string, error) {
	if userUUID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userUUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Type: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// ValidateToken parses and validates a token, returning its claims.
// Tries currentSecret first, then previousSecret if set.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parseWith(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}

	if s.previousSecret != nil {
		if claims, prevErr := s.parseWith(tokenString, s.previousSecret); prevErr == nil {
			return claims, nil
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (s *Service) parseWith(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(s.leeway))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
