package auth

import (
	"errors"
	"time"

	"bakery-pos/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims identifies a till session
type Claims struct {
	SessionID string      `json:"sid"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and validates session tokens
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(secretKey string, ttl time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secretKey),
		ttl:       ttl,
	}
}

// Issue creates a signed token for a session
func (s *TokenService) Issue(sessionID, username string, role models.Role) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		SessionID: sessionID,
		Username:  username,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   username,
			ID:        sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Validate checks the signature and expiry of a token and returns its claims.
// A correctly signed but expired token returns its claims with ErrExpiredToken.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return s.expiredClaims(tokenString), ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return s.secretKey, nil
}

// expiredClaims returns the claims of an expired token only when its
// signature still verifies
func (s *TokenService) expiredClaims(tokenString string) *Claims {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, s.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return nil
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.SessionID == "" {
		return nil
	}
	return claims
}

// TTL returns the token lifetime
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
