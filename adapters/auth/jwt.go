// Package auth provides stateless session authentication using JWT.
// No server-side session storage: the signed token is the session.
package auth

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the session claims for a workspace member.
type Claims struct {
	UserID      string `json:"uid"`
	WorkspaceID string `json:"wid"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService signs and validates session tokens.
// Thread-safe and suitable for concurrent use.
type TokenService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewTokenService creates a token service. An empty secret is replaced with
// a random one, which invalidates all sessions on restart.
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	secretBytes := []byte(secret)
	if secret == "" {
		secretBytes = make([]byte, 32)
		rand.Read(secretBytes)
	}
	if expiration == 0 {
		expiration = 24 * time.Hour
	}
	return &TokenService{
		secret:     secretBytes,
		issuer:     "fieldbase",
		expiration: expiration,
	}
}

// Generate creates a signed session token for the given member.
func (s *TokenService) Generate(userID, workspaceID, email string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.expiration)

	claims := Claims{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Email:       email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses a session token and returns its claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
