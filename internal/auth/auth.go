package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Authenticator is the boundary to the authentication collaborator: it turns
// a bearer token into an authenticated user id.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (int, error)
}

// Claims carried by access tokens issued by the auth service.
type Claims struct {
	UserID int `json:"uid"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 access tokens locally using the shared
// signing secret.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator constructs a JWTAuthenticator.
func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// ValidateToken verifies the JWT and returns the authenticated user id.
func (a *JWTAuthenticator) ValidateToken(ctx context.Context, token string) (int, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	if claims.UserID != 0 {
		return claims.UserID, nil
	}
	// fall back to the subject claim for tokens minted without uid
	if claims.Subject != "" {
		if id, err := strconv.Atoi(claims.Subject); err == nil && id != 0 {
			return id, nil
		}
	}
	return 0, ErrInvalidToken
}
