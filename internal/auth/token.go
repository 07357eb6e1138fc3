// Package auth validates the access tokens issued by the identity service
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNotAccess    = errors.New("token is not an access token")
)

// Claims is the identity carried by an access token
type Claims struct {
	LearnerID int
	Role      int
}

// TokenValidator validates HMAC-signed access tokens
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator creates a validator for tokens signed with secret
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// ValidateAccessToken parses tokenString and returns the learner it was issued to
func (v *TokenValidator) ValidateAccessToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return Claims{}, ErrNotAccess
	}

	// JWT numbers decode as float64
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return Claims{}, fmt.Errorf("%w: user_id not found in token", ErrInvalidToken)
	}
	role, _ := claims["role"].(float64)

	return Claims{LearnerID: int(userID), Role: int(role)}, nil
}
