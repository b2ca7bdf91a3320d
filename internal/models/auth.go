package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims are the JWT claims carried by session tokens.
type TokenClaims struct {
	Type   string `json:"type"` // "access" or "refresh"
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
