package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"sub"`
	TokenType TokenType `json:"typ"`
}
