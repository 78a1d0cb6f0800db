package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenClaims 后端访问令牌中关心的字段
type TokenClaims struct {
	UserID    int64  `json:"user_id,omitempty"`
	TokenType string `json:"type,omitempty"` // access or refresh
	jwt.RegisteredClaims
}

// InspectToken 解析令牌但不校验签名（签名由后端负责校验）
func InspectToken(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &TokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ExpiresWithin 令牌是否会在leeway内过期（没有exp时视为不过期）
func (c *TokenClaims) ExpiresWithin(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.Time.After(now.Add(leeway))
}

// CheckToken 检查令牌格式与过期时间
func CheckToken(tokenString string, leeway time.Duration) (*TokenClaims, error) {
	claims, err := InspectToken(tokenString)
	if err != nil {
		return nil, err
	}

	// 检查是否过期
	if claims.ExpiresWithin(time.Now(), leeway) {
		return claims, ErrExpiredToken
	}

	return claims, nil
}

// TokenExpiry 获取令牌过期时间
func TokenExpiry(tokenString string) (time.Time, bool) {
	claims, err := InspectToken(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
