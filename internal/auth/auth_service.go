// Package auth 负责签发与校验访问令牌，令牌主体是用户的钱包地址。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTypeAccess = "access"

// AuthService 使用 HS256 对令牌签名。
type AuthService struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// TokenClaims 表示 JWT 中的业务字段，便于中间件读取用户信息。
type TokenClaims struct {
	Owner     string `json:"owner"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// NewAuthService 构造服务实例。
func NewAuthService(secret string, tokenTTL time.Duration) (*AuthService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if tokenTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &AuthService{secret: []byte(secret), tokenTTL: tokenTTL, now: time.Now}, nil
}

// IssueToken 为 owner 签发访问令牌。
func (s *AuthService) IssueToken(owner string) (string, error) {
	owner = NormalizeOwner(owner)
	if owner == "" {
		return "", errors.New("owner is required")
	}
	now := s.now()
	claims := TokenClaims{
		Owner:     owner,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken 解析并验证访问令牌，返回令牌持有者。
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, fmt.Errorf("invalid token type: %s", claims.TokenType)
	}
	if claims.Owner == "" || claims.Owner != claims.Subject {
		return nil, errors.New("token owner missing")
	}
	return claims, nil
}

// TokenTTL 暴露令牌有效期。
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// NormalizeOwner 统一地址大小写，0x 地址不区分大小写。
func NormalizeOwner(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}
